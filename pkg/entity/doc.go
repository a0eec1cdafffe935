// Package entity provides type-safe Go definitions for the midden entity
// tracking store. An entity is a long-lived work product (a blog post, an
// infrastructure resource) tracked across repeated workflow runs; its
// current state lives in one JSON document and its audit trail in an
// append-only companion document.
//
// The package is pure: it defines the document schema, the identifier
// grammar that keeps entity keys path-safe, the enum validators, and the
// named merge operations applied by the store. It performs no I/O.
package entity
