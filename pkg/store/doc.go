// Package store is the midden entity store: file-backed, multi-process
// safe tracking of long-lived work products mutated across repeated
// workflow runs.
//
// Every mutating operation follows the same cycle: acquire the entity's
// filesystem lock, read the current document, apply typed merge
// operations, bump the version, write the full document atomically
// (temp file + rename), refresh the derived indices, release the lock.
// Reads never lock; documents are always internally consistent because no
// partial write is ever visible. Concurrent writers to the same entity are
// serialized by the lock across all cooperating processes on the host;
// optimistic concurrency (expected-version checks) covers read-modify-write
// cycles that span lock acquisitions.
package store
