package store

import (
	"fmt"
	"path/filepath"
)

// On-disk layout helpers
//
// One state file and one history file per entity, grouped by type; a
// separate directory holds the four index files; lock markers live outside
// the document tree so document scans never trip over them.
//
//	<root>/entities/<type>/<id>.json
//	<root>/entities/<type>/<id>.history.json
//	<root>/indices/*.json
//	<root>/locks/entities/<type>--<id>/
//	<root>/locks/index/index/
//
// Every path component below root comes from a validated identifier, so no
// joined path can escape the store.

const (
	entitiesDirName = "entities"
	indicesDirName  = "indices"
	locksDirName    = "locks"

	historySuffix = ".history.json"
)

// EntitiesDir returns the directory holding all entity documents.
func EntitiesDir(root string) string {
	return filepath.Join(root, entitiesDirName)
}

// IndicesDir returns the directory holding the four index files.
func IndicesDir(root string) string {
	return filepath.Join(root, indicesDirName)
}

// EntityLocksDir returns the directory holding per-entity lock markers.
func EntityLocksDir(root string) string {
	return filepath.Join(root, locksDirName, entitiesDirName)
}

// IndexLocksDir returns the directory holding the index lock marker.
func IndexLocksDir(root string) string {
	return filepath.Join(root, locksDirName, "index")
}

// EntityPath returns the current-state document path for an entity.
func EntityPath(root, entityType, entityID string) string {
	return filepath.Join(root, entitiesDirName, entityType, entityID+".json")
}

// HistoryPath returns the append-only history document path for an entity.
func HistoryPath(root, entityType, entityID string) string {
	return filepath.Join(root, entitiesDirName, entityType, entityID+historySuffix)
}

// EntityLockKey flattens an entity key into a single lock marker name.
// Both segments are already path-safe by validation; "--" keeps the marker
// a single directory.
func EntityLockKey(entityType, entityID string) string {
	return fmt.Sprintf("%s--%s", entityType, entityID)
}
