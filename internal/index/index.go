// Package index maintains the four derived lookup structures of a midden
// store: by-status, by-type, by-step-action, and recent-updates. Indices
// are rebuildable from the entity documents and are never authoritative;
// incremental updates run under a short-lived index lock that degrades to
// lock-free operation on timeout, since the worst case is drift that
// Rebuild repairs.
package index

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dyluth/midden/internal/atomicfile"
	"github.com/dyluth/midden/internal/lock"
	"github.com/dyluth/midden/pkg/entity"
)

const (
	byStatusFile      = "by-status.json"
	byTypeFile        = "by-type.json"
	byStepActionFile  = "by-step-action.json"
	recentUpdatesFile = "recent-updates.json"

	// indexLockKey names the single lock guarding all four index files.
	indexLockKey = "index"

	// DefaultRecentLimit bounds the recent-updates structure.
	DefaultRecentLimit = 1000
)

// RecentEntry is one row of the recent-updates index, newest first.
type RecentEntry struct {
	Entity    string    `json:"entity"` // Canonical "type/id" key
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Maintainer keeps the index files under dir in sync with entity documents.
// All mutating methods serialize on the shared index lock; reads do not
// lock and tolerate slightly stale data.
type Maintainer struct {
	dir         string
	locks       *lock.Manager
	lockOpts    lock.Options
	recentLimit int
}

// New creates a Maintainer writing index files under dir, serialized by
// locks. recentLimit <= 0 selects DefaultRecentLimit.
func New(dir string, locks *lock.Manager, lockOpts lock.Options, recentLimit int) (*Maintainer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	if recentLimit <= 0 {
		recentLimit = DefaultRecentLimit
	}
	return &Maintainer{dir: dir, locks: locks, lockOpts: lockOpts, recentLimit: recentLimit}, nil
}

// withIndexLock runs fn under the index lock. On acquisition timeout the
// update still runs, unserialized, and degraded is reported true: index
// drift is recoverable via Rebuild, whereas failing the caller's
// already-persisted document write is not useful to anyone.
func (m *Maintainer) withIndexLock(fn func() error) (degraded bool, err error) {
	handle, err := m.locks.Acquire(indexLockKey, m.lockOpts)
	if err != nil {
		if !lock.IsTimeout(err) {
			return false, fmt.Errorf("failed to acquire index lock: %w", err)
		}
		return true, fn()
	}
	defer handle.Release()

	return false, fn()
}

// UpdateStatus moves key from oldStatus's set to newStatus's set.
// oldStatus may be empty (entity creation). Idempotent.
func (m *Maintainer) UpdateStatus(key string, newStatus, oldStatus entity.Status) (bool, error) {
	return m.withIndexLock(func() error {
		sets, err := m.loadSets(byStatusFile)
		if err != nil {
			return err
		}

		if oldStatus != "" && oldStatus != newStatus {
			sets[string(oldStatus)] = removeKey(sets[string(oldStatus)], key)
			if len(sets[string(oldStatus)]) == 0 {
				delete(sets, string(oldStatus))
			}
		}
		sets[string(newStatus)] = addKey(sets[string(newStatus)], key)

		return m.saveSets(byStatusFile, sets)
	})
}

// UpdateType adds key to entityType's set. Duplicate adds are no-ops.
func (m *Maintainer) UpdateType(key, entityType string) (bool, error) {
	return m.withIndexLock(func() error {
		sets, err := m.loadSets(byTypeFile)
		if err != nil {
			return err
		}

		sets[entityType] = addKey(sets[entityType], key)

		return m.saveSets(byTypeFile, sets)
	})
}

// UpdateStepAction adds key under both the bare action and the composite
// "action#execution_status" entries.
func (m *Maintainer) UpdateStepAction(key, action string, executionStatus entity.ExecutionStatus) (bool, error) {
	if action == "" {
		return false, nil
	}
	return m.withIndexLock(func() error {
		sets, err := m.loadSets(byStepActionFile)
		if err != nil {
			return err
		}

		sets[action] = addKey(sets[action], key)
		if executionStatus != "" {
			composite := StepActionKey(action, executionStatus)
			sets[composite] = addKey(sets[composite], key)
		}

		return m.saveSets(byStepActionFile, sets)
	})
}

// StepActionKey builds the composite step-action index key.
func StepActionKey(action string, executionStatus entity.ExecutionStatus) string {
	return fmt.Sprintf("%s#%s", action, executionStatus)
}

// UpdateRecent records key as the most recently updated entity, replacing
// any earlier entry for the same key, and truncates to the recency bound.
func (m *Maintainer) UpdateRecent(entityType, entityID string, updatedAt time.Time) (bool, error) {
	return m.withIndexLock(func() error {
		entries, err := m.loadRecent()
		if err != nil {
			return err
		}

		key := entity.Key(entityType, entityID)
		filtered := make([]RecentEntry, 0, len(entries)+1)
		for _, e := range entries {
			if e.Entity != key {
				filtered = append(filtered, e)
			}
		}

		filtered = append(filtered, RecentEntry{
			Entity:    key,
			Type:      entityType,
			ID:        entityID,
			UpdatedAt: updatedAt,
		})

		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].UpdatedAt.After(filtered[j].UpdatedAt)
		})

		if len(filtered) > m.recentLimit {
			filtered = filtered[:m.recentLimit]
		}

		return atomicfile.WriteJSON(filepath.Join(m.dir, recentUpdatesFile), filtered)
	})
}

// Status returns the keys currently indexed under status.
func (m *Maintainer) Status(status entity.Status) ([]string, error) {
	sets, err := m.loadSets(byStatusFile)
	if err != nil {
		return nil, err
	}
	return sets[string(status)], nil
}

// Type returns the keys currently indexed under entityType.
func (m *Maintainer) Type(entityType string) ([]string, error) {
	sets, err := m.loadSets(byTypeFile)
	if err != nil {
		return nil, err
	}
	return sets[entityType], nil
}

// StepAction returns the keys indexed under action, narrowed to the
// composite entry when executionStatus is non-empty.
func (m *Maintainer) StepAction(action string, executionStatus entity.ExecutionStatus) ([]string, error) {
	sets, err := m.loadSets(byStepActionFile)
	if err != nil {
		return nil, err
	}
	if executionStatus != "" {
		return sets[StepActionKey(action, executionStatus)], nil
	}
	return sets[action], nil
}

// Recent returns the recent-updates entries, newest first.
func (m *Maintainer) Recent() ([]RecentEntry, error) {
	return m.loadRecent()
}

// Rebuild re-derives all four indices from scratch by scanning every
// entity document under entitiesDir, replacing prior index contents
// entirely. This is the recovery path for suspected drift; it is never
// triggered automatically.
func (m *Maintainer) Rebuild(entitiesDir string) (bool, error) {
	byStatus := map[string][]string{}
	byType := map[string][]string{}
	byStepAction := map[string][]string{}
	var recent []RecentEntry

	typeDirs, err := os.ReadDir(entitiesDir)
	if err != nil {
		if os.IsNotExist(err) {
			typeDirs = nil
		} else {
			return false, fmt.Errorf("failed to scan entities directory: %w", err)
		}
	}

	for _, typeDir := range typeDirs {
		if !typeDir.IsDir() {
			continue
		}

		files, err := os.ReadDir(filepath.Join(entitiesDir, typeDir.Name()))
		if err != nil {
			return false, fmt.Errorf("failed to scan type directory '%s': %w", typeDir.Name(), err)
		}

		for _, f := range files {
			name := f.Name()
			if !strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".history.json") || strings.HasPrefix(name, ".") {
				continue
			}

			var doc entity.Entity
			path := filepath.Join(entitiesDir, typeDir.Name(), name)
			if err := atomicfile.ReadJSON(path, &doc); err != nil {
				return false, fmt.Errorf("failed to read entity document %s: %w", path, err)
			}

			key := doc.Key()
			byStatus[string(doc.Status)] = addKey(byStatus[string(doc.Status)], key)
			byType[doc.EntityType] = addKey(byType[doc.EntityType], key)
			for _, rec := range doc.StepStatus {
				if rec.StepAction == "" {
					continue
				}
				byStepAction[rec.StepAction] = addKey(byStepAction[rec.StepAction], key)
				composite := StepActionKey(rec.StepAction, rec.ExecutionStatus)
				byStepAction[composite] = addKey(byStepAction[composite], key)
			}
			recent = append(recent, RecentEntry{
				Entity:    key,
				Type:      doc.EntityType,
				ID:        doc.EntityID,
				UpdatedAt: doc.UpdatedAt,
			})
		}
	}

	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].UpdatedAt.After(recent[j].UpdatedAt)
	})
	if len(recent) > m.recentLimit {
		recent = recent[:m.recentLimit]
	}
	if recent == nil {
		recent = []RecentEntry{}
	}

	return m.withIndexLock(func() error {
		if err := m.saveSets(byStatusFile, byStatus); err != nil {
			return err
		}
		if err := m.saveSets(byTypeFile, byType); err != nil {
			return err
		}
		if err := m.saveSets(byStepActionFile, byStepAction); err != nil {
			return err
		}
		return atomicfile.WriteJSON(filepath.Join(m.dir, recentUpdatesFile), recent)
	})
}

// loadSets reads one key→sorted-key-list index file, returning an empty map
// if the file does not exist yet.
func (m *Maintainer) loadSets(file string) (map[string][]string, error) {
	sets := map[string][]string{}
	err := atomicfile.ReadJSON(filepath.Join(m.dir, file), &sets)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]string{}, nil
		}
		return nil, fmt.Errorf("failed to read index %s: %w", file, err)
	}
	return sets, nil
}

func (m *Maintainer) saveSets(file string, sets map[string][]string) error {
	return atomicfile.WriteJSON(filepath.Join(m.dir, file), sets)
}

func (m *Maintainer) loadRecent() ([]RecentEntry, error) {
	var entries []RecentEntry
	err := atomicfile.ReadJSON(filepath.Join(m.dir, recentUpdatesFile), &entries)
	if err != nil {
		if os.IsNotExist(err) {
			return []RecentEntry{}, nil
		}
		return nil, fmt.Errorf("failed to read index %s: %w", recentUpdatesFile, err)
	}
	return entries, nil
}

// addKey inserts key into a sorted set, keeping order and uniqueness.
func addKey(set []string, key string) []string {
	i := sort.SearchStrings(set, key)
	if i < len(set) && set[i] == key {
		return set
	}
	set = append(set, "")
	copy(set[i+1:], set[i:])
	set[i] = key
	return set
}

// removeKey deletes key from a sorted set if present.
func removeKey(set []string, key string) []string {
	i := sort.SearchStrings(set, key)
	if i < len(set) && set[i] == key {
		return append(set[:i], set[i+1:]...)
	}
	return set
}
