package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dyluth/midden/internal/atomicfile"
	"github.com/dyluth/midden/internal/index"
	"github.com/dyluth/midden/pkg/entity"
)

// Read-only query surface. No locking: index reads tolerate slight
// staleness, and document reads are internally consistent by the atomic
// write protocol.

// ByStatus returns the keys of entities currently indexed under status.
func (c *Client) ByStatus(status entity.Status) ([]string, error) {
	if err := status.Validate(); err != nil {
		return nil, err
	}
	return c.indices.Status(status)
}

// ByType returns the keys of entities of the given type.
func (c *Client) ByType(entityType string) ([]string, error) {
	if err := entity.ValidateEntityType(entityType); err != nil {
		return nil, err
	}
	return c.indices.Type(entityType)
}

// ByStepAction returns the keys of entities that have recorded the given
// step action, narrowed by execution status when non-empty.
func (c *Client) ByStepAction(action string, executionStatus entity.ExecutionStatus) ([]string, error) {
	if action == "" {
		return nil, fmt.Errorf("step action cannot be empty")
	}
	if executionStatus != "" {
		if err := executionStatus.Validate(); err != nil {
			return nil, err
		}
	}
	return c.indices.StepAction(action, executionStatus)
}

// Recent returns recent-updates entries, newest first, optionally filtered
// to entries after since and/or to one entity type. limit <= 0 means no
// limit beyond the index's own bound.
func (c *Client) Recent(since time.Time, entityType string, limit int) ([]index.RecentEntry, error) {
	if entityType != "" {
		if err := entity.ValidateEntityType(entityType); err != nil {
			return nil, err
		}
	}

	entries, err := c.indices.Recent()
	if err != nil {
		return nil, err
	}

	out := make([]index.RecentEntry, 0, len(entries))
	for _, e := range entries {
		if !since.IsZero() && !e.UpdatedAt.After(since) {
			continue
		}
		if entityType != "" && e.Type != entityType {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}

	return out, nil
}

// ListFilters narrows a List scan. All set filters are ANDed together.
type ListFilters struct {
	Status          entity.Status          // "" = any
	StepAction      string                 // "" = any
	ExecutionStatus entity.ExecutionStatus // "" = any; only meaningful with StepAction
	TagGlob         string                 // Glob over tags, "" = any
}

func (f *ListFilters) matches(doc *entity.Entity) bool {
	if f.Status != "" && doc.Status != f.Status {
		return false
	}

	if f.TagGlob != "" {
		found := false
		for _, tag := range doc.Tags {
			if matched, err := filepath.Match(f.TagGlob, tag); err == nil && matched {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if f.StepAction != "" {
		found := false
		for _, rec := range doc.StepStatus {
			if rec.StepAction != f.StepAction {
				continue
			}
			if f.ExecutionStatus != "" && rec.ExecutionStatus != f.ExecutionStatus {
				continue
			}
			found = true
			break
		}
		if !found {
			return false
		}
	}

	return true
}

// List scans the entity documents of one type and returns those matching
// the filters, sorted by entity ID for stable output. Used when index
// granularity is insufficient; bounded by limit (<= 0 means unbounded).
// Malformed documents are skipped rather than failing the whole scan.
func (c *Client) List(entityType string, filters ListFilters, limit int) ([]*entity.Entity, error) {
	if err := entity.ValidateEntityType(entityType); err != nil {
		return nil, err
	}
	if filters.Status != "" {
		if err := filters.Status.Validate(); err != nil {
			return nil, err
		}
	}
	if filters.ExecutionStatus != "" {
		if err := filters.ExecutionStatus.Validate(); err != nil {
			return nil, err
		}
	}
	if filters.TagGlob != "" {
		if _, err := filepath.Match(filters.TagGlob, ""); err != nil {
			return nil, fmt.Errorf("invalid tag glob %q: %w", filters.TagGlob, err)
		}
	}

	typeDir := filepath.Join(EntitiesDir(c.root), entityType)
	files, err := os.ReadDir(typeDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*entity.Entity{}, nil
		}
		return nil, fmt.Errorf("failed to scan type directory: %w", err)
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		name := f.Name()
		if !strings.HasSuffix(name, ".json") || strings.HasSuffix(name, historySuffix) || strings.HasPrefix(name, ".") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	docs := make([]*entity.Entity, 0, len(names))
	for _, name := range names {
		var doc entity.Entity
		if err := atomicfile.ReadJSON(filepath.Join(typeDir, name), &doc); err != nil {
			fmt.Fprintf(os.Stderr, "skipping malformed entity document %s: %v\n", name, err)
			continue
		}
		if !filters.matches(&doc) {
			continue
		}
		docs = append(docs, &doc)
		if limit > 0 && len(docs) == limit {
			break
		}
	}

	return docs, nil
}

// EntitiesByStepAction resolves a step-action index lookup to full entity
// documents, bounded by limit. Keys whose documents have vanished (stale
// index) are skipped.
func (c *Client) EntitiesByStepAction(action string, executionStatus entity.ExecutionStatus, limit int) ([]*entity.Entity, error) {
	keys, err := c.ByStepAction(action, executionStatus)
	if err != nil {
		return nil, err
	}

	docs := make([]*entity.Entity, 0, len(keys))
	for _, key := range keys {
		entityType, entityID, ok := strings.Cut(key, "/")
		if !ok {
			continue
		}
		doc, err := c.Get(entityType, entityID)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		docs = append(docs, doc)
		if limit > 0 && len(docs) == limit {
			break
		}
	}

	return docs, nil
}
