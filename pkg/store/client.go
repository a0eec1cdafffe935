package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dyluth/midden/internal/atomicfile"
	"github.com/dyluth/midden/internal/index"
	"github.com/dyluth/midden/internal/lock"
	"github.com/dyluth/midden/pkg/entity"
)

// Options tune lock behavior and index bounds. Zero values select the
// defaults below.
type Options struct {
	EntityLockTimeout time.Duration // How long a mutation waits for the entity lock (default 30s)
	EntityLockPoll    time.Duration // Entity lock poll interval (default 500ms)
	EntityLockMaxAge  time.Duration // Entity lock markers older than this are reclaimed (default 300s)
	IndexLockTimeout  time.Duration // How long an index update waits for the index lock (default 5s)
	IndexLockPoll     time.Duration // Index lock poll interval (default 100ms)
	IndexLockMaxAge   time.Duration // Index lock markers older than this are reclaimed (default 60s)
	RecentLimit       int           // Bound on the recent-updates index (default 1000)
}

// DefaultOptions returns the standard production tuning.
func DefaultOptions() Options {
	return Options{
		EntityLockTimeout: 30 * time.Second,
		EntityLockPoll:    500 * time.Millisecond,
		EntityLockMaxAge:  300 * time.Second,
		IndexLockTimeout:  5 * time.Second,
		IndexLockPoll:     100 * time.Millisecond,
		IndexLockMaxAge:   60 * time.Second,
		RecentLimit:       index.DefaultRecentLimit,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.EntityLockTimeout == 0 {
		o.EntityLockTimeout = d.EntityLockTimeout
	}
	if o.EntityLockPoll == 0 {
		o.EntityLockPoll = d.EntityLockPoll
	}
	if o.EntityLockMaxAge == 0 {
		o.EntityLockMaxAge = d.EntityLockMaxAge
	}
	if o.IndexLockTimeout == 0 {
		o.IndexLockTimeout = d.IndexLockTimeout
	}
	if o.IndexLockPoll == 0 {
		o.IndexLockPoll = d.IndexLockPoll
	}
	if o.IndexLockMaxAge == 0 {
		o.IndexLockMaxAge = d.IndexLockMaxAge
	}
	if o.RecentLimit == 0 {
		o.RecentLimit = d.RecentLimit
	}
	return o
}

// Client provides root-scoped operations on one midden store. A Client is
// safe for concurrent use from multiple goroutines, and multiple Clients
// (in any number of processes) may share one store root: cross-process
// safety comes from the filesystem locks, not from in-process state.
type Client struct {
	root           string
	entityLocks    *lock.Manager
	entityLockOpts lock.Options
	indices        *index.Maintainer
}

// NewClient opens (creating if necessary) the store rooted at root.
func NewClient(root string, opts Options) (*Client, error) {
	if root == "" {
		return nil, fmt.Errorf("store root cannot be empty")
	}
	opts = opts.withDefaults()

	if err := os.MkdirAll(EntitiesDir(root), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create entities directory: %w", err)
	}

	entityLocks, err := lock.NewManager(EntityLocksDir(root))
	if err != nil {
		return nil, err
	}

	indexLocks, err := lock.NewManager(IndexLocksDir(root))
	if err != nil {
		return nil, err
	}

	indexLockOpts := lock.Options{
		Timeout:      opts.IndexLockTimeout,
		PollInterval: opts.IndexLockPoll,
		MaxAge:       opts.IndexLockMaxAge,
	}

	indices, err := index.New(IndicesDir(root), indexLocks, indexLockOpts, opts.RecentLimit)
	if err != nil {
		return nil, err
	}

	return &Client{
		root:        root,
		entityLocks: entityLocks,
		entityLockOpts: lock.Options{
			Timeout:      opts.EntityLockTimeout,
			PollInterval: opts.EntityLockPoll,
			MaxAge:       opts.EntityLockMaxAge,
		},
		indices: indices,
	}, nil
}

// Root returns the store root directory.
func (c *Client) Root() string {
	return c.root
}

// CreateRequest describes a new entity.
type CreateRequest struct {
	EntityType   string
	EntityID     string
	Organization string
	Project      string
	Properties   map[string]any
	Tags         []string
}

// CreateResult reports where the new entity's documents were written.
type CreateResult struct {
	EntityPath  string
	HistoryPath string
	Warnings    []string
}

// Create makes a new entity with status pending and version 1.
// Fails with AlreadyExistsError if the entity's state document exists.
func (c *Client) Create(req CreateRequest) (*CreateResult, error) {
	if err := validateKey(req.EntityType, req.EntityID); err != nil {
		return nil, err
	}
	if err := entity.ValidateOrganization(req.Organization); err != nil {
		return nil, err
	}
	if err := entity.ValidateProject(req.Project); err != nil {
		return nil, err
	}

	statePath := EntityPath(c.root, req.EntityType, req.EntityID)
	if _, err := os.Stat(statePath); err == nil {
		return nil, &AlreadyExistsError{EntityType: req.EntityType, EntityID: req.EntityID}
	}

	handle, err := c.entityLocks.Acquire(EntityLockKey(req.EntityType, req.EntityID), c.entityLockOpts)
	if err != nil {
		return nil, err
	}
	defer handle.Release()

	// Re-check under the lock: another process may have won the race.
	if _, err := os.Stat(statePath); err == nil {
		return nil, &AlreadyExistsError{EntityType: req.EntityType, EntityID: req.EntityID}
	}

	if err := os.MkdirAll(filepath.Dir(statePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create type directory: %w", err)
	}

	now := time.Now().UTC()
	doc := &entity.Entity{
		Organization: req.Organization,
		Project:      req.Project,
		EntityType:   req.EntityType,
		EntityID:     req.EntityID,
		Status:       entity.StatusPending,
		StepStatus:   map[string]entity.StepStatusRecord{},
		Properties:   entity.MergeProperties(nil, req.Properties),
		Artifacts:    []entity.Artifact{},
		Tags:         entity.UnionTags(nil, req.Tags),
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid entity: %w", err)
	}

	historyPath := HistoryPath(c.root, req.EntityType, req.EntityID)

	// History first: the state document is the commit point, so a crash
	// between the two writes leaves no visible entity.
	if err := atomicfile.WriteJSON(historyPath, entity.NewHistory(req.EntityType, req.EntityID)); err != nil {
		return nil, err
	}
	if err := atomicfile.WriteJSON(statePath, doc); err != nil {
		return nil, err
	}

	var idx indexOutcome
	key := doc.Key()
	degraded, err := c.indices.UpdateStatus(key, entity.StatusPending, "")
	idx.record("status", degraded, err)
	degraded, err = c.indices.UpdateType(key, req.EntityType)
	idx.record("type", degraded, err)
	degraded, err = c.indices.UpdateRecent(req.EntityType, req.EntityID, now)
	idx.record("recent", degraded, err)
	if idx.err != nil {
		return nil, idx.err
	}

	return &CreateResult{EntityPath: statePath, HistoryPath: historyPath, Warnings: idx.warnings}, nil
}

// Get reads an entity's current-state document. No lock is taken: the
// document is always internally consistent thanks to atomic writes.
func (c *Client) Get(entityType, entityID string) (*entity.Entity, error) {
	if err := validateKey(entityType, entityID); err != nil {
		return nil, err
	}

	var doc entity.Entity
	err := atomicfile.ReadJSON(EntityPath(c.root, entityType, entityID), &doc)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{EntityType: entityType, EntityID: entityID}
		}
		return nil, fmt.Errorf("failed to read entity: %w", err)
	}

	return &doc, nil
}

// GetHistory reads an entity's history document. A missing history file
// for an existing entity reads as empty rather than failing.
func (c *Client) GetHistory(entityType, entityID string) (*entity.EntityHistory, error) {
	if err := validateKey(entityType, entityID); err != nil {
		return nil, err
	}

	if _, err := os.Stat(EntityPath(c.root, entityType, entityID)); err != nil {
		return nil, &NotFoundError{EntityType: entityType, EntityID: entityID}
	}

	var hist entity.EntityHistory
	err := atomicfile.ReadJSON(HistoryPath(c.root, entityType, entityID), &hist)
	if err != nil {
		if os.IsNotExist(err) {
			return entity.NewHistory(entityType, entityID), nil
		}
		return nil, fmt.Errorf("failed to read entity history: %w", err)
	}

	return &hist, nil
}

// UpdateRequest carries the merge inputs for one update operation.
// Zero-valued fields are skipped. ExpectedVersion 0 disables the
// optimistic concurrency check.
type UpdateRequest struct {
	EntityType      string
	EntityID        string
	Status          entity.Status // "" = no status change
	Properties      map[string]any
	Artifacts       []entity.Artifact
	AddTags         []string
	ExpectedVersion int
}

// UpdateResult reports the version after a successful update.
type UpdateResult struct {
	NewVersion int
	Warnings   []string
}

// Update applies the named merge operations to an entity under its lock:
// status replace, properties deep-merge, artifacts append, tags union.
// Returns VersionConflictError, with the document untouched, if
// ExpectedVersion is set and stale.
func (c *Client) Update(req UpdateRequest) (*UpdateResult, error) {
	if err := validateKey(req.EntityType, req.EntityID); err != nil {
		return nil, err
	}
	if req.Status != "" {
		if err := req.Status.Validate(); err != nil {
			return nil, err
		}
	}

	handle, err := c.entityLocks.Acquire(EntityLockKey(req.EntityType, req.EntityID), c.entityLockOpts)
	if err != nil {
		return nil, err
	}
	defer handle.Release()

	doc, err := c.Get(req.EntityType, req.EntityID)
	if err != nil {
		return nil, err
	}

	if req.ExpectedVersion != 0 && req.ExpectedVersion != doc.Version {
		return nil, &VersionConflictError{
			EntityType: req.EntityType,
			EntityID:   req.EntityID,
			Expected:   req.ExpectedVersion,
			Current:    doc.Version,
		}
	}

	oldStatus := doc.Status
	if req.Status != "" {
		doc.Status = req.Status
	}
	doc.Properties = entity.MergeProperties(doc.Properties, req.Properties)
	doc.Artifacts = entity.AppendArtifacts(doc.Artifacts, req.Artifacts)
	doc.Tags = entity.UnionTags(doc.Tags, req.AddTags)
	doc.Version++
	doc.UpdatedAt = time.Now().UTC()

	if err := atomicfile.WriteJSON(EntityPath(c.root, req.EntityType, req.EntityID), doc); err != nil {
		return nil, err
	}

	var idx indexOutcome
	if doc.Status != oldStatus {
		degraded, err := c.indices.UpdateStatus(doc.Key(), doc.Status, oldStatus)
		idx.record("status", degraded, err)
	}
	degraded, err := c.indices.UpdateRecent(req.EntityType, req.EntityID, doc.UpdatedAt)
	idx.record("recent", degraded, err)
	if idx.err != nil {
		return nil, idx.err
	}

	return &UpdateResult{NewVersion: doc.Version, Warnings: idx.warnings}, nil
}

// StepRequest describes one step execution to record.
type StepRequest struct {
	EntityType      string
	EntityID        string
	StepID          string
	StepAction      string
	StepType        string
	ExecutionStatus entity.ExecutionStatus
	OutcomeStatus   entity.OutcomeStatus
	Phase           entity.Phase
	WorkflowID      string
	RunID           string
	WorkID          string
	DurationMs      int64
	RetryCount      int
	ErrorMessage    string
}

// StepResult reports the entity version and the step's cumulative
// execution count after recording.
type StepResult struct {
	NewVersion     int
	ExecutionCount int
	Status         entity.Status
	Warnings       []string
}

// RecordStep upserts the step's status record on the entity, appends an
// immutable entry to the history document, recomputes the overall entity
// status, and bumps the version.
func (c *Client) RecordStep(req StepRequest) (*StepResult, error) {
	if err := validateKey(req.EntityType, req.EntityID); err != nil {
		return nil, err
	}
	if req.StepID == "" {
		return nil, fmt.Errorf("step_id cannot be empty")
	}
	if err := req.ExecutionStatus.Validate(); err != nil {
		return nil, err
	}
	if err := req.OutcomeStatus.Validate(); err != nil {
		return nil, err
	}
	if err := req.Phase.Validate(); err != nil {
		return nil, err
	}
	if req.WorkflowID == "" {
		return nil, fmt.Errorf("workflow_id cannot be empty")
	}
	if req.RunID == "" {
		return nil, fmt.Errorf("run_id cannot be empty")
	}

	handle, err := c.entityLocks.Acquire(EntityLockKey(req.EntityType, req.EntityID), c.entityLockOpts)
	if err != nil {
		return nil, err
	}
	defer handle.Release()

	doc, err := c.Get(req.EntityType, req.EntityID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rec, exists := doc.StepStatus[req.StepID]
	if !exists {
		rec = entity.StepStatusRecord{StepID: req.StepID}
	}
	rec.StepAction = req.StepAction
	rec.StepType = req.StepType
	rec.ExecutionStatus = req.ExecutionStatus
	rec.OutcomeStatus = req.OutcomeStatus
	rec.Phase = req.Phase
	rec.LastExecutedAt = now
	rec.LastExecutedBy = entity.ExecutedBy{
		WorkflowID: req.WorkflowID,
		RunID:      req.RunID,
		WorkID:     req.WorkID,
	}
	rec.ExecutionCount++
	rec.RetryCount = req.RetryCount

	if doc.StepStatus == nil {
		doc.StepStatus = map[string]entity.StepStatusRecord{}
	}
	doc.StepStatus[req.StepID] = rec

	oldStatus := doc.Status
	doc.Status = entity.DeriveStatus(doc.StepStatus)
	doc.Version++
	doc.UpdatedAt = now

	if err := atomicfile.WriteJSON(EntityPath(c.root, req.EntityType, req.EntityID), doc); err != nil {
		return nil, err
	}

	// State is committed; now append the immutable history entry.
	hist, err := c.GetHistory(req.EntityType, req.EntityID)
	if err != nil {
		return nil, err
	}
	hist.StepHistory = append(hist.StepHistory, entity.StepHistoryEntry{
		StepID:          req.StepID,
		StepAction:      req.StepAction,
		StepType:        req.StepType,
		ExecutionStatus: req.ExecutionStatus,
		OutcomeStatus:   req.OutcomeStatus,
		Phase:           req.Phase,
		ExecutedAt:      now,
		WorkflowID:      req.WorkflowID,
		RunID:           req.RunID,
		DurationMs:      req.DurationMs,
		RetryCount:      req.RetryCount,
		ErrorMessage:    req.ErrorMessage,
	})
	if err := atomicfile.WriteJSON(HistoryPath(c.root, req.EntityType, req.EntityID), hist); err != nil {
		return nil, err
	}

	var idx indexOutcome
	key := doc.Key()
	if doc.Status != oldStatus {
		degraded, err := c.indices.UpdateStatus(key, doc.Status, oldStatus)
		idx.record("status", degraded, err)
	}
	degraded, err := c.indices.UpdateStepAction(key, req.StepAction, req.ExecutionStatus)
	idx.record("step-action", degraded, err)
	degraded, err = c.indices.UpdateRecent(req.EntityType, req.EntityID, now)
	idx.record("recent", degraded, err)
	if idx.err != nil {
		return nil, idx.err
	}

	return &StepResult{
		NewVersion:     doc.Version,
		ExecutionCount: rec.ExecutionCount,
		Status:         doc.Status,
		Warnings:       idx.warnings,
	}, nil
}

// WorkflowRequest describes one workflow run summary to append.
type WorkflowRequest struct {
	EntityType    string
	EntityID      string
	WorkflowID    string
	RunID         string
	WorkID        string
	StartedAt     time.Time
	CompletedAt   *time.Time
	Outcome       string
	StepsExecuted []entity.ExecutedStep
}

// RecordWorkflow appends a workflow summary entry to the entity's history
// document. The state document is untouched, so the entity version does
// not change.
func (c *Client) RecordWorkflow(req WorkflowRequest) error {
	if err := validateKey(req.EntityType, req.EntityID); err != nil {
		return err
	}

	summary := entity.WorkflowSummaryEntry{
		WorkflowID:    req.WorkflowID,
		RunID:         req.RunID,
		WorkID:        req.WorkID,
		StartedAt:     req.StartedAt,
		CompletedAt:   req.CompletedAt,
		Outcome:       req.Outcome,
		StepsExecuted: req.StepsExecuted,
	}
	if summary.StepsExecuted == nil {
		summary.StepsExecuted = []entity.ExecutedStep{}
	}
	if err := summary.Validate(); err != nil {
		return err
	}

	handle, err := c.entityLocks.Acquire(EntityLockKey(req.EntityType, req.EntityID), c.entityLockOpts)
	if err != nil {
		return err
	}
	defer handle.Release()

	hist, err := c.GetHistory(req.EntityType, req.EntityID)
	if err != nil {
		return err
	}

	hist.WorkflowSummary = append(hist.WorkflowSummary, summary)

	return atomicfile.WriteJSON(HistoryPath(c.root, req.EntityType, req.EntityID), hist)
}

// RebuildIndices re-derives all four indices from the entity documents,
// replacing prior contents. Explicit recovery only; nothing in the client
// triggers it automatically.
func (c *Client) RebuildIndices() ([]string, error) {
	degraded, err := c.indices.Rebuild(EntitiesDir(c.root))
	if err != nil {
		return nil, err
	}
	if degraded {
		return []string{indexDegradedWarning("rebuild")}, nil
	}
	return nil, nil
}

func validateKey(entityType, entityID string) error {
	if err := entity.ValidateEntityType(entityType); err != nil {
		return err
	}
	return entity.ValidateEntityID(entityID)
}

func indexDegradedWarning(op string) string {
	return fmt.Sprintf("index lock timed out during %s update; indices written without lock (run rebuild-indices if drift is suspected)", op)
}

// indexOutcome accumulates the results of a sequence of index updates.
// A degraded (lock-free) update becomes a warning on the operation result;
// a real write failure becomes the operation error. The primary document
// write has already succeeded by the time any of these run.
type indexOutcome struct {
	warnings []string
	err      error
}

func (o *indexOutcome) record(op string, degraded bool, err error) {
	if err != nil && o.err == nil {
		o.err = err
	}
	if degraded {
		o.warnings = append(o.warnings, indexDegradedWarning(op))
	}
}
