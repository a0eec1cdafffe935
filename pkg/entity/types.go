package entity

import (
	"fmt"
	"time"
)

// Entity is the current-state document for one tracked work product.
// Exactly one exists per (EntityType, EntityID) pair; the pair forms the
// storage key and must satisfy the identifier grammar in identifiers.go.
type Entity struct {
	Organization string                      `json:"organization"`        // Owning tenant
	Project      string                      `json:"project"`             // Workflow scope within the tenant
	EntityType   string                      `json:"entity_type"`         // Stable identity, first key segment
	EntityID     string                      `json:"entity_id"`           // Stable identity, second key segment
	Status       Status                      `json:"status"`              // Overall lifecycle state
	StepStatus   map[string]StepStatusRecord `json:"step_status"`         // step_id → latest execution record
	Properties   map[string]any              `json:"properties"`          // Open key→value, merged on update
	Artifacts    []Artifact                  `json:"artifacts"`           // Append-only ordered list
	Tags         []string                    `json:"tags"`                // Set semantics, union-merged
	Version      int                         `json:"version"`             // Starts at 1, +1 per successful mutation
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

// Key returns the canonical "type/id" entity key used by locks and indices.
func (e *Entity) Key() string {
	return Key(e.EntityType, e.EntityID)
}

// Key builds the canonical "type/id" entity key.
func Key(entityType, entityID string) string {
	return fmt.Sprintf("%s/%s", entityType, entityID)
}

// StepStatusRecord is the latest known state of one step within an entity.
// It is upserted in place on every record-step call; the immutable per-run
// trail lives in EntityHistory instead.
type StepStatusRecord struct {
	StepID          string          `json:"step_id"`
	StepAction      string          `json:"step_action,omitempty"` // e.g. "commit", "deploy"
	StepType        string          `json:"step_type,omitempty"`
	ExecutionStatus ExecutionStatus `json:"execution_status"`
	OutcomeStatus   OutcomeStatus   `json:"outcome_status,omitempty"`
	Phase           Phase           `json:"phase"`
	LastExecutedAt  time.Time       `json:"last_executed_at"`
	LastExecutedBy  ExecutedBy      `json:"last_executed_by"`
	ExecutionCount  int             `json:"execution_count"` // Total invocations of this step
	RetryCount      int             `json:"retry_count"`
}

// ExecutedBy identifies the workflow run that last touched a step.
type ExecutedBy struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
	WorkID     string `json:"work_id,omitempty"`
}

// Artifact records one work product file attached to an entity.
// The artifacts list is append-only: existing entries are never rewritten.
type Artifact struct {
	Type         string    `json:"type"`
	Path         string    `json:"path"`
	CreatedAt    time.Time `json:"created_at"`
	CreatedBy    string    `json:"created_by_step,omitempty"`
	CreatedByRun string    `json:"created_by_run,omitempty"`
}

// Status is the overall lifecycle state of an entity.
type Status string

const (
	// StatusPending indicates the entity exists but no step has run yet
	StatusPending Status = "pending"

	// StatusInProgress indicates at least one step is underway or the step set is mixed
	StatusInProgress Status = "in_progress"

	// StatusCompleted indicates every recorded step completed
	StatusCompleted Status = "completed"

	// StatusFailed indicates at least one step failed and none are still running
	StatusFailed Status = "failed"

	// StatusBlocked indicates the entity is waiting on an external dependency
	StatusBlocked Status = "blocked"

	// StatusSkipped indicates the entity was deliberately passed over
	StatusSkipped Status = "skipped"

	// StatusArchived indicates the entity is retired; archival stands in for deletion
	StatusArchived Status = "archived"
)

// ExecutionStatus is the lifecycle state of one step invocation.
// It is independent of OutcomeStatus: a step can complete with a failure
// outcome (ran to the end, produced a bad result).
type ExecutionStatus string

const (
	ExecutionStarted    ExecutionStatus = "started"
	ExecutionInProgress ExecutionStatus = "in_progress"
	ExecutionCompleted  ExecutionStatus = "completed"
	ExecutionFailed     ExecutionStatus = "failed"
	ExecutionSkipped    ExecutionStatus = "skipped"
)

// OutcomeStatus is the quality judgment of a step's result, orthogonal to
// its execution lifecycle.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailure OutcomeStatus = "failure"
	OutcomeWarning OutcomeStatus = "warning"
	OutcomePartial OutcomeStatus = "partial"
)

// Phase names the methodology stage a step belongs to.
type Phase string

const (
	PhaseFrame     Phase = "frame"
	PhaseArchitect Phase = "architect"
	PhaseBuild     Phase = "build"
	PhaseEvaluate  Phase = "evaluate"
	PhaseRelease   Phase = "release"
)

// Validate checks if the Status is a valid enum value.
func (s Status) Validate() error {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed,
		StatusBlocked, StatusSkipped, StatusArchived:
		return nil
	default:
		return fmt.Errorf("unknown status: %q", s)
	}
}

// Validate checks if the ExecutionStatus is a valid enum value.
func (es ExecutionStatus) Validate() error {
	switch es {
	case ExecutionStarted, ExecutionInProgress, ExecutionCompleted,
		ExecutionFailed, ExecutionSkipped:
		return nil
	default:
		return fmt.Errorf("unknown execution status: %q", es)
	}
}

// Validate checks if the OutcomeStatus is a valid enum value.
// An empty outcome is valid: outcome is optional until a step finishes.
func (os OutcomeStatus) Validate() error {
	switch os {
	case "", OutcomeSuccess, OutcomeFailure, OutcomeWarning, OutcomePartial:
		return nil
	default:
		return fmt.Errorf("unknown outcome status: %q", os)
	}
}

// Validate checks if the Phase is a valid enum value.
func (p Phase) Validate() error {
	switch p {
	case PhaseFrame, PhaseArchitect, PhaseBuild, PhaseEvaluate, PhaseRelease:
		return nil
	default:
		return fmt.Errorf("unknown phase: %q", p)
	}
}

// Validate checks if the Entity has valid field values.
// Returns an error if any validation fails.
func (e *Entity) Validate() error {
	if err := ValidateEntityType(e.EntityType); err != nil {
		return fmt.Errorf("invalid entity type: %w", err)
	}

	if err := ValidateEntityID(e.EntityID); err != nil {
		return fmt.Errorf("invalid entity ID: %w", err)
	}

	if err := ValidateOrganization(e.Organization); err != nil {
		return fmt.Errorf("invalid organization: %w", err)
	}

	if err := ValidateProject(e.Project); err != nil {
		return fmt.Errorf("invalid project: %w", err)
	}

	if err := e.Status.Validate(); err != nil {
		return fmt.Errorf("invalid status: %w", err)
	}

	if e.Version < 1 {
		return fmt.Errorf("invalid version: must be >= 1, got %d", e.Version)
	}

	for stepID, rec := range e.StepStatus {
		if rec.StepID != stepID {
			return fmt.Errorf("step_status key %q does not match record step_id %q", stepID, rec.StepID)
		}
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("invalid step %q: %w", stepID, err)
		}
	}

	return nil
}

// Validate checks if the StepStatusRecord has valid field values.
func (r *StepStatusRecord) Validate() error {
	if r.StepID == "" {
		return fmt.Errorf("step_id cannot be empty")
	}

	if err := r.ExecutionStatus.Validate(); err != nil {
		return fmt.Errorf("invalid execution status: %w", err)
	}

	if err := r.OutcomeStatus.Validate(); err != nil {
		return fmt.Errorf("invalid outcome status: %w", err)
	}

	if err := r.Phase.Validate(); err != nil {
		return fmt.Errorf("invalid phase: %w", err)
	}

	if r.ExecutionCount < 0 {
		return fmt.Errorf("execution_count cannot be negative, got %d", r.ExecutionCount)
	}

	return nil
}
