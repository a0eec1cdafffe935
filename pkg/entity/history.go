package entity

import (
	"fmt"
	"time"
)

// EntityHistory is the append-only companion document for one entity.
// Entries are immutable once written: the store only ever appends to the
// two lists, never edits or removes.
type EntityHistory struct {
	EntityType      string                 `json:"entity_type"`
	EntityID        string                 `json:"entity_id"`
	StepHistory     []StepHistoryEntry     `json:"step_history"`
	WorkflowSummary []WorkflowSummaryEntry `json:"workflow_summary"`
}

// StepHistoryEntry records one step execution as it happened.
// Unlike StepStatusRecord, which is upserted in place, every execution
// appends a fresh entry here.
type StepHistoryEntry struct {
	StepID          string          `json:"step_id"`
	StepAction      string          `json:"step_action,omitempty"`
	StepType        string          `json:"step_type,omitempty"`
	ExecutionStatus ExecutionStatus `json:"execution_status"`
	OutcomeStatus   OutcomeStatus   `json:"outcome_status,omitempty"`
	Phase           Phase           `json:"phase"`
	ExecutedAt      time.Time       `json:"executed_at"`
	WorkflowID      string          `json:"workflow_id"`
	RunID           string          `json:"run_id"`
	DurationMs      int64           `json:"duration_ms,omitempty"`
	RetryCount      int             `json:"retry_count,omitempty"`
	ErrorMessage    string          `json:"error_message,omitempty"`
}

// WorkflowSummaryEntry records the outcome of one whole workflow run
// against the entity.
type WorkflowSummaryEntry struct {
	WorkflowID    string         `json:"workflow_id"`
	RunID         string         `json:"run_id"`
	WorkID        string         `json:"work_id,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	Outcome       string         `json:"outcome"`
	StepsExecuted []ExecutedStep `json:"steps_executed"`
}

// ExecutedStep identifies one step touched by a workflow run.
type ExecutedStep struct {
	StepID     string `json:"step_id"`
	StepAction string `json:"step_action,omitempty"`
	StepType   string `json:"step_type,omitempty"`
}

// NewHistory returns an empty history document for the given entity.
func NewHistory(entityType, entityID string) *EntityHistory {
	return &EntityHistory{
		EntityType:      entityType,
		EntityID:        entityID,
		StepHistory:     []StepHistoryEntry{},
		WorkflowSummary: []WorkflowSummaryEntry{},
	}
}

// Validate checks if the StepHistoryEntry has valid field values.
func (e *StepHistoryEntry) Validate() error {
	if e.StepID == "" {
		return fmt.Errorf("step_id cannot be empty")
	}

	if err := e.ExecutionStatus.Validate(); err != nil {
		return fmt.Errorf("invalid execution status: %w", err)
	}

	if err := e.OutcomeStatus.Validate(); err != nil {
		return fmt.Errorf("invalid outcome status: %w", err)
	}

	if err := e.Phase.Validate(); err != nil {
		return fmt.Errorf("invalid phase: %w", err)
	}

	if e.WorkflowID == "" {
		return fmt.Errorf("workflow_id cannot be empty")
	}

	if e.RunID == "" {
		return fmt.Errorf("run_id cannot be empty")
	}

	return nil
}

// Validate checks if the WorkflowSummaryEntry has valid field values.
func (e *WorkflowSummaryEntry) Validate() error {
	if e.WorkflowID == "" {
		return fmt.Errorf("workflow_id cannot be empty")
	}

	if e.RunID == "" {
		return fmt.Errorf("run_id cannot be empty")
	}

	if e.StartedAt.IsZero() {
		return fmt.Errorf("started_at cannot be zero")
	}

	if e.Outcome == "" {
		return fmt.Errorf("outcome cannot be empty")
	}

	return nil
}
