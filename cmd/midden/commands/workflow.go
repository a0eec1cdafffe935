package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/midden/pkg/entity"
	"github.com/dyluth/midden/pkg/store"
)

var (
	wfWorkflowID  string
	wfRunID       string
	wfWorkID      string
	wfStartedAt   string
	wfCompletedAt string
	wfOutcome     string
	wfSteps       []string
)

var workflowCmd = &cobra.Command{
	Use:   "record-workflow <type> <id>",
	Short: "Append a workflow run summary to an entity's history",
	Long: `Append a workflow run summary to an entity's append-only history.

Only the history document changes; the entity version does not move.

  midden record-workflow blog-post post-1 --workflow-id publish \
      --run-id run-42 --started-at 2026-08-29T09:00:00Z \
      --completed-at 2026-08-29T09:05:12Z --outcome success \
      --executed-step commit:commit --executed-step deploy:deploy`,
	Args: cobra.ExactArgs(2),
	RunE: runRecordWorkflow,
}

func init() {
	workflowCmd.Flags().StringVar(&wfWorkflowID, "workflow-id", "", "Workflow identifier (required)")
	workflowCmd.Flags().StringVar(&wfRunID, "run-id", "", "Run identifier (required)")
	workflowCmd.Flags().StringVar(&wfWorkID, "work-id", "", "Work item identifier")
	workflowCmd.Flags().StringVar(&wfStartedAt, "started-at", "", "Run start time, RFC 3339 (required)")
	workflowCmd.Flags().StringVar(&wfCompletedAt, "completed-at", "", "Run completion time, RFC 3339")
	workflowCmd.Flags().StringVar(&wfOutcome, "outcome", "", "Run outcome (required)")
	workflowCmd.Flags().StringArrayVar(&wfSteps, "executed-step", nil, "Executed step as step_id[:action[:type]] (repeatable)")
	workflowCmd.MarkFlagRequired("workflow-id")
	workflowCmd.MarkFlagRequired("run-id")
	workflowCmd.MarkFlagRequired("started-at")
	workflowCmd.MarkFlagRequired("outcome")
	rootCmd.AddCommand(workflowCmd)
}

func runRecordWorkflow(cmd *cobra.Command, args []string) error {
	startedAt, err := parseTimestamp("--started-at", wfStartedAt)
	if err != nil {
		return emitFailure(err)
	}

	var completedAt *time.Time
	if wfCompletedAt != "" {
		t, err := parseTimestamp("--completed-at", wfCompletedAt)
		if err != nil {
			return emitFailure(err)
		}
		completedAt = &t
	}

	steps, err := parseExecutedSteps(wfSteps)
	if err != nil {
		return emitFailure(err)
	}

	client, err := openClient()
	if err != nil {
		return emitFailure(err)
	}

	err = client.RecordWorkflow(store.WorkflowRequest{
		EntityType:    args[0],
		EntityID:      args[1],
		WorkflowID:    wfWorkflowID,
		RunID:         wfRunID,
		WorkID:        wfWorkID,
		StartedAt:     startedAt,
		CompletedAt:   completedAt,
		Outcome:       wfOutcome,
		StepsExecuted: steps,
	})
	if err != nil {
		return emitFailure(err)
	}

	return emitSuccess(map[string]any{"workflow_id": wfWorkflowID})
}

// parseExecutedSteps splits repeatable "step_id[:action[:type]]" flags.
func parseExecutedSteps(specs []string) ([]entity.ExecutedStep, error) {
	if len(specs) == 0 {
		return nil, nil
	}

	steps := make([]entity.ExecutedStep, 0, len(specs))
	for _, spec := range specs {
		parts := strings.SplitN(spec, ":", 3)
		if parts[0] == "" {
			return nil, fmt.Errorf("invalid executed step '%s': expected step_id[:action[:type]]", spec)
		}
		step := entity.ExecutedStep{StepID: parts[0]}
		if len(parts) > 1 {
			step.StepAction = parts[1]
		}
		if len(parts) > 2 {
			step.StepType = parts[2]
		}
		steps = append(steps, step)
	}

	return steps, nil
}
