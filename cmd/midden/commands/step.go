package commands

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dyluth/midden/pkg/entity"
	"github.com/dyluth/midden/pkg/store"
)

var (
	stepID         string
	stepAction     string
	stepType       string
	stepExecStatus string
	stepOutcome    string
	stepPhase      string
	stepWorkflowID string
	stepRunID      string
	stepWorkID     string
	stepDurationMs int64
	stepRetryCount int
	stepErrMessage string
)

var stepCmd = &cobra.Command{
	Use:   "record-step <type> <id>",
	Short: "Record one step execution against an entity",
	Long: `Record one step execution against an entity.

The step's status record on the entity is upserted (bumping its execution
count), an immutable entry is appended to the entity's history, the overall
entity status is recomputed from all steps, and the version increases by 1.

  midden record-step blog-post post-1 --step commit --action commit \
      --execution-status completed --outcome success --phase build \
      --workflow-id publish --run-id run-42`,
	Args: cobra.ExactArgs(2),
	RunE: runRecordStep,
}

func init() {
	stepCmd.Flags().StringVar(&stepID, "step", "", "Step identifier, unique within the entity (required)")
	stepCmd.Flags().StringVar(&stepAction, "action", "", "Step action, e.g. commit, deploy")
	stepCmd.Flags().StringVar(&stepType, "step-type", "", "Step type")
	stepCmd.Flags().StringVar(&stepExecStatus, "execution-status", "", "Execution status: started, in_progress, completed, failed, skipped (required)")
	stepCmd.Flags().StringVar(&stepOutcome, "outcome", "", "Outcome status: success, failure, warning, partial")
	stepCmd.Flags().StringVar(&stepPhase, "phase", "", "Workflow phase: frame, architect, build, evaluate, release (required)")
	stepCmd.Flags().StringVar(&stepWorkflowID, "workflow-id", "", "Workflow identifier (required)")
	stepCmd.Flags().StringVar(&stepRunID, "run-id", "", "Run identifier (generated if omitted)")
	stepCmd.Flags().StringVar(&stepWorkID, "work-id", "", "Work item identifier")
	stepCmd.Flags().Int64Var(&stepDurationMs, "duration-ms", 0, "Step duration in milliseconds")
	stepCmd.Flags().IntVar(&stepRetryCount, "retry-count", 0, "Retry count for this execution")
	stepCmd.Flags().StringVar(&stepErrMessage, "error-message", "", "Error message for failed executions")
	stepCmd.MarkFlagRequired("step")
	stepCmd.MarkFlagRequired("execution-status")
	stepCmd.MarkFlagRequired("phase")
	stepCmd.MarkFlagRequired("workflow-id")
	rootCmd.AddCommand(stepCmd)
}

func runRecordStep(cmd *cobra.Command, args []string) error {
	client, err := openClient()
	if err != nil {
		return emitFailure(err)
	}

	runID := stepRunID
	if runID == "" {
		runID = uuid.New().String()
	}

	result, err := client.RecordStep(store.StepRequest{
		EntityType:      args[0],
		EntityID:        args[1],
		StepID:          stepID,
		StepAction:      stepAction,
		StepType:        stepType,
		ExecutionStatus: entity.ExecutionStatus(stepExecStatus),
		OutcomeStatus:   entity.OutcomeStatus(stepOutcome),
		Phase:           entity.Phase(stepPhase),
		WorkflowID:      stepWorkflowID,
		RunID:           runID,
		WorkID:          stepWorkID,
		DurationMs:      stepDurationMs,
		RetryCount:      stepRetryCount,
		ErrorMessage:    stepErrMessage,
	})
	if err != nil {
		return emitFailure(err)
	}

	reportWarnings(result.Warnings)
	return emitSuccess(map[string]any{
		"new_version":     result.NewVersion,
		"execution_count": result.ExecutionCount,
		"entity_status":   result.Status,
	})
}
