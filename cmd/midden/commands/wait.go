package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/midden/internal/watch"
	"github.com/dyluth/midden/pkg/entity"
)

var (
	waitStepID     string
	waitExecStatus string
	waitTimeout    time.Duration
)

var waitCmd = &cobra.Command{
	Use:   "wait-step <type> <id>",
	Short: "Block until an entity's step reaches an execution status",
	Long: `Block until the named step on an entity reaches the wanted execution
status, polling the store. Lets a script wait for a step another process
is executing:

  midden wait-step blog-post post-1 --step deploy \
      --execution-status completed --timeout 5m`,
	Args: cobra.ExactArgs(2),
	RunE: runWait,
}

func init() {
	waitCmd.Flags().StringVar(&waitStepID, "step", "", "Step identifier to wait for (required)")
	waitCmd.Flags().StringVar(&waitExecStatus, "execution-status", string(entity.ExecutionCompleted), "Execution status to wait for")
	waitCmd.Flags().DurationVar(&waitTimeout, "timeout", 5*time.Minute, "Give up after this long")
	waitCmd.MarkFlagRequired("step")
	rootCmd.AddCommand(waitCmd)
}

func runWait(cmd *cobra.Command, args []string) error {
	want := entity.ExecutionStatus(waitExecStatus)
	if err := want.Validate(); err != nil {
		return emitFailure(err)
	}
	if waitTimeout <= 0 {
		return emitFailure(fmt.Errorf("--timeout must be positive, got %v", waitTimeout))
	}

	client, err := openClient()
	if err != nil {
		return emitFailure(err)
	}

	record, err := watch.PollForStep(context.Background(), client, args[0], args[1], waitStepID, want, waitTimeout)
	if err != nil {
		return emitFailure(err)
	}

	return emitSuccess(map[string]any{
		"step_id":          waitStepID,
		"execution_status": record.ExecutionStatus,
		"execution_count":  record.ExecutionCount,
		"last_executed_by": record.LastExecutedBy,
	})
}
