package commands

import (
	"github.com/spf13/cobra"

	"github.com/dyluth/midden/pkg/entity"
)

var (
	queryStepExecStatus string
	queryStepLimit      int
)

var queryStepCmd = &cobra.Command{
	Use:   "query-step <action>",
	Short: "Find entities by recorded step action",
	Long: `Find entities that have recorded a given step action, via the
step-action index. With --execution-status the composite index entry is
used, narrowing to entities whose latest execution of that action is in
the given state.

  midden query-step deploy --execution-status failed`,
	Args: cobra.ExactArgs(1),
	RunE: runQueryStep,
}

func init() {
	queryStepCmd.Flags().StringVar(&queryStepExecStatus, "execution-status", "", "Narrow to this execution status")
	queryStepCmd.Flags().IntVar(&queryStepLimit, "limit", 0, "Maximum entities to return (0 = unbounded)")
	rootCmd.AddCommand(queryStepCmd)
}

func runQueryStep(cmd *cobra.Command, args []string) error {
	client, err := openClient()
	if err != nil {
		return emitFailure(err)
	}

	docs, err := client.EntitiesByStepAction(args[0], entity.ExecutionStatus(queryStepExecStatus), queryStepLimit)
	if err != nil {
		return emitFailure(err)
	}

	return emitSuccess(map[string]any{
		"count":    len(docs),
		"entities": docs,
	})
}
