package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyluth/midden/pkg/entity"
	"github.com/dyluth/midden/pkg/store"
)

var (
	listStatus     string
	listStepAction string
	listExecStatus string
	listTagGlob    string
	listLimit      int
	listTable      bool
)

var listCmd = &cobra.Command{
	Use:   "list <type>",
	Short: "List entities of a type",
	Long: `List the entity documents of one type, optionally filtered.

Filters are ANDed: --status matches the overall status, --step-action
matches entities that have recorded the step action, --execution-status
narrows the step-action match, --tag matches any tag against a glob
pattern. This scans documents rather than the indices, so it answers
combinations the indices cannot.

Use --table for a human-readable summary instead of the JSON response.`,
	Args: cobra.ExactArgs(1),
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "Filter by overall status")
	listCmd.Flags().StringVar(&listStepAction, "step-action", "", "Filter by recorded step action")
	listCmd.Flags().StringVar(&listExecStatus, "execution-status", "", "Narrow --step-action by execution status")
	listCmd.Flags().StringVar(&listTagGlob, "tag", "", "Filter by tag glob, e.g. 'q3-*'")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "Maximum entities to return (0 = unbounded)")
	listCmd.Flags().BoolVar(&listTable, "table", false, "Print a human-readable table instead of JSON")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	client, err := openClient()
	if err != nil {
		return emitFailure(err)
	}

	docs, err := client.List(args[0], store.ListFilters{
		Status:          entity.Status(listStatus),
		StepAction:      listStepAction,
		ExecutionStatus: entity.ExecutionStatus(listExecStatus),
		TagGlob:         listTagGlob,
	}, listLimit)
	if err != nil {
		return emitFailure(err)
	}

	if listTable {
		outputEntityTable(docs)
		return nil
	}

	return emitSuccess(map[string]any{
		"count":    len(docs),
		"entities": docs,
	})
}

func outputEntityTable(docs []*entity.Entity) {
	if len(docs) == 0 {
		fmt.Println("No entities found.")
		return
	}

	// Print header
	fmt.Printf("%-40s %-12s %-8s %-6s %s\n", "KEY", "STATUS", "VERSION", "STEPS", "UPDATED")

	// Print rows
	for _, doc := range docs {
		key := doc.Key()
		if len(key) > 40 {
			key = key[:37] + "..."
		}
		fmt.Printf("%-40s %-12s %-8d %-6d %s\n",
			key, doc.Status, doc.Version, len(doc.StepStatus),
			doc.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
}
