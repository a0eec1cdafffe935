package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rebuildForce bool

var rebuildCmd = &cobra.Command{
	Use:   "rebuild-indices",
	Short: "Rebuild all derived indices from the entity documents",
	Long: `Rebuild all four derived indices (by-status, by-type, by-step-action,
recent-updates) from scratch by scanning every entity document.

This is the recovery path when indices are suspected inconsistent, for
example after a crash between a document write and its index update. It
replaces index contents entirely and can run while other processes
operate on the store. It is never triggered automatically; --force is
required to confirm the intent.`,
	Args: cobra.NoArgs,
	RunE: runRebuild,
}

func init() {
	rebuildCmd.Flags().BoolVar(&rebuildForce, "force", false, "Confirm the rebuild")
	rootCmd.AddCommand(rebuildCmd)
}

func runRebuild(cmd *cobra.Command, args []string) error {
	if !rebuildForce {
		return emitFailure(fmt.Errorf("rebuild-indices replaces all index contents; re-run with --force to confirm"))
	}

	client, err := openClient()
	if err != nil {
		return emitFailure(err)
	}

	warnings, err := client.RebuildIndices()
	if err != nil {
		return emitFailure(err)
	}

	reportWarnings(warnings)
	return emitSuccess(map[string]any{"rebuilt": true})
}
