package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/midden/internal/timespec"
)

var (
	recentSince string
	recentLimit int
	recentType  string
)

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List recently updated entities",
	Long: `List recently updated entities, newest first, from the recent-updates
index. The index is bounded, so very old activity ages out; use list for
exhaustive scans. --since takes a duration ("2h", "30m") or an RFC 3339
timestamp.

  midden recent --since 2h --type blog-post --limit 20`,
	Args: cobra.NoArgs,
	RunE: runRecent,
}

func init() {
	recentCmd.Flags().StringVar(&recentSince, "since", "", "Only entries after this time (duration like '2h' or RFC 3339)")
	recentCmd.Flags().IntVar(&recentLimit, "limit", 0, "Maximum entries to return (0 = all indexed)")
	recentCmd.Flags().StringVar(&recentType, "type", "", "Only entities of this type")
	rootCmd.AddCommand(recentCmd)
}

func runRecent(cmd *cobra.Command, args []string) error {
	var since time.Time
	if recentSince != "" {
		t, err := timespec.Parse(recentSince)
		if err != nil {
			return emitFailure(fmt.Errorf("invalid --since: %w", err))
		}
		since = t
	}

	client, err := openClient()
	if err != nil {
		return emitFailure(err)
	}

	entries, err := client.Recent(since, recentType, recentLimit)
	if err != nil {
		return emitFailure(err)
	}

	return emitSuccess(map[string]any{
		"count":   len(entries),
		"entries": entries,
	})
}
