package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	getIncludeHistory bool
	getField          string
)

var getCmd = &cobra.Command{
	Use:   "get <type> <id>",
	Short: "Read an entity's current state",
	Long: `Read an entity's current-state document.

With --include-history the append-only step history and workflow summaries
are merged into the response. With --field a dot-path projection is applied
to the merged document:

  midden get blog-post post-1 --field status
  midden get blog-post post-1 --field step_status.commit.execution_count`,
	Args: cobra.ExactArgs(2),
	RunE: runGet,
}

func init() {
	getCmd.Flags().BoolVar(&getIncludeHistory, "include-history", false, "Merge step history and workflow summaries into the response")
	getCmd.Flags().StringVar(&getField, "field", "", "Dot-path projection over the (merged) document")
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	client, err := openClient()
	if err != nil {
		return emitFailure(err)
	}

	doc, err := client.Get(args[0], args[1])
	if err != nil {
		return emitFailure(err)
	}

	// Work on the document as a generic map so history merging and field
	// projection share one representation.
	merged, err := toMap(doc)
	if err != nil {
		return emitFailure(err)
	}

	if getIncludeHistory {
		hist, err := client.GetHistory(args[0], args[1])
		if err != nil {
			return emitFailure(err)
		}
		histMap, err := toMap(hist)
		if err != nil {
			return emitFailure(err)
		}
		merged["step_history"] = histMap["step_history"]
		merged["workflow_summary"] = histMap["workflow_summary"]
	}

	if getField != "" {
		value, err := projectField(merged, getField)
		if err != nil {
			return emitFailure(err)
		}
		return emitSuccess(map[string]any{"entity": map[string]any{getField: value}})
	}

	return emitSuccess(map[string]any{"entity": merged})
}

func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to remarshal document: %w", err)
	}
	return m, nil
}

// projectField walks a dot-separated path through nested maps.
func projectField(doc map[string]any, path string) (any, error) {
	var current any = doc
	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field path '%s' does not resolve: '%s' is not an object", path, segment)
		}
		current, ok = m[segment]
		if !ok {
			return nil, fmt.Errorf("field path '%s' does not resolve: no field '%s'", path, segment)
		}
	}
	return current, nil
}
