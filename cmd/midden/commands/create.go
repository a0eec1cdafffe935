package commands

import (
	"github.com/spf13/cobra"

	"github.com/dyluth/midden/pkg/store"
)

var (
	createOrg   string
	createProj  string
	createProps []string
	createTags  []string
)

var createCmd = &cobra.Command{
	Use:   "create <type> <id>",
	Short: "Create a new tracked entity",
	Long: `Create a new tracked entity with status pending and version 1.

The entity key <type>/<id> must be unique; creating an existing entity
fails. Initial properties and tags may be supplied with repeatable flags:

  midden create blog-post post-1 --org acme --project blog \
      --prop title="Launch week" --prop draft=true --tag q3`,
	Args: cobra.ExactArgs(2),
	RunE: runCreate,
}

func init() {
	createCmd.Flags().StringVar(&createOrg, "org", "", "Owning organization (required)")
	createCmd.Flags().StringVar(&createProj, "project", "", "Workflow project scope (required)")
	createCmd.Flags().StringArrayVar(&createProps, "prop", nil, "Initial property key=value (repeatable, value parsed as JSON when possible)")
	createCmd.Flags().StringArrayVar(&createTags, "tag", nil, "Initial tag (repeatable)")
	createCmd.MarkFlagRequired("org")
	createCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	props, err := parseKeyValue(createProps)
	if err != nil {
		return emitFailure(err)
	}

	client, err := openClient()
	if err != nil {
		return emitFailure(err)
	}

	result, err := client.Create(store.CreateRequest{
		EntityType:   args[0],
		EntityID:     args[1],
		Organization: createOrg,
		Project:      createProj,
		Properties:   props,
		Tags:         createTags,
	})
	if err != nil {
		return emitFailure(err)
	}

	reportWarnings(result.Warnings)
	return emitSuccess(map[string]any{
		"entity_path":  result.EntityPath,
		"history_path": result.HistoryPath,
	})
}
