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
	updateStatus    string
	updateProps     []string
	updateArtifacts []string
	updateTags      []string
	updateExpectVer int
	updateStep      string
	updateRun       string
)

var updateCmd = &cobra.Command{
	Use:   "update <type> <id>",
	Short: "Merge changes into an entity",
	Long: `Merge changes into an entity under its lock and bump its version.

Each flag maps to one named merge operation: --status replaces the overall
status, --prop deep-merges properties by key, --artifact appends to the
artifact list, --tag unions into the tag set. With --expect-version the
update only applies if the stored version still matches (optimistic
concurrency); on mismatch the document is untouched and the response
status is "conflict".

  midden update blog-post post-1 --status completed --expect-version 3
  midden update infra-vpc main --artifact plan:out/tfplan --prop region=eu-west-1`,
	Args: cobra.ExactArgs(2),
	RunE: runUpdate,
}

func init() {
	updateCmd.Flags().StringVar(&updateStatus, "status", "", "New overall status (replaces current)")
	updateCmd.Flags().StringArrayVar(&updateProps, "prop", nil, "Property key=value to merge (repeatable)")
	updateCmd.Flags().StringArrayVar(&updateArtifacts, "artifact", nil, "Artifact type:path to append (repeatable)")
	updateCmd.Flags().StringArrayVar(&updateTags, "tag", nil, "Tag to add (repeatable)")
	updateCmd.Flags().IntVar(&updateExpectVer, "expect-version", 0, "Expected current version (0 disables the check)")
	updateCmd.Flags().StringVar(&updateStep, "step", "", "Step to attribute appended artifacts to")
	updateCmd.Flags().StringVar(&updateRun, "run", "", "Run to attribute appended artifacts to")
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	props, err := parseKeyValue(updateProps)
	if err != nil {
		return emitFailure(err)
	}

	artifacts, err := parseArtifacts(updateArtifacts)
	if err != nil {
		return emitFailure(err)
	}

	client, err := openClient()
	if err != nil {
		return emitFailure(err)
	}

	result, err := client.Update(store.UpdateRequest{
		EntityType:      args[0],
		EntityID:        args[1],
		Status:          entity.Status(updateStatus),
		Properties:      props,
		Artifacts:       artifacts,
		AddTags:         updateTags,
		ExpectedVersion: updateExpectVer,
	})
	if err != nil {
		return emitFailure(err)
	}

	reportWarnings(result.Warnings)
	return emitSuccess(map[string]any{"new_version": result.NewVersion})
}

// parseArtifacts splits repeatable "type:path" flags into artifact records
// stamped with the current time and the attributing step/run flags.
func parseArtifacts(pairs []string) ([]entity.Artifact, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	artifacts := make([]entity.Artifact, 0, len(pairs))
	for _, pair := range pairs {
		artifactType, path, ok := strings.Cut(pair, ":")
		if !ok || artifactType == "" || path == "" {
			return nil, fmt.Errorf("invalid artifact '%s': expected type:path", pair)
		}
		artifacts = append(artifacts, entity.Artifact{
			Type:         artifactType,
			Path:         path,
			CreatedAt:    now,
			CreatedBy:    updateStep,
			CreatedByRun: updateRun,
		})
	}

	return artifacts, nil
}
