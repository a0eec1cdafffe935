package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyluth/midden/internal/config"
	"github.com/dyluth/midden/internal/printer"
	"github.com/dyluth/midden/internal/scaffold"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a midden store in the current directory",
	Long: `Initialize a midden store in the current directory.

Creates:
  • midden.yml - store configuration with documented defaults
  • the store root (entities/, indices/, locks/)

Use --force to overwrite an existing midden.yml. Entity documents are
never touched.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing midden.yml")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if !forceInit {
		if err := scaffold.CheckExisting(); err != nil {
			return printer.Error("Store already initialized",
				fmt.Sprintf("%s already exists in this directory.", config.DefaultFileName),
				[]string{"Run 'midden init --force' to overwrite the configuration"})
		}
	}

	root := rootDir
	if root == "" {
		root = config.DefaultRoot
	}

	if err := scaffold.Initialize(root, forceInit); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	scaffold.PrintSuccess(root)

	return nil
}
