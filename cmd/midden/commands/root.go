package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyluth/midden/internal/config"
	"github.com/dyluth/midden/pkg/store"
)

var (
	version string
	commit  string
	date    string

	// Global flags
	rootDir    string
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "midden",
	Short: "Midden - file-backed entity tracking for AI workflows",
	Long: `Midden is a file-backed entity tracking store for multi-step AI workflow
orchestration. Workflows touch long-lived entities (a blog post, an
infrastructure resource) across repeated, possibly concurrent, steps; each
step durably records its outcome and later queries find entities by
status, type, or pending step.

All state lives on a plain filesystem: atomic document writes, optimistic
concurrency, an append-only audit history, and rebuildable secondary
indices. Every command emits a single JSON response on stdout.`,
	Version: version,

	// Domain errors are reported as JSON envelopes on stdout; keep cobra
	// from printing them a second time.
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", fmt.Sprintf("Store root directory (overrides %s and %s; default %q)", config.DefaultFileName, config.RootEnvVar, config.DefaultRoot))
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultFileName, "Path to midden.yml")
}

// openClient loads configuration and opens the store for a command run.
func openClient() (*store.Client, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	return store.NewClient(cfg.ResolveRoot(rootDir), cfg.StoreOptions())
}
