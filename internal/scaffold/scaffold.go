// Package scaffold initializes a new midden store: the midden.yml starter
// configuration and the on-disk layout the store expects.
package scaffold

import (
	"fmt"
	"os"

	"github.com/dyluth/midden/internal/config"
	"github.com/dyluth/midden/internal/printer"
	"github.com/dyluth/midden/pkg/store"
)

// starterConfig is written as midden.yml on init. Every field is optional;
// the commented values document the defaults.
const starterConfig = `# midden store configuration
root: %s

# locks:
#   entity_timeout_seconds: 30   # mutation wait for the entity lock
#   entity_poll_ms: 500
#   entity_max_age_seconds: 300  # stale entity lock reclamation bound
#   index_timeout_seconds: 5     # index updates degrade past this, never fail
#   index_poll_ms: 100

# indices:
#   recent_limit: 1000           # recent-updates index bound
`

// CheckExisting returns an error if midden.yml already exists, so a plain
// init never clobbers configuration.
func CheckExisting() error {
	if _, err := os.Stat(config.DefaultFileName); err == nil {
		return fmt.Errorf("store already initialized: %s exists", config.DefaultFileName)
	}
	return nil
}

// Initialize writes the starter midden.yml and creates the store layout
// under root. With force, an existing midden.yml is replaced; entity
// documents are never touched.
func Initialize(root string, force bool) error {
	if force {
		if _, err := os.Stat(config.DefaultFileName); err == nil {
			printer.Warning("Replacing existing %s...\n", config.DefaultFileName)
			if err := os.Remove(config.DefaultFileName); err != nil {
				return fmt.Errorf("failed to remove %s: %w", config.DefaultFileName, err)
			}
		}
	}

	if root == "" {
		root = config.DefaultRoot
	}

	content := fmt.Sprintf(starterConfig, root)
	if err := os.WriteFile(config.DefaultFileName, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", config.DefaultFileName, err)
	}

	// Opening the store creates entities/, indices/, and the lock roots.
	if _, err := store.NewClient(root, store.Options{}); err != nil {
		return fmt.Errorf("failed to create store layout: %w", err)
	}

	// Round-trip the file we just wrote so a template mistake fails here,
	// not on the first real command.
	if _, err := config.Load(config.DefaultFileName); err != nil {
		return fmt.Errorf("generated configuration is invalid: %w", err)
	}

	return nil
}

// PrintSuccess reports what Initialize created.
func PrintSuccess(root string) {
	printer.Success("Initialized midden store\n")
	printer.Info("\nCreated:\n")
	printer.Info("  • %s - store configuration\n", config.DefaultFileName)
	printer.Info("  • %s/ - store root (entities, indices, locks)\n", root)
	printer.Info("\nNext: midden create <type> <id> --org <org> --project <project>\n")
}
