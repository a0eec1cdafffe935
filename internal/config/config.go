// Package config loads and validates midden.yml, the store configuration
// file. All fields are optional: a missing file or an empty document yields
// a fully defaulted configuration, so `midden` works out of the box in any
// directory.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dyluth/midden/pkg/store"
)

const (
	// DefaultFileName is the config file looked up in the working directory.
	DefaultFileName = "midden.yml"

	// DefaultRoot is the store root used when none is configured.
	DefaultRoot = ".midden"

	// RootEnvVar overrides the configured store root when set.
	RootEnvVar = "MIDDEN_ROOT"
)

// Config represents the top-level midden.yml configuration.
type Config struct {
	Root    string         `yaml:"root,omitempty"`
	Locks   *LocksConfig   `yaml:"locks,omitempty"`
	Indices *IndicesConfig `yaml:"indices,omitempty"`
}

// LocksConfig tunes lock acquisition. Entity locks guard document
// mutations and must hard-fail on timeout; index locks guard the derived
// indices and degrade to lock-free writes, so they run much shorter.
type LocksConfig struct {
	EntityTimeoutSeconds *int `yaml:"entity_timeout_seconds,omitempty"` // Default: 30
	EntityPollMs         *int `yaml:"entity_poll_ms,omitempty"`         // Default: 500
	EntityMaxAgeSeconds  *int `yaml:"entity_max_age_seconds,omitempty"` // Stale reclamation bound, default: 300
	IndexTimeoutSeconds  *int `yaml:"index_timeout_seconds,omitempty"`  // Default: 5
	IndexPollMs          *int `yaml:"index_poll_ms,omitempty"`          // Default: 100
}

// IndicesConfig tunes the derived indices.
type IndicesConfig struct {
	RecentLimit *int `yaml:"recent_limit,omitempty"` // Bound on recent-updates entries, default: 1000
}

// Validate checks the configuration and rejects values that would make the
// store misbehave rather than merely perform badly.
func (c *Config) Validate() error {
	if c.Locks != nil {
		for name, v := range map[string]*int{
			"entity_timeout_seconds": c.Locks.EntityTimeoutSeconds,
			"entity_poll_ms":         c.Locks.EntityPollMs,
			"entity_max_age_seconds": c.Locks.EntityMaxAgeSeconds,
			"index_timeout_seconds":  c.Locks.IndexTimeoutSeconds,
			"index_poll_ms":          c.Locks.IndexPollMs,
		} {
			if v != nil && *v <= 0 {
				return fmt.Errorf("locks.%s must be > 0, got %d", name, *v)
			}
		}
	}

	if c.Indices != nil && c.Indices.RecentLimit != nil && *c.Indices.RecentLimit < 1 {
		return fmt.Errorf("indices.recent_limit must be >= 1, got %d", *c.Indices.RecentLimit)
	}

	return nil
}

// Load reads and validates the config file at path. A missing file is not
// an error; it yields the default configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// ResolveRoot picks the store root: explicit flag value, then the
// MIDDEN_ROOT environment variable, then the configured root, then the
// default.
func (c *Config) ResolveRoot(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(RootEnvVar); env != "" {
		return env
	}
	if c.Root != "" {
		return c.Root
	}
	return DefaultRoot
}

// StoreOptions converts the configuration into store tuning, applying
// defaults for unset fields.
func (c *Config) StoreOptions() store.Options {
	opts := store.DefaultOptions()

	if c.Locks != nil {
		if v := c.Locks.EntityTimeoutSeconds; v != nil {
			opts.EntityLockTimeout = time.Duration(*v) * time.Second
		}
		if v := c.Locks.EntityPollMs; v != nil {
			opts.EntityLockPoll = time.Duration(*v) * time.Millisecond
		}
		if v := c.Locks.EntityMaxAgeSeconds; v != nil {
			opts.EntityLockMaxAge = time.Duration(*v) * time.Second
		}
		if v := c.Locks.IndexTimeoutSeconds; v != nil {
			opts.IndexLockTimeout = time.Duration(*v) * time.Second
		}
		if v := c.Locks.IndexPollMs; v != nil {
			opts.IndexLockPoll = time.Duration(*v) * time.Millisecond
		}
	}

	if c.Indices != nil && c.Indices.RecentLimit != nil {
		opts.RecentLimit = *c.Indices.RecentLimit
	}

	return opts
}
