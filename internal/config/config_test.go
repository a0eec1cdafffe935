package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	config, err := Load(filepath.Join(t.TempDir(), DefaultFileName))
	if err != nil {
		t.Fatalf("missing config file should not be an error, got: %v", err)
	}
	if config.Root != "" || config.Locks != nil || config.Indices != nil {
		t.Errorf("expected empty config, got %+v", config)
	}

	opts := config.StoreOptions()
	if opts.EntityLockTimeout != 30*time.Second {
		t.Errorf("expected default entity lock timeout 30s, got %v", opts.EntityLockTimeout)
	}
	if opts.RecentLimit != 1000 {
		t.Errorf("expected default recent limit 1000, got %d", opts.RecentLimit)
	}
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
root: /var/lib/midden
locks:
  entity_timeout_seconds: 10
  entity_poll_ms: 50
  entity_max_age_seconds: 120
  index_timeout_seconds: 2
  index_poll_ms: 25
indices:
  recent_limit: 250
`)

	config, err := Load(path)
	if err != nil {
		t.Fatalf("expected valid config, got error: %v", err)
	}

	if config.Root != "/var/lib/midden" {
		t.Errorf("expected root /var/lib/midden, got %q", config.Root)
	}

	opts := config.StoreOptions()
	if opts.EntityLockTimeout != 10*time.Second {
		t.Errorf("expected entity lock timeout 10s, got %v", opts.EntityLockTimeout)
	}
	if opts.EntityLockPoll != 50*time.Millisecond {
		t.Errorf("expected entity lock poll 50ms, got %v", opts.EntityLockPoll)
	}
	if opts.EntityLockMaxAge != 120*time.Second {
		t.Errorf("expected entity lock max age 120s, got %v", opts.EntityLockMaxAge)
	}
	if opts.IndexLockTimeout != 2*time.Second {
		t.Errorf("expected index lock timeout 2s, got %v", opts.IndexLockTimeout)
	}
	if opts.IndexLockPoll != 25*time.Millisecond {
		t.Errorf("expected index lock poll 25ms, got %v", opts.IndexLockPoll)
	}
	if opts.RecentLimit != 250 {
		t.Errorf("expected recent limit 250, got %d", opts.RecentLimit)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "zero entity timeout",
			content: `locks:
  entity_timeout_seconds: 0`,
		},
		{
			name: "negative poll interval",
			content: `locks:
  entity_poll_ms: -5`,
		},
		{
			name: "zero recent limit",
			content: `indices:
  recent_limit: 0`,
		},
		{
			name:    "malformed yaml",
			content: `root: [unclosed`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := Load(path); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoad_UnknownFieldsIgnored(t *testing.T) {
	path := writeConfig(t, `
root: ./store
future_field: true
`)
	config, err := Load(path)
	if err != nil {
		t.Fatalf("unknown fields should not fail loading, got: %v", err)
	}
	if config.Root != "./store" {
		t.Errorf("expected root ./store, got %q", config.Root)
	}
}

func TestResolveRoot_Precedence(t *testing.T) {
	config := &Config{Root: "/from/config"}

	t.Run("flag wins over everything", func(t *testing.T) {
		t.Setenv(RootEnvVar, "/from/env")
		if got := config.ResolveRoot("/from/flag"); got != "/from/flag" {
			t.Errorf("expected /from/flag, got %q", got)
		}
	})

	t.Run("env wins over config", func(t *testing.T) {
		t.Setenv(RootEnvVar, "/from/env")
		if got := config.ResolveRoot(""); got != "/from/env" {
			t.Errorf("expected /from/env, got %q", got)
		}
	})

	t.Run("config wins over default", func(t *testing.T) {
		t.Setenv(RootEnvVar, "")
		if got := config.ResolveRoot(""); got != "/from/config" {
			t.Errorf("expected /from/config, got %q", got)
		}
	})

	t.Run("default when nothing set", func(t *testing.T) {
		t.Setenv(RootEnvVar, "")
		empty := &Config{}
		if got := empty.ResolveRoot(""); got != DefaultRoot {
			t.Errorf("expected %q, got %q", DefaultRoot, got)
		}
	})
}
