// Package config resolves the small set of environment-driven knobs miq
// needs at process start: where the store root lives and where the index
// database lives. Everything else is a CLI flag (see cmd/miq).
package config

import (
	"os"
	"path/filepath"

	"github.com/viperML/miq/internal/miqerr"
)

// Default root matches spec.md's filesystem layout (§6): /miq/store,
// /miq/eval, /miq/log, /miq/lock all live under this root.
const DefaultRoot = "/miq"

// Config holds the resolved runtime configuration.
type Config struct {
	Root        string // usually /miq
	DatabaseURL string // backing file for the store index
}

// Load reads MIQ_ROOT (optional, defaults to /miq) and DATABASE_URL
// (optional, defaults to "<root>/store.db") from the environment.
func Load() (*Config, error) {
	root := os.Getenv("MIQ_ROOT")
	if root == "" {
		root = DefaultRoot
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = filepath.Join(root, "store.db")
	}

	return &Config{Root: root, DatabaseURL: dbURL}, nil
}

// StoreDir is "<root>/store".
func (c *Config) StoreDir() string { return filepath.Join(c.Root, "store") }

// EvalDir is "<root>/eval".
func (c *Config) EvalDir() string { return filepath.Join(c.Root, "eval") }

// LogDir is "<root>/log".
func (c *Config) LogDir() string { return filepath.Join(c.Root, "log") }

// LockPath is "<root>/lock".
func (c *Config) LockPath() string { return filepath.Join(c.Root, "lock") }

// EnsureDirs creates the directory layout of spec.md §6 if missing.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.StoreDir(), c.EvalDir(), c.LogDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return miqerr.Wrap(miqerr.Config, err, "creating miq directory layout")
		}
	}
	return nil
}
