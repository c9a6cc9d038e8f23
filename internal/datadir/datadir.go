// Package datadir resolves the data directory all durable files live under.
package datadir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default data directory name under $HOME.
	DefaultDirName = ".like-i-said"

	// EnvVar is the environment variable that overrides the data directory.
	EnvVar = "LIKE_I_SAID_DATA_DIR"

	// subdirectory names inside the data root
	databaseSubdir = "data"
	indexSubdir    = "index"
	configSubdir   = "config"
)

// DataDir provides a single source of truth for all data-directory paths.
type DataDir struct {
	root string
}

// New returns a DataDir rooted at the resolved data directory. It does NOT
// create subdirectories; call EnsureDirs for that.
//
// Resolution priority:
//  1. LIKE_I_SAID_DATA_DIR environment variable
//  2. configValue argument (from the config file's data_dir field)
//  3. ~/.like-i-said/
func New(configValue string) (*DataDir, error) {
	dir := os.Getenv(EnvVar)
	if dir == "" {
		dir = configValue
	}
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine home directory: %w", err)
		}
		dir = filepath.Join(home, DefaultDirName)
	}
	return &DataDir{root: dir}, nil
}

// Root returns the base data directory path.
func (d *DataDir) Root() string { return d.root }

// DatabaseDir returns {root}/data/.
func (d *DataDir) DatabaseDir() string { return filepath.Join(d.root, databaseSubdir) }

// IndexDir returns {root}/index/.
func (d *DataDir) IndexDir() string { return filepath.Join(d.root, indexSubdir) }

// ConfigDir returns {root}/config/.
func (d *DataDir) ConfigDir() string { return filepath.Join(d.root, configSubdir) }

// DatabasePath returns the default storage target path.
func (d *DataDir) DatabasePath() string { return filepath.Join(d.DatabaseDir(), "memory.db") }

// ConfigPath returns the default config file path.
func (d *DataDir) ConfigPath() string { return filepath.Join(d.ConfigDir(), "config.json") }

// EnsureDirs creates the root and all subdirectories with 0700 permissions.
func (d *DataDir) EnsureDirs() error {
	dirs := []string{d.root, d.DatabaseDir(), d.IndexDir(), d.ConfigDir()}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
