// Package home resolves the vbpl home directory layout.
package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the vbpl home directory.
	DefaultDirName = ".vbpl"

	// DataDirName is the subdirectory for crawled documents.
	DataDirName = "data"

	// ExportsDirName is the subdirectory for chunk and relation exports.
	ExportsDirName = "exports"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// DatabaseFileName is the SQLite database file name.
	DatabaseFileName = "vbpl.db"

	// EnvFileName is the dotenv file loaded before configuration.
	EnvFileName = ".env"
)

// Dir represents the vbpl home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.vbpl).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// DataPath returns the path to the data directory.
func (d *Dir) DataPath() string {
	return filepath.Join(d.path, DataDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// DatabasePath returns the path to the SQLite database.
func (d *Dir) DatabasePath() string {
	return filepath.Join(d.path, DatabaseFileName)
}

// EnvPath returns the path to the home .env file.
func (d *Dir) EnvPath() string {
	return filepath.Join(d.path, EnvFileName)
}

// DocumentPath returns where a crawled document is kept.
func (d *Dir) DocumentPath(documentID string) string {
	return filepath.Join(d.DataPath(), documentID+".json")
}

// ExportsDir returns the directory for exported results.
func (d *Dir) ExportsDir() string {
	return filepath.Join(d.path, ExportsDirName)
}

// ExportPath returns the export file for a document and kind ("chunks",
// "relations").
func (d *Dir) ExportPath(documentID, kind string) string {
	return filepath.Join(d.ExportsDir(), fmt.Sprintf("%s.%s.json", documentID, kind))
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	// Create data directory (this also creates the parent)
	if err := os.MkdirAll(d.DataPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.MkdirAll(d.ExportsDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create exports directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
