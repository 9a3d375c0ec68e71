// Package home manages the folio home directory layout where page images
// and configuration live.
package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the folio home directory.
	DefaultDirName = ".folio"

	// DataDirName is the subdirectory for book data and page scans.
	DataDirName = "data"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the folio home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.folio).
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

// BookDir returns the directory holding a book's files.
func (d *Dir) BookDir(bookID string) string {
	return filepath.Join(d.DataPath(), bookID)
}

// OriginalsDir returns the directory for a book's original scan files
// (PDFs as uploaded, before page extraction).
func (d *Dir) OriginalsDir(bookID string) string {
	return filepath.Join(d.BookDir(bookID), "originals")
}

// PagesDir returns the directory for a book's extracted page images.
func (d *Dir) PagesDir(bookID string) string {
	return filepath.Join(d.BookDir(bookID), "pages")
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	if err := os.MkdirAll(d.DataPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}

// EnsureBookDirs creates the per-book directories if they don't exist.
func (d *Dir) EnsureBookDirs(bookID string) error {
	for _, dir := range []string{d.OriginalsDir(bookID), d.PagesDir(bookID)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}
