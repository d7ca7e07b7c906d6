// Package localfs stores uploaded batch files on the local filesystem
// between submission and worker execution.
package localfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Spooler writes uploads into a single directory, one file per task,
// under a generated name so colliding client filenames cannot clobber
// each other.
type Spooler struct {
	dir string
}

// NewSpooler ensures the directory exists and returns a Spooler over it.
func NewSpooler(dir string) (*Spooler, error) {
	if dir == "" {
		return nil, fmt.Errorf("spool directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create spool directory %s: %w", dir, err)
	}
	return &Spooler{dir: dir}, nil
}

// Save writes the content under a fresh name and returns the full path.
// Only the extension of the client filename is preserved.
func (s *Spooler) Save(ctx context.Context, name string, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(name))
	path := filepath.Join(s.dir, uuid.New().String()+ext)

	if err := os.WriteFile(path, content, 0o640); err != nil {
		return "", fmt.Errorf("failed to write spool file: %w", err)
	}

	return path, nil
}

// Load reads a previously spooled file back.
func (s *Spooler) Load(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Spooled paths always live under the spool directory; reject
	// anything that escapes it.
	cleaned := filepath.Clean(path)
	if rel, err := filepath.Rel(s.dir, cleaned); err != nil || strings.HasPrefix(rel, "..") {
		return nil, fmt.Errorf("path %s is outside the spool directory", path)
	}

	content, err := os.ReadFile(cleaned)
	if err != nil {
		return nil, fmt.Errorf("failed to read spool file: %w", err)
	}
	return content, nil
}

// Remove deletes a spooled file once its task reached a terminal status.
// A missing file is not an error.
func (s *Spooler) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(filepath.Clean(path)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove spool file: %w", err)
	}
	return nil
}
