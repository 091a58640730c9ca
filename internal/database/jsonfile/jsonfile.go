// Package jsonfile stores the user collection in a single pretty-printed JSON file.
package jsonfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio"
	"github.com/kozaktomas/face-registry/internal/database"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Storage is a file-backed database.Storage. Writes go to a temp file in the
// same directory and are renamed over the target, so a crash mid-write never
// leaves a truncated collection behind.
type Storage struct {
	path string
}

// New creates a storage for the file at path. Nothing is touched until Init.
func New(path string) *Storage {
	return &Storage{path: path}
}

// Path returns the backing file path
func (s *Storage) Path() string {
	return s.path
}

// Describe implements database.Describer.
func (s *Storage) Describe() string {
	return "file " + s.path
}

// Init creates the parent directory and an empty collection if the file is missing.
func (s *Storage) Init(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), dirPerm); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	_, err := os.Stat(s.path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking users file: %w", err)
	}

	if err := renameio.WriteFile(s.path, database.EmptyCollection(), filePerm); err != nil {
		return fmt.Errorf("creating users file: %w", err)
	}
	return nil
}

// Load reads and decodes the whole file
func (s *Storage) Load(ctx context.Context) ([]database.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading users file: %w", err)
	}
	records, err := database.UnmarshalRecords(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return records, nil
}

// Save atomically rewrites the whole file
func (s *Storage) Save(ctx context.Context, records []database.UserRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := database.MarshalRecords(records)
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(s.path, data, filePerm); err != nil {
		return fmt.Errorf("writing users file: %w", err)
	}
	return nil
}
