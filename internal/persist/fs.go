package persist

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Filesystem stores the snapshot as a single file. Writes stream to a temp
// file in the same directory and move into place with an atomic rename, so a
// crash mid-write never leaves a truncated snapshot behind.
type Filesystem struct {
	path string
}

// NewFilesystem returns a backend writing to path, creating parent
// directories as needed.
func NewFilesystem(path string) (*Filesystem, error) {
	if path == "" {
		path = "./assetmirror.snapshot.json"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create snapshot dir: %w", err)
		}
	}
	return &Filesystem{path: path}, nil
}

// Path returns the configured snapshot location.
func (f *Filesystem) Path() string { return f.path }

func (f *Filesystem) Load(ctx context.Context) ([]byte, error) {
	payload, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return payload, nil
}

func (f *Filesystem) Save(ctx context.Context, payload []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
