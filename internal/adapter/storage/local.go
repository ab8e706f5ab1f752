package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// localBackend reads objects from a directory; keys are slash-separated relative paths.
type localBackend struct {
	root string
}

func newLocalBackend(root string) *localBackend {
	return &localBackend{root: root}
}

func (b *localBackend) fetch(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Rooting the key before cleaning keeps ".." from leaving the directory.
	full := filepath.Join(b.root, filepath.Clean(filepath.FromSlash("/"+key)))
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, err
	}
	return data, nil
}

func (b *localBackend) transient(err error) bool {
	return false
}
