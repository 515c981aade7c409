// Package artifact hands finished bundles to durable storage and
// returns the assigned draft identifier.
package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/pon-1234/seo-drafter-gcp/internal/core"
)

// Store persists a finished bundle and assigns its durable id.
type Store interface {
	Save(ctx context.Context, bundle *core.Bundle) (string, error)
}

// FileStore writes bundles as JSON documents under a drafts directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the drafts directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create drafts directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Save assigns a draft id, stamps it into the bundle and writes the
// bundle as pretty-printed JSON.
func (s *FileStore) Save(_ context.Context, bundle *core.Bundle) (string, error) {
	draftID := uuid.NewString()
	bundle.DraftID = draftID

	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode bundle: %w", err)
	}

	path := filepath.Join(s.dir, draftID+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write bundle: %w", err)
	}
	return draftID, nil
}

// Path returns the on-disk location for a draft id.
func (s *FileStore) Path(draftID string) string {
	return filepath.Join(s.dir, draftID+".json")
}
