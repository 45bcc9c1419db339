package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrStoreUnavailable is returned when the notification state store exists
// but cannot be read. Callers must abort the cycle rather than proceed with
// an assumed-empty store, which would suppress recovery alerts or duplicate
// offline alerts.
var ErrStoreUnavailable = errors.New("notification state store unavailable")

// StateStore persists the device -> AlertState mapping between poll cycles.
//
// Load of an absent or empty store returns an empty map and nil error; that
// is a valid "no prior state" result, distinct from ErrStoreUnavailable.
// Save replaces the whole mapping atomically: a concurrent or interrupted
// Load never observes a partial write.
type StateStore interface {
	Load(ctx context.Context) (map[string]AlertState, error)
	Save(ctx context.Context, states map[string]AlertState) error
}

// Compile-time interface guard.
var _ StateStore = (*FileStateStore)(nil)

// FileStateStore keeps the state mapping in a single JSON document,
// replaced atomically on save via write-to-temp-then-rename.
type FileStateStore struct {
	path string
}

// NewFileStateStore creates a file-backed state store at the given path.
// The parent directory is created on first Save.
func NewFileStateStore(path string) *FileStateStore {
	return &FileStateStore{path: path}
}

// Load reads the state file. A missing file is an empty store.
func (s *FileStateStore) Load(_ context.Context) (map[string]AlertState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]AlertState{}, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrStoreUnavailable, s.path, err)
	}

	if len(data) == 0 {
		return map[string]AlertState{}, nil
	}

	var states map[string]AlertState
	if err := json.Unmarshal(data, &states); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrStoreUnavailable, s.path, err)
	}
	if states == nil {
		states = map[string]AlertState{}
	}
	return states, nil
}

// Save writes the full mapping to a temp file in the same directory and
// renames it over the store path, so a crash mid-write leaves the previous
// complete version in place.
func (s *FileStateStore) Save(_ context.Context, states map[string]AlertState) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(states, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
