// Package cas persists the forward build state as a flat JSON file inside
// the project's workspace directory.
package cas

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.trai.ch/reactor/internal/core/domain"
	"go.trai.ch/zerr"
)

// Store implements ports.StateStore using <root>/.reactor/state.json.
type Store struct {
	mu sync.Mutex
}

// NewStore creates a new StateStore.
func NewStore() *Store {
	return &Store{}
}

// Load returns the state stored for root, or an empty state if none exists.
func (s *Store) Load(root string) (*domain.BuildState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := statePath(root)
	state := domain.NewBuildState()

	//nolint:gosec // Path is derived from the project root
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return state, nil
		}
		return nil, zerr.With(errors.Join(domain.ErrStateReadFailed, err), "path", path)
	}
	if len(data) == 0 {
		return state, nil
	}

	if err := json.Unmarshal(data, state); err != nil {
		return nil, zerr.With(errors.Join(domain.ErrStateReadFailed, err), "path", path)
	}
	if state.Results == nil {
		state.Results = make(map[domain.ModuleName]domain.Result)
	}
	return state, nil
}

// Save replaces the state stored for root. The file is replaced atomically.
func (s *Store) Save(root string, state *domain.BuildState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := statePath(root)
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return zerr.Wrap(errors.Join(domain.ErrStateWriteFailed, err), "failed to marshal build state")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return zerr.With(errors.Join(domain.ErrStateWriteFailed, err), "path", dir)
	}

	tmp, err := os.CreateTemp(dir, domain.StateFileName+".*")
	if err != nil {
		return zerr.With(errors.Join(domain.ErrStateWriteFailed, err), "path", dir)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return zerr.With(errors.Join(domain.ErrStateWriteFailed, err), "path", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return zerr.With(errors.Join(domain.ErrStateWriteFailed, err), "path", tmp.Name())
	}
	if err := os.Chmod(tmp.Name(), domain.FilePerm); err != nil {
		return zerr.With(errors.Join(domain.ErrStateWriteFailed, err), "path", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return zerr.With(errors.Join(domain.ErrStateWriteFailed, err), "path", path)
	}
	return nil
}

func statePath(root string) string {
	return filepath.Join(root, domain.DefaultStatePath())
}
