package adaptive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/scanforge/scanforge/pkg/model"
)

// Store persists a State to a JSON file across process invocations (spec.md
// §3 HostProfile "persists process-lifetime (persistence to disk is an
// external collaborator)"). Reads and writes take an exclusive file lock so
// two scanforge processes sharing AdaptiveStatePath never interleave writes.
type Store struct {
	path string
}

// NewStore returns a Store writing to path. path may not yet exist; Load
// returns a fresh empty State in that case.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the persisted State, or returns a fresh State seeded with
// learningRate/minScansToAdapt if no file exists yet.
func (s *Store) Load(learningRate float64, minScansToAdapt int) (*State, error) {
	fresh := NewState(learningRate, minScansToAdapt)

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return fresh, nil
	}

	lock := flock.New(s.path + ".lock")
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("lock adaptive state %q: %w", s.path, err)
	}
	defer lock.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read adaptive state %q: %w", s.path, err)
	}

	loaded := fresh
	if err := json.Unmarshal(data, loaded); err != nil {
		return nil, fmt.Errorf("parse adaptive state %q: %w", s.path, err)
	}
	if loaded.Profiles == nil {
		loaded.Profiles = make(map[model.NetworkClass]*HostProfile)
	}

	return loaded, nil
}

// Save writes state to disk under an exclusive file lock, creating parent
// directories as needed.
func (s *Store) Save(state *State) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create adaptive state directory: %w", err)
	}

	lock := flock.New(s.path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock adaptive state %q: %w", s.path, err)
	}
	defer lock.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal adaptive state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write adaptive state: %w", err)
	}
	return os.Rename(tmp, s.path)
}
