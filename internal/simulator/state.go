package simulator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// StateStore persists SimulationState to a crash-safe JSON file, one file
// per simulation id. Grounded on 0xtitan6-polymarket-mm's position store:
// write to a .tmp file, then rename over the target, so a crash mid-write
// never leaves a corrupt or partial state file on disk.
type StateStore struct {
	dir string
}

// NewStateStore constructs a StateStore rooted at dir, creating it if
// necessary.
func NewStateStore(dir string) (*StateStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &StateStore{dir: dir}, nil
}

func (s *StateStore) path(simulationID uuid.UUID) string {
	return filepath.Join(s.dir, "sim_"+simulationID.String()+".json")
}

// Save atomically persists state.
func (s *StateStore) Save(state SimulationState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal simulation state: %w", err)
	}

	path := s.path(state.SimulationID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write simulation state: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load restores a run's state, or ok=false if no file exists for the id.
func (s *StateStore) Load(simulationID uuid.UUID) (SimulationState, bool, error) {
	data, err := os.ReadFile(s.path(simulationID))
	if err != nil {
		if os.IsNotExist(err) {
			return SimulationState{}, false, nil
		}
		return SimulationState{}, false, fmt.Errorf("read simulation state: %w", err)
	}

	var state SimulationState
	if err := json.Unmarshal(data, &state); err != nil {
		return SimulationState{}, false, fmt.Errorf("unmarshal simulation state: %w", err)
	}
	return state, true, nil
}
