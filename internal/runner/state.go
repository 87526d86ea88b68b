package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// State remembers which earnings events have already been analyzed. The
// lookback window refetches recent days on every run, so without this
// ledger the same call would be scored and traded twice.
type State struct {
	path string

	mu        sync.Mutex
	processed map[string]string // event_id -> run_id
}

// LoadState reads the ledger at path, starting empty if it does not exist.
func LoadState(path string) (*State, error) {
	s := &State{path: path, processed: make(map[string]string)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read runner state: %w", err)
	}
	if err := json.Unmarshal(data, &s.processed); err != nil {
		return nil, fmt.Errorf("parse runner state: %w", err)
	}
	return s, nil
}

// IsProcessed reports whether an event was already analyzed.
func (s *State) IsProcessed(eventID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.processed[eventID]
	return ok
}

// MarkProcessed records an event and persists the ledger. Failed events are
// never marked, so the next run retries them.
func (s *State) MarkProcessed(eventID, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed[eventID] = runID

	data, err := json.MarshalIndent(s.processed, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal runner state: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write runner state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename runner state: %w", err)
	}
	return nil
}
