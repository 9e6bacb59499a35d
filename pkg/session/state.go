package session

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// State is the persisted form of a session's expanded set.
//
// File format (JSON):
//
//	{
//	  "version": 1,
//	  "expanded": ["node-1", "node-2"]
//	}
//
// A missing or corrupted file means nothing is expanded.
type State struct {
	Version  int      `json:"version"`
	Expanded []string `json:"expanded"`
}

// StateVersion is the current schema version of State.
const StateVersion = 1

// stateFileName is the file name used under a config directory.
const stateFileName = "session-state.json"

// StatePath returns the state file location inside dir.
func StatePath(dir string) string {
	if dir == "" {
		dir = ".lazytree"
	}
	return filepath.Join(dir, stateFileName)
}

// saveState writes the expanded set. Failures are logged and otherwise
// ignored; losing view state never interrupts the session.
func (s *Session) saveState() {
	if s.statePath == "" {
		return
	}

	s.mu.Lock()
	state := State{Version: StateVersion, Expanded: make([]string, 0, len(s.expanded)+len(s.pending))}
	for id := range s.expanded {
		state.Expanded = append(state.Expanded, id)
	}
	for id := range s.pending {
		state.Expanded = append(state.Expanded, id)
	}
	s.mu.Unlock()
	sort.Strings(state.Expanded)

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		s.logger.Warn("marshal session state", zap.Error(err))
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.statePath), 0o755); err != nil {
		s.logger.Warn("create session state dir", zap.String("path", s.statePath), zap.Error(err))
		return
	}
	if err := os.WriteFile(s.statePath, data, 0o644); err != nil {
		s.logger.Warn("write session state", zap.String("path", s.statePath), zap.Error(err))
	}
}

// loadState reads the saved expanded set into pending; Refresh adopts each
// id once its node is in the tree.
func (s *Session) loadState() {
	data, err := os.ReadFile(s.statePath)
	if err != nil {
		return
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Warn("invalid session state file, starting collapsed",
			zap.String("path", s.statePath), zap.Error(err))
		return
	}
	if state.Version != StateVersion {
		s.logger.Warn("unsupported session state version",
			zap.String("path", s.statePath), zap.Int("version", state.Version))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range state.Expanded {
		s.pending[id] = true
	}
}
