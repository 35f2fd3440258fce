package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"

	"github.com/kyosuke-takei/slack-price-watch/internal/domain"
)

// StateVersion is bumped when the persisted schema changes.
const StateVersion = 1

// State is the full persisted store: every tracked item keyed by ASIN.
type State struct {
	Version   int                              `json:"version"`
	UpdatedAt int64                            `json:"updated_at"`
	Items     map[string]*domain.ItemSnapshot  `json:"items"`
}

// NewState returns a fresh empty store.
func NewState() *State {
	return &State{Version: StateVersion, Items: make(map[string]*domain.ItemSnapshot)}
}

// Store persists State as indented JSON at a fixed path. The file is
// plain text so operators can inspect it directly.
type Store struct {
	path string
}

// NewStore creates a store backed by the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted store. A missing, unreadable, or structurally
// invalid file yields a fresh empty state with a warning; Load never fails.
// The previous run's file stays untouched until the next Save.
func (s *Store) Load() *State {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("State file unreadable, starting empty",
				slog.String("path", s.path), slog.Any("error", err))
		}
		return NewState()
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		slog.Warn("State file corrupt, starting empty",
			slog.String("path", s.path), slog.Any("error", err))
		return NewState()
	}
	if state.Items == nil {
		slog.Warn("State file missing item map, starting empty",
			slog.String("path", s.path))
		return NewState()
	}
	if state.Version == 0 {
		state.Version = StateVersion
	}
	return &state
}

// Save stamps UpdatedAt and writes the full state atomically (temp file
// then rename) so a crash mid-write never leaves a truncated store.
func (s *Store) Save(state *State) error {
	state.Version = StateVersion
	state.UpdatedAt = time.Now().Unix()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write state: %w", err)
	}

	slog.Info("State saved",
		slog.String("path", s.path), slog.Int("items", len(state.Items)))
	return nil
}

// Prune drops entries not seen within ttl of now and returns the count
// removed. Pure over its input apart from the map mutation; called once
// per run immediately before Save.
func Prune(state *State, ttl time.Duration, now time.Time) int {
	cutoff := now.Add(-ttl).Unix()
	removed := 0
	for asin, item := range state.Items {
		if item.LastSeenAt < cutoff {
			delete(state.Items, asin)
			removed++
		}
	}
	return removed
}
