// Package session owns the live application state: it restores state at
// startup and runs every dispatch through the reducer followed by a
// snapshot write.
package session

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/decred/slog"

	"github.com/youruser/huddle/internal/localstore"
	"github.com/youruser/huddle/internal/state"
)

// Session is the dispatch capability handed to consumers. It serializes
// dispatches, so a single Session is safe to share.
type Session struct {
	db  *localstore.DB
	key string
	log slog.Logger

	mu  sync.Mutex
	cur state.State
}

// Dispatch applies one action and persists the resulting state under the
// session's snapshot key before committing it. On any error the session
// keeps its previous state: a failed persist never leaves a state visible
// that is not also on disk.
//
// Actions apply strictly in dispatch order.
func (s *Session) Dispatch(a state.Action) (state.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := state.Apply(s.cur, a)
	if err != nil {
		s.log.Errorf("Dispatch failed: %v", err)
		return state.State{}, err
	}

	if s.db != nil {
		blob, err := json.Marshal(next)
		if err != nil {
			return state.State{}, fmt.Errorf("marshal state: %w", err)
		}
		if err := s.db.Set(s.key, string(blob)); err != nil {
			return state.State{}, fmt.Errorf("persist state: %w", err)
		}
		s.log.Tracef("Snapshot written under %s (%d bytes)", s.key, len(blob))
	}

	s.cur = next
	return next, nil
}

// State returns the current state snapshot.
func (s *Session) State() state.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Key returns the snapshot key this session persists under.
func (s *Session) Key() string {
	return s.key
}
