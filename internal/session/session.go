// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package session keeps per-conversation dialogue state in memory and
// serialises the work done for each conversation.
package session

import (
	"slices"
	"sync"

	"github.com/sigil-dev/balcao/internal/catalog"
	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
)

// State is the dialogue state of a conversation.
type State string

const (
	StateInitial              State = "INITIAL"
	StateAwaitingConfirmation State = "AWAITING_CONFIRMATION"
	StateSearchMode           State = "SEARCH_MODE"
)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateInitial, StateAwaitingConfirmation, StateSearchMode:
		return true
	}
	return false
}

// PendingSearch is a proposed search awaiting the user's yes/no.
type PendingSearch struct {
	Term string `json:"term"`
}

// Session is the dialogue state for one conversation.
type Session struct {
	State   State
	Pending *PendingSearch
	Results []catalog.Product
	// History holds earlier result sets, most recent last.
	History [][]catalog.Product
}

// New returns a session in its initial state.
func New() Session {
	return Session{State: StateInitial}
}

// Validate checks the structural invariants between State, Results and Pending.
func (s Session) Validate() error {
	if !s.State.Valid() {
		return balcaoerr.New(balcaoerr.CodeDialogueStateInvalid, "unknown state",
			balcaoerr.Field("state", string(s.State)))
	}
	if len(s.Results) > 0 && s.State != StateSearchMode {
		return balcaoerr.New(balcaoerr.CodeDialogueStateInvalid, "results held outside search mode",
			balcaoerr.Field("state", string(s.State)))
	}
	if s.Pending != nil && s.State != StateAwaitingConfirmation {
		return balcaoerr.New(balcaoerr.CodeDialogueStateInvalid, "pending search outside confirmation",
			balcaoerr.Field("state", string(s.State)))
	}
	if s.State == StateAwaitingConfirmation && s.Pending == nil {
		return balcaoerr.New(balcaoerr.CodeDialogueStateInvalid, "confirmation without pending search")
	}
	return nil
}

// Clone returns a deep copy so callers can derive a new state without
// aliasing the stored one.
func (s Session) Clone() Session {
	out := Session{State: s.State}
	if s.Pending != nil {
		p := *s.Pending
		out.Pending = &p
	}
	out.Results = slices.Clone(s.Results)
	if len(s.History) > 0 {
		out.History = make([][]catalog.Product, len(s.History))
		for i, h := range s.History {
			out.History[i] = slices.Clone(h)
		}
	}
	return out
}

// Summary is a read-only view of a session for status endpoints.
type Summary struct {
	ID           string `json:"id"`
	State        State  `json:"state"`
	PendingTerm  string `json:"pending_term,omitempty"`
	ResultCount  int    `json:"result_count"`
	HistoryDepth int    `json:"history_depth"`
}

func (s Session) summary(id string) Summary {
	out := Summary{
		ID:           id,
		State:        s.State,
		ResultCount:  len(s.Results),
		HistoryDepth: len(s.History),
	}
	if s.Pending != nil {
		out.PendingTerm = s.Pending.Term
	}
	return out
}

// Store owns every live session. Sessions are created lazily and kept for
// the lifetime of the process.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// GetOrCreate returns the session for id, creating an initial one if needed.
// Repeated calls return the same pointer.
func (s *Store) GetOrCreate(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(id)
}

func (s *Store) getOrCreateLocked(id string) *Session {
	if sess, ok := s.sessions[id]; ok {
		return sess
	}
	sess := New()
	s.sessions[id] = &sess
	return &sess
}

// Load returns a deep copy of the session for id, creating it if needed.
func (s *Store) Load(id string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(id).Clone()
}

// Save replaces the contents of the session for id in place, so pointers
// handed out by GetOrCreate observe the new state.
func (s *Store) Save(id string, next Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	*s.getOrCreateLocked(id) = next
}

// Snapshot returns a summary of an existing session.
func (s *Store) Snapshot(id string) (Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Summary{}, balcaoerr.New(balcaoerr.CodeSessionNotFound, "session not found",
			balcaoerr.FieldConversationID(id))
	}
	return sess.summary(id), nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
