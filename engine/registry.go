package engine

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSessionActive is returned by Begin when the conversation already
// has a live streaming session. The caller must cancel it first.
var ErrSessionActive = errors.New("streaming session already active for conversation")

// Session is the live state of one conversation's in-progress turn:
// the latest published partial snapshot and the cancellation handle.
// It is created by Registry.Begin and destroyed by Registry.End.
type Session struct {
	ConversationID string
	StartedAt      time.Time

	mu       sync.Mutex
	cancel   context.CancelFunc
	snapshot Snapshot
}

// Publish stores the latest partial snapshot. The controller's flush
// callback feeds this.
func (s *Session) Publish(snap Snapshot) {
	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
}

// Snapshot returns the latest published partial state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Registry tracks, per conversation, whether a stream is active. It is
// the single source of truth for "is this conversation generating".
// Multiple conversations may stream concurrently; each holds at most
// one live session.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Begin creates the session for a conversation. It fails with
// ErrSessionActive when one already exists.
func (r *Registry) Begin(conversationID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[conversationID]; exists {
		return nil, ErrSessionActive
	}
	s := &Session{
		ConversationID: conversationID,
		StartedAt:      time.Now(),
	}
	r.sessions[conversationID] = s
	return s, nil
}

// Attach associates the turn's cancel function with the session so a
// later Cancel can stop it. A no-op when no session exists.
func (r *Registry) Attach(conversationID string, cancel context.CancelFunc) {
	r.mu.Lock()
	s := r.sessions[conversationID]
	r.mu.Unlock()
	if s == nil {
		return
	}
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
}

// Cancel requests cooperative cancellation of the conversation's turn.
// It does not block waiting for the turn to unwind, and reports whether
// a live session was found.
func (r *Registry) Cancel(conversationID string) bool {
	r.mu.Lock()
	s := r.sessions[conversationID]
	r.mu.Unlock()
	if s == nil {
		return false
	}
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return true
}

// End clears the session, making the conversation eligible for a new
// turn. Safe to call when no session exists.
func (r *Registry) End(conversationID string) {
	r.mu.Lock()
	delete(r.sessions, conversationID)
	r.mu.Unlock()
}

// IsStreaming reports whether the conversation has a live session.
func (r *Registry) IsStreaming(conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.sessions[conversationID]
	return exists
}

// Lookup returns the live session, if any.
func (r *Registry) Lookup(conversationID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, exists := r.sessions[conversationID]
	return s, exists
}
