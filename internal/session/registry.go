package session

import (
	"errors"
	"sync"
)

// ErrSessionNotFound is returned for unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

type entry struct {
	mu    sync.Mutex
	state *SessionState
}

// Registry holds many sessions. Operations on one session are serialized by
// that session's own mutex; different sessions never contend.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*entry)}
}

// Add stores st under its id, replacing any previous session with that id.
func (r *Registry) Add(st *SessionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[st.ID] = &entry{state: st}
}

// AddIfBelow stores st only while fewer than limit sessions are held. It
// reports whether st was added.
func (r *Registry) AddIfBelow(st *SessionState, limit int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sessions) >= limit {
		return false
	}
	r.sessions[st.ID] = &entry{state: st}
	return true
}

// With runs fn with exclusive access to the session id.
func (r *Registry) With(id string, fn func(*SessionState) error) error {
	r.mu.RLock()
	e, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.state)
}

// Remove deletes the session id.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}

// Len returns the number of sessions held.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
