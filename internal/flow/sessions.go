package flow

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/serviceseeking/onboard/internal/domain"
)

// Sessions is the process-wide session store. Each session carries its own
// mutex; Acquire holds it for the whole turn so two turns for one session
// never interleave, while turns for different sessions run freely.
type Sessions struct {
	mu      sync.RWMutex
	entries map[string]*sessionEntry
}

type sessionEntry struct {
	mu      sync.Mutex
	session *domain.Session
}

func NewSessions() *Sessions {
	return &Sessions{entries: make(map[string]*sessionEntry)}
}

// Create registers a fresh session and returns it locked, with its release
// function. Callers must call release when the first turn finishes.
func (s *Sessions) Create() (*domain.Session, func()) {
	sess := domain.NewSession(uuid.NewString())
	entry := &sessionEntry{session: sess}

	s.mu.Lock()
	s.entries[sess.ID] = entry
	s.mu.Unlock()

	entry.mu.Lock()
	return sess, entry.mu.Unlock
}

// Acquire locks the session for one turn. The returned release function
// must be called when the turn completes.
func (s *Sessions) Acquire(id string) (*domain.Session, func(), error) {
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("unknown session %q", id)
	}
	entry.mu.Lock()
	return entry.session, entry.mu.Unlock, nil
}

// Len reports how many sessions are live.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
