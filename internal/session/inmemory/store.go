package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/cfdi-reporter/internal/session"
	"github.com/google/uuid"
)

// Store is an in-memory implementation of session.Store.
// It is safe for concurrent use. Data is lost on restart, which matches the
// lifetime of an upload session.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
	now      func() time.Time
}

// NewStore creates a new in-memory session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*session.Session),
		now:      time.Now,
	}
}

// Create implements the session.Store interface.
func (s *Store) Create(ctx context.Context) (*session.Session, error) {
	now := s.now()
	sess := &session.Session{
		ID:        uuid.New().String(),
		CreatedAt: now,
		LastSeen:  now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.ID] = sess
	return copySession(sess), nil
}

// Get implements the session.Store interface.
// Reading a session counts as activity and refreshes LastSeen.
func (s *Store) Get(ctx context.Context, id string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[id]
	if !exists {
		return nil, fmt.Errorf("get session %s: %w", id, session.ErrNotFound)
	}
	sess.LastSeen = s.now()

	return copySession(sess), nil
}

// ReplaceBatch implements the session.Store interface.
func (s *Store) ReplaceBatch(ctx context.Context, id string, batch *session.Batch) error {
	if batch == nil {
		return fmt.Errorf("replace batch for session %s: batch is required", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[id]
	if !exists {
		return fmt.Errorf("replace batch for session %s: %w", id, session.ErrNotFound)
	}

	// Store a copy to avoid external modifications
	sess.Batch = batch.Clone()
	sess.LastSeen = s.now()

	return nil
}

// Delete implements the session.Store interface.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[id]; !exists {
		return fmt.Errorf("delete session %s: %w", id, session.ErrNotFound)
	}
	delete(s.sessions, id)

	return nil
}

// PruneIdle implements the session.Store interface.
func (s *Store) PruneIdle(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.LastSeen.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}

	return removed, nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

func copySession(sess *session.Session) *session.Session {
	c := *sess
	c.Batch = sess.Batch.Clone()
	return &c
}

// Ensure Store implements session.Store interface.
var _ session.Store = (*Store)(nil)
