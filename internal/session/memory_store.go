package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-memory session store. Records are stored as JSON so
// Get always hands the caller an exclusively-owned copy.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string][]byte
	active   map[string]time.Time
}

// NewMemoryStore creates an in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string][]byte),
		active:   make(map[string]time.Time),
	}
}

// Create allocates a session with a fresh unique ID and empty state.
func (s *MemoryStore) Create(ctx context.Context, userID string) (*Session, error) {
	sess := newSession(userID)
	if err := s.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get retrieves a copy of a session by ID.
func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.Lock()
	data, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("get session %q: %w", id, ErrNotFound)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session %q: %w", id, err)
	}
	return &sess, nil
}

// Save replaces the stored record in one map write.
func (s *MemoryStore) Save(_ context.Context, sess *Session) error {
	sess.LastActive = time.Now()
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session %q: %w", sess.ID, err)
	}

	s.mu.Lock()
	s.sessions[sess.ID] = data
	s.active[sess.ID] = sess.LastActive
	s.mu.Unlock()
	return nil
}

// Delete removes a session by ID.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	delete(s.active, id)
	s.mu.Unlock()
	return nil
}

// PurgeExpired removes sessions idle longer than olderThan.
func (s *MemoryStore) PurgeExpired(_ context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)

	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for id, last := range s.active {
		if last.Before(cutoff) {
			delete(s.sessions, id)
			delete(s.active, id)
			purged++
		}
	}
	return purged, nil
}
