// Package session defines the per-conversation state and its storage
// abstraction for the TripWeaver orchestrator.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/tripweaver/tripweaver/internal/travel"
)

// ErrNotFound is returned by Get when no session exists for the given ID.
// The orchestrator recovers by creating a fresh session.
var ErrNotFound = errors.New("session not found")

// Turn is one entry in the append-only conversation history.
type Turn struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the state of one ongoing conversation. A turn owns its session
// exclusively while processing; stores must replace the whole record on save
// so a crashed turn can never leave a half-updated session behind.
type Session struct {
	ID           string                          `json:"id"`
	UserID       string                          `json:"user_id,omitempty"`
	Slots        travel.Slots                    `json:"slots"`
	History      []Turn                          `json:"history,omitempty"`
	Fingerprints map[travel.Domain]string        `json:"fingerprints,omitempty"`
	LastResults  map[travel.Domain][]travel.Item `json:"last_results,omitempty"`
	CreatedAt    time.Time                       `json:"created_at"`
	LastActive   time.Time                       `json:"last_active"`
}

// Append adds a turn to the conversation history.
func (s *Session) Append(role, text string) {
	s.History = append(s.History, Turn{Role: role, Text: text, Timestamp: time.Now()})
}

// RecordResult stores a domain's successful search outcome for reuse on
// later turns.
func (s *Session) RecordResult(domain travel.Domain, fingerprint string, items []travel.Item) {
	if s.Fingerprints == nil {
		s.Fingerprints = make(map[travel.Domain]string)
	}
	if s.LastResults == nil {
		s.LastResults = make(map[travel.Domain][]travel.Item)
	}
	s.Fingerprints[domain] = fingerprint
	s.LastResults[domain] = items
}

// Reset clears slots, history, fingerprints and cached results in one step,
// leaving the session ID and identity intact.
func (s *Session) Reset() {
	s.Slots = travel.Slots{}
	s.History = nil
	s.Fingerprints = nil
	s.LastResults = nil
	s.LastActive = time.Now()
}

// Store persists sessions. Implementations must provide atomic
// replace-on-save semantics; they need not lock, because the orchestrator
// serializes turns per session.
type Store interface {
	// Create allocates a session with a fresh unique ID and empty state.
	Create(ctx context.Context, userID string) (*Session, error)

	// Get retrieves a session by ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// Save atomically replaces the stored session record.
	Save(ctx context.Context, sess *Session) error

	// Delete removes a session by ID. Deleting a missing session is not
	// an error.
	Delete(ctx context.Context, id string) error

	// PurgeExpired removes sessions idle longer than olderThan and
	// returns how many were removed. Expiry policy lives outside the
	// turn-processing core.
	PurgeExpired(ctx context.Context, olderThan time.Duration) (int, error)
}

// newSession builds an empty session with a fresh ID. Shared by store
// implementations.
func newSession(userID string) *Session {
	now := time.Now()
	return &Session{
		ID:         newID(),
		UserID:     userID,
		CreatedAt:  now,
		LastActive: now,
	}
}
