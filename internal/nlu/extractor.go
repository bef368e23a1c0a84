// Package nlu extracts structured slot updates from free-form user messages.
package nlu

import (
	"context"

	"github.com/tripweaver/tripweaver/internal/session"
	"github.com/tripweaver/tripweaver/internal/travel"
)

// Extractor turns a raw user message into a slot update. Implementations
// must return only slots the message actually mentions; the merge layer
// decides what changed.
type Extractor interface {
	Extract(ctx context.Context, message string, history []session.Turn, current travel.Slots) (travel.SlotUpdate, error)
}

// MockExtractor returns canned updates in sequence for testing.
type MockExtractor struct {
	Updates []travel.SlotUpdate
	Err     error
	calls   int
}

// Extract returns the next configured update. When the sequence is
// exhausted the last update repeats.
func (m *MockExtractor) Extract(_ context.Context, _ string, _ []session.Turn, _ travel.Slots) (travel.SlotUpdate, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Updates) == 0 {
		return travel.SlotUpdate{}, nil
	}
	idx := m.calls
	if idx >= len(m.Updates) {
		idx = len(m.Updates) - 1
	} else {
		m.calls++
	}
	return m.Updates[idx], nil
}
