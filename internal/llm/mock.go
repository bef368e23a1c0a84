package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockResponse is one canned reply for the mock client. Error, when set,
// wins over the content fields.
type MockResponse struct {
	Content    string
	StopReason StopReason
	Usage      TokenUsage
	Error      error
}

// MockClient scripts Chat responses for extractor tests. Replies play in
// order; once exhausted the last one repeats, so a test can script the
// first turn and let follow-ups reuse it.
type MockClient struct {
	mu        sync.Mutex
	responses []MockResponse
	next      int
	calls     []ChatRequest
}

// NewMockClient creates a mock client with a scripted reply sequence.
func NewMockClient(responses ...MockResponse) *MockClient {
	return &MockClient{responses: responses}
}

// Chat records the request and plays the next scripted reply.
func (m *MockClient) Chat(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, req)

	if len(m.responses) == 0 {
		return nil, fmt.Errorf("mock: no responses configured")
	}

	idx := m.next
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	} else {
		m.next++
	}

	scripted := m.responses[idx]
	if scripted.Error != nil {
		return nil, scripted.Error
	}
	return &ChatResponse{
		Content:    scripted.Content,
		StopReason: scripted.StopReason,
		Usage:      scripted.Usage,
	}, nil
}

// Calls returns a copy of every request the mock has seen.
func (m *MockClient) Calls() []ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ChatRequest(nil), m.calls...)
}

// Reset clears call history and rewinds the reply sequence.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next = 0
	m.calls = nil
}
