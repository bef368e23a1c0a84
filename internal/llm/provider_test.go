package llm

import (
	"context"
	"testing"
)

func TestParseModelPrefixes(t *testing.T) {
	tests := []struct {
		in           string
		wantProvider Provider
		wantName     string
	}{
		{"ollama/llama3.2", ProviderOllama, "llama3.2"},
		{"openai/gpt-4o", ProviderOpenAI, "gpt-4o"},
		{"anthropic/claude-sonnet-4-20250514", ProviderAnthropic, "claude-sonnet-4-20250514"},
		{"claude-sonnet-4-20250514", ProviderAnthropic, "claude-sonnet-4-20250514"},
		{"gpt-4o-mini", ProviderOpenAI, "gpt-4o-mini"},
		{"o3-mini", ProviderOpenAI, "o3-mini"},
	}
	for _, tt := range tests {
		provider, name := parseModel(tt.in)
		if provider != tt.wantProvider || name != tt.wantName {
			t.Errorf("parseModel(%q) = (%s, %q), want (%s, %q)",
				tt.in, provider, name, tt.wantProvider, tt.wantName)
		}
	}
}

func TestMockClientSequence(t *testing.T) {
	mock := NewMockClient(
		MockResponse{Content: "first"},
		MockResponse{Content: "second"},
	)
	ctx := context.Background()

	for i, want := range []string{"first", "second", "second"} {
		resp, err := mock.Chat(ctx, ChatRequest{Model: "test"})
		if err != nil {
			t.Fatalf("call %d returned unexpected error: %v", i, err)
		}
		if resp.Content != want {
			t.Errorf("call %d content = %q, want %q", i, resp.Content, want)
		}
	}
	if got := len(mock.Calls()); got != 3 {
		t.Errorf("Calls() length = %d, want 3", got)
	}

	mock.Reset()
	resp, err := mock.Chat(ctx, ChatRequest{Model: "test"})
	if err != nil {
		t.Fatalf("post-reset call returned unexpected error: %v", err)
	}
	if resp.Content != "first" {
		t.Errorf("post-reset content = %q, want first", resp.Content)
	}
}
