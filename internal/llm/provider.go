package llm

import (
	"os"
	"strings"
)

// Provider identifies an LLM provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
)

// parseModel splits a configured model string into provider and model name.
// An explicit "provider/name" prefix wins; otherwise the provider is
// inferred from the model family ("claude-*", "gpt-*", o-series) and, as a
// last resort, from which provider environment variables are set. Anthropic
// is the final default.
func parseModel(model string) (Provider, string) {
	if i := strings.Index(model, "/"); i > 0 {
		name := model[i+1:]
		switch strings.ToLower(model[:i]) {
		case "ollama":
			return ProviderOllama, name
		case "openai":
			return ProviderOpenAI, name
		case "anthropic":
			return ProviderAnthropic, name
		}
	}

	lower := strings.ToLower(model)
	switch {
	case strings.HasPrefix(lower, "claude"):
		return ProviderAnthropic, model
	case strings.HasPrefix(lower, "gpt-"),
		strings.HasPrefix(lower, "o1"),
		strings.HasPrefix(lower, "o3"),
		strings.HasPrefix(lower, "o4"):
		return ProviderOpenAI, model
	}

	if os.Getenv("OLLAMA_HOST") != "" {
		return ProviderOllama, model
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		return ProviderOpenAI, model
	}
	return ProviderAnthropic, model
}

// NewClientForModel builds the right client for a configured model string,
// returning it together with the bare model name to pass in requests.
//
// Credentials and endpoints come from the environment: ANTHROPIC_API_KEY
// (read by the SDK itself), OPENAI_API_KEY, OPENAI_BASE_URL for
// OpenAI-compatible gateways, and OLLAMA_HOST (defaults to
// http://localhost:11434).
func NewClientForModel(model string) (Client, string) {
	provider, name := parseModel(model)

	switch provider {
	case ProviderOllama:
		return NewOllamaClient(os.Getenv("OLLAMA_HOST")), name
	case ProviderOpenAI:
		apiKey := os.Getenv("OPENAI_API_KEY")
		if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
			return NewOpenAICompatibleClient(baseURL, apiKey), name
		}
		return NewOpenAIClient(apiKey), name
	default:
		return NewAnthropicClient(), name
	}
}
