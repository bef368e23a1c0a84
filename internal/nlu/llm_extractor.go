package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tripweaver/tripweaver/internal/llm"
	"github.com/tripweaver/tripweaver/internal/session"
	"github.com/tripweaver/tripweaver/internal/travel"
)

const extractSystemPrompt = `You are a travel query parser. Extract travel details from the
user's latest message into JSON. Output ONLY a JSON object, no prose.

Recognized fields (include a field only when the message mentions it):
  "destination"      string, a specific city ("Seattle", not "Washington")
  "origin"           string, city or airport code
  "start_date"       string, "YYYY-MM-DD"
  "end_date"         string, "YYYY-MM-DD"
  "budget"           number, total trip budget
  "max_rate"         number, max nightly hotel rate
  "travelers"        integer
  "preferences"      array of strings
  "neighborhood"     string, preferred hotel area
  "experience_query" string, what activities the user asked for

Rules:
- Resolve relative dates ("next weekend", "mid-June") against today's date,
  which is given in the first line of the user content.
- A trip length plus a month gives concrete dates (a 3-day trip in mid-June
  becomes June 14 to June 17).
- "a couple" means 2 travelers, "family" means 4 unless stated otherwise.
- Never invent values the user did not give. Omit unknown fields entirely.
- If the user corrects an earlier value, output the new value.`

// LLMExtractor uses an LLM to pull slot values out of a message. The
// conversation history is included so follow-up fragments ("make it Portland
// instead") resolve against context.
type LLMExtractor struct {
	client llm.Client
	model  string
	now    func() time.Time
}

// NewLLMExtractor creates an extractor backed by the given client and model.
func NewLLMExtractor(client llm.Client, model string) *LLMExtractor {
	return &LLMExtractor{client: client, model: model, now: time.Now}
}

// Extract asks the model for a JSON slot update and parses it.
func (e *LLMExtractor) Extract(ctx context.Context, message string, history []session.Turn, current travel.Slots) (travel.SlotUpdate, error) {
	messages := make([]llm.Message, 0, len(history)+1)
	for _, turn := range history {
		role := llm.RoleUser
		if turn.Role == "assistant" {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Text})
	}
	messages = append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: fmt.Sprintf("Today is %s.\n%s", e.now().Format("2006-01-02"), message),
	})

	temp := 0.0
	resp, err := e.client.Chat(ctx, llm.ChatRequest{
		Model:       e.model,
		System:      extractSystemPrompt,
		Messages:    messages,
		MaxTokens:   1024,
		Temperature: &temp,
	})
	if err != nil {
		return nil, fmt.Errorf("extract slots: %w", err)
	}

	update, err := parseUpdate(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("extract slots: %w", err)
	}
	return update, nil
}

// parseUpdate tolerates prose or markdown fences around the JSON object.
func parseUpdate(content string) (travel.SlotUpdate, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in model output")
	}

	var update travel.SlotUpdate
	if err := json.Unmarshal([]byte(content[start:end+1]), &update); err != nil {
		return nil, fmt.Errorf("parse model output: %w", err)
	}
	return update, nil
}
