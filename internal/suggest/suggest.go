// Package suggest proposes variant content for a new test by asking an
// external chat-completion service. The collaborator is best effort: any
// failure falls back to a deterministic static list so test creation keeps
// working while the service is down.
package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Suggestion is one proposed variant. Changes is an opaque payload the
// caller's renderer interprets; the engine never looks inside it.
type Suggestion struct {
	VariantName string          `json:"variantName"`
	Description string          `json:"description"`
	Changes     json.RawMessage `json:"changes"`
}

// ChatCompleter is the slice of the OpenAI client the generator needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Generator struct {
	client  ChatCompleter
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

const (
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 10 * time.Second
)

// NewGenerator builds a generator backed by the OpenAI API. An empty apiKey
// disables the collaborator entirely; Suggest then always returns the
// fallback list.
func NewGenerator(apiKey, model string, timeout time.Duration, logger *zap.Logger) *Generator {
	g := &Generator{model: model, timeout: timeout, logger: logger}
	if g.model == "" {
		g.model = DefaultModel
	}
	if g.timeout <= 0 {
		g.timeout = DefaultTimeout
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	if apiKey != "" {
		g.client = openai.NewClient(apiKey)
	}
	return g
}

// NewGeneratorWithClient is for tests and alternative transports.
func NewGeneratorWithClient(client ChatCompleter, model string, timeout time.Duration, logger *zap.Logger) *Generator {
	g := NewGenerator("", model, timeout, logger)
	g.client = client
	return g
}

// Suggest returns at least three suggestions for the given element and never
// returns an error. The collaborator call is bounded by the generator's
// timeout; on expiry, API failure, or unusable output the static fallback is
// returned instead.
func (g *Generator) Suggest(ctx context.Context, elementSelector, elementType, currentContent string) []Suggestion {
	if g.client == nil {
		return Fallback(elementType)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(elementSelector, elementType, currentContent)},
		},
		Temperature: 0.8,
	})
	if err != nil {
		g.logger.Warn("suggestion collaborator failed, using fallback", zap.Error(err))
		return Fallback(elementType)
	}
	if len(resp.Choices) == 0 {
		g.logger.Warn("suggestion collaborator returned no choices, using fallback")
		return Fallback(elementType)
	}

	suggestions, err := parseSuggestions(resp.Choices[0].Message.Content)
	if err != nil {
		g.logger.Warn("suggestion output unusable, using fallback", zap.Error(err))
		return Fallback(elementType)
	}

	return suggestions
}

const systemPrompt = `You are a conversion rate optimization expert. ` +
	`Respond with a JSON array only, no prose. Each element has the shape ` +
	`{"variantName": string, "description": string, "changes": object}.`

func buildPrompt(elementSelector, elementType, currentContent string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Propose 3 A/B test variants for the %s element matching %q.\n", elementType, elementSelector)
	if currentContent != "" {
		fmt.Fprintf(&b, "Current content: %q\n", currentContent)
	}
	b.WriteString("Include one unchanged control variant with an empty changes object.")
	return b.String()
}

// parseSuggestions extracts the JSON array from the model reply, tolerating
// surrounding prose or markdown fences.
func parseSuggestions(content string) ([]Suggestion, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON array in reply")
	}

	var suggestions []Suggestion
	if err := json.Unmarshal([]byte(content[start:end+1]), &suggestions); err != nil {
		return nil, fmt.Errorf("failed to parse suggestions: %w", err)
	}
	if len(suggestions) == 0 {
		return nil, fmt.Errorf("empty suggestion list")
	}
	for _, s := range suggestions {
		if s.VariantName == "" {
			return nil, fmt.Errorf("suggestion missing variantName")
		}
	}

	return suggestions, nil
}
