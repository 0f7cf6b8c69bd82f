// Package llm hides the language-model vendor behind a single-turn
// completion interface.
package llm

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/pkg/anthropic"
	"github.com/sells-group/outreach-cli/pkg/gemini"
)

// Request is a single-turn prompt. All completions run at temperature 0.
type Request struct {
	// Phase labels the call in cost logs (e.g. "enrich", "greeting").
	Phase     string
	System    string
	Prompt    string
	MaxTokens int
	// JSON hints that the caller expects a bare JSON object back.
	JSON bool
}

// Completer returns the model's text reply for a prompt.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

const defaultMaxTokens = 512

// AnthropicCompleter runs completions on the Anthropic Messages API.
type AnthropicCompleter struct {
	client anthropic.Client
	model  string
}

// NewAnthropic creates a Completer backed by an Anthropic client.
func NewAnthropic(client anthropic.Client, model string) *AnthropicCompleter {
	return &AnthropicCompleter{client: client, model: model}
}

func (a *AnthropicCompleter) Complete(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	temp := 0.0

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   int64(maxTokens),
		System:      req.System,
		Messages:    []anthropic.Message{{Role: "user", Content: req.Prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return "", eris.Wrap(err, "llm: anthropic completion")
	}
	resp.Usage.LogCost(a.model, req.Phase)

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", eris.New("llm: anthropic returned no text")
	}
	return text, nil
}

// GeminiCompleter runs completions on the Gemini API.
type GeminiCompleter struct {
	client gemini.Client
	model  string
}

// NewGemini creates a Completer backed by a Gemini client.
func NewGemini(client gemini.Client, model string) *GeminiCompleter {
	return &GeminiCompleter{client: client, model: model}
}

func (g *GeminiCompleter) Complete(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	var temp float32

	resp, err := g.client.Generate(ctx, gemini.Request{
		Model:           g.model,
		System:          req.System,
		Prompt:          req.Prompt,
		Temperature:     &temp,
		MaxOutputTokens: int32(maxTokens),
		JSON:            req.JSON,
	})
	if err != nil {
		return "", eris.Wrap(err, "llm: gemini completion")
	}
	resp.Usage.LogCost(g.model, req.Phase)

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", eris.New("llm: gemini returned no text")
	}
	return text, nil
}

// StripFences removes a surrounding markdown code fence (```json ... ```)
// that models sometimes add despite instructions.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.Contains(s[:nl], "{") {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// Unavailable is a Completer for when no provider is configured. Every call
// fails, which callers treat as a degraded model response.
type Unavailable struct {
	Reason string
}

func (u Unavailable) Complete(_ context.Context, req Request) (string, error) {
	zap.L().Debug("llm: completion skipped", zap.String("phase", req.Phase), zap.String("reason", u.Reason))
	return "", eris.Errorf("llm: unavailable: %s", u.Reason)
}
