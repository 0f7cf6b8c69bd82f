package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenUsage_EstimateCost(t *testing.T) {
	u := TokenUsage{InputTokens: 1_000_000, OutputTokens: 100_000}

	assert.InDelta(t, 3.0+1.5, u.EstimateCost("claude-sonnet-4-5-20250929"), 1e-9)
	assert.InDelta(t, 1.0+0.5, u.EstimateCost("claude-haiku-4-5-20251001"), 1e-9)
	assert.Zero(t, u.EstimateCost("unknown-model"))
}

func TestTokenUsage_LogCost(t *testing.T) {
	assert.NotPanics(t, func() {
		TokenUsage{InputTokens: 10}.LogCost("claude-sonnet-4-5-20250929", "enrich")
	})
}

func TestMessageResponse_Text_SkipsNonText(t *testing.T) {
	r := &MessageResponse{Content: []ContentBlock{
		{Type: "thinking", Text: "hmm"},
		{Type: "text", Text: "Hi Alice,"},
	}}
	assert.Equal(t, "Hi Alice,", r.Text())
}

func TestToSDKMessages_UnknownRoleDefaultsToUser(t *testing.T) {
	out := toSDKMessages([]Message{{Role: "system", Content: "x"}})
	assert.Len(t, out, 1)
	assert.Equal(t, "user", string(out[0].Role))
}

func TestNewClient_ReturnsNonNil(t *testing.T) {
	assert.NotNil(t, NewClient("test-api-key"))
}
