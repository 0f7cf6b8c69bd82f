package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/pkg/anthropic"
	"github.com/sells-group/outreach-cli/pkg/gemini"
)

type mockAnthropic struct {
	mock.Mock
}

func (m *mockAnthropic) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*anthropic.MessageResponse)
	return resp, args.Error(1)
}

type mockGemini struct {
	mock.Mock
}

func (m *mockGemini) Generate(ctx context.Context, req gemini.Request) (*gemini.Response, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*gemini.Response)
	return resp, args.Error(1)
}

func TestAnthropicCompleter_Complete(t *testing.T) {
	client := &mockAnthropic{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-sonnet-4-5-20250929" &&
			req.MaxTokens == defaultMaxTokens &&
			req.System == "sys" &&
			len(req.Messages) == 1 && req.Messages[0].Content == "prompt" &&
			req.Temperature != nil && *req.Temperature == 0
	})).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "  hello \n"}},
	}, nil)

	out, err := NewAnthropic(client, "claude-sonnet-4-5-20250929").
		Complete(context.Background(), Request{Phase: "test", System: "sys", Prompt: "prompt"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	client.AssertExpectations(t)
}

func TestAnthropicCompleter_Errors(t *testing.T) {
	client := &mockAnthropic{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("overloaded")).Once()
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{}, nil).Once()

	c := NewAnthropic(client, "m")
	_, err := c.Complete(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")

	_, err = c.Complete(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no text")
}

func TestGeminiCompleter_Complete(t *testing.T) {
	client := &mockGemini{}
	client.On("Generate", mock.Anything, mock.MatchedBy(func(req gemini.Request) bool {
		return req.Model == "gemini-2.5-flash" && req.JSON && req.MaxOutputTokens == 64 &&
			req.Temperature != nil && *req.Temperature == 0
	})).Return(&gemini.Response{Text: `{"companyName":"Acme"}`}, nil)

	out, err := NewGemini(client, "gemini-2.5-flash").
		Complete(context.Background(), Request{Prompt: "p", MaxTokens: 64, JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"companyName":"Acme"}`, out)
}

func TestGeminiCompleter_Error(t *testing.T) {
	client := &mockGemini{}
	client.On("Generate", mock.Anything, mock.Anything).Return(nil, errors.New("quota"))

	_, err := NewGemini(client, "m").Complete(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gemini completion")
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"```{\"a\":1}```", `{"a":1}`},
		{"  Hi Alice,  ", "Hi Alice,"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripFences(tt.in))
	}
}

func TestUnavailable(t *testing.T) {
	_, err := Unavailable{Reason: "no key"}.Complete(context.Background(), Request{Phase: "enrich"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no key")
}
