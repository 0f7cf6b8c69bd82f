package compose

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/llm"
)

// GenericGreeting is used whenever no personal first name is known.
const GenericGreeting = "Hi there,"

// Greeter turns an optional customer name into the opening line.
type Greeter interface {
	Greeting(ctx context.Context, name string) string
}

// FirstNameGreeter greets with the first whitespace-separated token of the
// name.
type FirstNameGreeter struct{}

func (FirstNameGreeter) Greeting(_ context.Context, name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return GenericGreeting
	}
	return fmt.Sprintf("Hi %s,", fields[0])
}

// maxGreetingLen rejects replies that are clearly not a greeting line.
const maxGreetingLen = 60

// LLMGreeter asks a model whether the name is a person or an organization
// and greets persons by first name. Any failure yields GenericGreeting.
type LLMGreeter struct {
	llm llm.Completer
}

// NewLLMGreeter creates an LLMGreeter.
func NewLLMGreeter(completer llm.Completer) *LLMGreeter {
	return &LLMGreeter{llm: completer}
}

const greetingPrompt = `A new customer signed up with this name or description:

%s

Decide whether it is a person's name or the name of an organization, team or project.
If it is a person, reply with exactly "Hi <first name>," using their first name.
Otherwise reply with exactly "Hi there,".
Reply with the greeting line only.`

func (g *LLMGreeter) Greeting(ctx context.Context, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return GenericGreeting
	}

	reply, err := g.llm.Complete(ctx, llm.Request{
		Phase:     "greeting",
		Prompt:    fmt.Sprintf(greetingPrompt, name),
		MaxTokens: 32,
	})
	if err != nil {
		zap.L().Warn("compose: greeting model call failed", zap.Error(err))
		return GenericGreeting
	}

	reply = strings.Trim(strings.TrimSpace(reply), `"`)
	if !validGreeting(reply) {
		zap.L().Warn("compose: rejected model greeting", zap.String("reply", reply))
		return GenericGreeting
	}
	return reply
}

func validGreeting(s string) bool {
	return s != "" &&
		len(s) <= maxGreetingLen &&
		!strings.ContainsAny(s, "\r\n") &&
		strings.HasPrefix(s, "Hi ") &&
		strings.HasSuffix(s, ",")
}
