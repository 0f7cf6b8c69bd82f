// Package dispatch hands composed outreach emails to the mail provider for
// delayed delivery.
package dispatch

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/mailer"
	"github.com/sells-group/outreach-cli/internal/markdown"
	"github.com/sells-group/outreach-cli/internal/model"
)

// ErrNoSender is returned when no sender address is configured.
var ErrNoSender = eris.New("dispatch: sender email not configured")

// Gateway schedules ComposedEmails through a Mailer.
type Gateway struct {
	mailer mailer.Mailer
	from   mailer.Address
}

// New creates a Gateway sending as from.
func New(m mailer.Mailer, from mailer.Address) *Gateway {
	return &Gateway{mailer: m, from: from}
}

// Send converts the body to HTML and issues exactly one scheduled-send
// request for email.SendAt. Missing credentials or sender fail this call
// only. Panics inside the provider are returned as errors.
func (g *Gateway) Send(ctx context.Context, email model.ComposedEmail) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("dispatch: recovered panic: %v", r)
		}
	}()

	if g.mailer == nil || !g.mailer.Configured() {
		return eris.Wrap(mailer.ErrNotConfigured, "dispatch")
	}
	if g.from.Email == "" {
		return ErrNoSender
	}

	msg := mailer.Message{
		From:    g.from,
		To:      mailer.Address{Email: email.To},
		Subject: email.Subject,
		HTML:    markdown.ToHTML(email.Body),
		SendAt:  email.SendAt,
	}
	if err := g.mailer.Send(ctx, msg); err != nil {
		return eris.Wrapf(err, "dispatch: %s send to %s", g.mailer.Name(), email.To)
	}

	zap.L().Info("dispatch: email scheduled",
		zap.String("to", email.To),
		zap.String("provider", g.mailer.Name()),
		zap.Time("send_at", email.SendAt),
	)
	return nil
}
