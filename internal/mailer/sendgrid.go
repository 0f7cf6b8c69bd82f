package mailer

import (
	"context"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// DefaultSendGridHost is the SendGrid v3 API host.
const DefaultSendGridHost = "https://api.sendgrid.com"

// SendGridConfig holds SendGrid credentials.
type SendGridConfig struct {
	APIKey string
	// BaseURL overrides DefaultSendGridHost (for testing).
	BaseURL string
}

// SendGrid sends through the SendGrid v3 mail/send endpoint. A future
// SendAt is passed as send_at so SendGrid holds the message until then.
type SendGrid struct {
	apiKey string
	host   string
}

// NewSendGrid creates a SendGrid mailer.
func NewSendGrid(cfg SendGridConfig) *SendGrid {
	host := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if host == "" {
		host = DefaultSendGridHost
	}
	return &SendGrid{apiKey: strings.TrimSpace(cfg.APIKey), host: host}
}

func (s *SendGrid) Name() string     { return ProviderSendGrid }
func (s *SendGrid) Configured() bool { return s.apiKey != "" }

// Send issues exactly one request. It does not retry.
func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	if !s.Configured() {
		return ErrNotConfigured
	}

	m := sgmail.NewV3MailInit(
		sgmail.NewEmail(msg.From.Name, msg.From.Email),
		msg.Subject,
		sgmail.NewEmail(msg.To.Name, msg.To.Email),
		sgmail.NewContent("text/html", msg.HTML),
	)
	if !msg.SendAt.IsZero() {
		m.SetSendAt(int(msg.SendAt.Unix()))
	}

	req := sendgrid.GetRequest(s.apiKey, "/v3/mail/send", s.host)
	req.Method = rest.Post
	req.Body = sgmail.GetRequestBody(m)

	resp, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return eris.Wrap(err, "sendgrid: send request")
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return eris.Errorf("sendgrid: unexpected status %d: %s", resp.StatusCode, resp.Body)
	}

	zap.L().Debug("sendgrid: message accepted",
		zap.String("to", msg.To.Email),
		zap.Int("status", resp.StatusCode),
		zap.Strings("message_id", resp.Headers["X-Message-Id"]),
	)
	return nil
}
