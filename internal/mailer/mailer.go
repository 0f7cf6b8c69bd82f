// Package mailer sends HTML email through a transactional provider.
package mailer

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Provider names accepted by New.
const (
	ProviderSendGrid = "sendgrid"
	ProviderSES      = "ses"
	ProviderNoop     = "noop"
)

var (
	// ErrNotConfigured is returned by Send when the provider lacks credentials.
	ErrNotConfigured = eris.New("mailer: provider credentials not configured")
	// ErrSchedulingUnsupported is returned for a future SendAt on a provider
	// that can only send immediately.
	ErrSchedulingUnsupported = eris.New("mailer: provider cannot schedule delivery")
)

// Address is a mailbox with an optional display name.
type Address struct {
	Name  string
	Email string
}

// String formats the address as `Name <email>` or just the email.
func (a Address) String() string {
	if a.Name == "" {
		return a.Email
	}
	return (&mail.Address{Name: a.Name, Address: a.Email}).String()
}

// ParseAddress accepts `addr@example.com` or `Name <addr@example.com>`.
// Unparseable input yields the zero Address.
func ParseAddress(s string) Address {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}
	}
	parsed, err := mail.ParseAddress(s)
	if err != nil {
		zap.L().Warn("mailer: invalid address", zap.String("address", s), zap.Error(err))
		return Address{}
	}
	return Address{Name: parsed.Name, Email: parsed.Address}
}

// Message is a single HTML email. A zero SendAt means send immediately.
type Message struct {
	From    Address
	To      Address
	Subject string
	HTML    string
	SendAt  time.Time
}

// Mailer delivers messages. Implementations are safe for concurrent use.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
	// Configured reports whether the provider has the credentials it needs.
	Configured() bool
	Name() string
}

// Config selects and configures a provider.
type Config struct {
	Provider string
	SendGrid SendGridConfig
	SES      SESConfig
}

// New creates a Mailer from config.
func New(cfg Config) (Mailer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderSendGrid:
		return NewSendGrid(cfg.SendGrid), nil
	case ProviderSES:
		return NewSES(cfg.SES), nil
	case ProviderNoop:
		return Noop{}, nil
	default:
		return nil, eris.Errorf("mailer: unknown provider %q", cfg.Provider)
	}
}

// Noop logs messages instead of sending them.
type Noop struct{}

func (Noop) Name() string     { return ProviderNoop }
func (Noop) Configured() bool { return true }

func (Noop) Send(_ context.Context, msg Message) error {
	fields := []zap.Field{
		zap.String("to", msg.To.Email),
		zap.String("subject", msg.Subject),
	}
	if !msg.SendAt.IsZero() {
		fields = append(fields, zap.Time("send_at", msg.SendAt))
	}
	zap.L().Info("mailer: email would be sent (noop)", fields...)
	return nil
}
