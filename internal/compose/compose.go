// Package compose renders the personalized outreach email.
package compose

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/sells-group/outreach-cli/internal/model"
)

// ImmediateDelay is the send delay used when SendImmediately is set.
const ImmediateDelay = 5 * time.Second

// Config holds the product copy and scheduling window.
type Config struct {
	Subject         string
	SenderFirstName string
	ProductName     string
	CalendarURL     string
	TelegramURL     string
	SendImmediately bool
	MinDelay        time.Duration
	MaxDelay        time.Duration
}

// DefaultConfig returns the stock ZeroDev copy and a 24h to 48h send window.
func DefaultConfig() Config {
	return Config{
		Subject:         "ZeroDev experience?",
		SenderFirstName: "Derek",
		ProductName:     "ZeroDev",
		CalendarURL:     "https://calendly.com/zerodev/30min",
		TelegramURL:     "https://t.me/derek_chiang",
		MinDelay:        24 * time.Hour,
		MaxDelay:        48 * time.Hour,
	}
}

// Composer builds ComposedEmails. It holds no per-run state.
type Composer struct {
	cfg     Config
	greeter Greeter
	now     func() time.Time
	rand    func() float64
}

// Option configures a Composer.
type Option func(*Composer)

// WithGreeter replaces the default FirstNameGreeter.
func WithGreeter(g Greeter) Option {
	return func(c *Composer) {
		if g != nil {
			c.greeter = g
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Composer) { c.now = now }
}

// WithRand overrides the [0,1) source used to pick the send time.
func WithRand(r func() float64) Option {
	return func(c *Composer) { c.rand = r }
}

// New creates a Composer. Zero-valued Config fields take their defaults.
func New(cfg Config, opts ...Option) *Composer {
	def := DefaultConfig()
	if cfg.Subject == "" {
		cfg.Subject = def.Subject
	}
	if cfg.SenderFirstName == "" {
		cfg.SenderFirstName = def.SenderFirstName
	}
	if cfg.ProductName == "" {
		cfg.ProductName = def.ProductName
	}
	if cfg.CalendarURL == "" {
		cfg.CalendarURL = def.CalendarURL
	}
	if cfg.TelegramURL == "" {
		cfg.TelegramURL = def.TelegramURL
	}
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = def.MinDelay
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}

	c := &Composer{
		cfg:     cfg,
		greeter: FirstNameGreeter{},
		now:     time.Now,
		rand:    rand.Float64,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose renders the email for customer. The company paragraph appears
// only when company.CompanyName is set, and its category clause only when
// company.Category is set.
func (c *Composer) Compose(ctx context.Context, customer model.CustomerRecord, company model.CompanyInfo) model.ComposedEmail {
	greeting := c.greeter.Greeting(ctx, customer.Name)

	return model.ComposedEmail{
		To:      customer.Email,
		Subject: c.cfg.Subject,
		Body:    c.body(greeting, company),
		SendAt:  c.sendAt(),
	}
}

func (c *Composer) sendAt() time.Time {
	now := c.now()
	if c.cfg.SendImmediately {
		return now.Add(ImmediateDelay)
	}
	window := c.cfg.MaxDelay - c.cfg.MinDelay
	return now.Add(c.cfg.MinDelay + time.Duration(c.rand()*float64(window)))
}

func (c *Composer) body(greeting string, company model.CompanyInfo) string {
	var b strings.Builder
	b.WriteString(greeting)
	b.WriteString("\n\n")
	b.WriteString("This is " + c.cfg.SenderFirstName + " the founder of " + c.cfg.ProductName +
		". I noticed that you recently signed up for " + c.cfg.ProductName +
		" -- how has the experience been?\n\n")

	cta := "If there's anything I can help with, feel free to [book a call](" + c.cfg.CalendarURL +
		") with me or [reach me on Telegram](" + c.cfg.TelegramURL + ")."

	if company.CompanyName != "" {
		b.WriteString("I checked out " + company.CompanyName + " and was very intrigued by what you are doing")
		if company.Category != "" {
			b.WriteString("; I'm also very into " + company.Category)
		}
		b.WriteString(".  ")
	}
	b.WriteString(cta)
	b.WriteString("\n\nBest,\n" + c.cfg.SenderFirstName)
	return b.String()
}
