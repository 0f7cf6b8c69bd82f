package main

import (
	"context"
	"io"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/outreach-cli/internal/audit"
	"github.com/sells-group/outreach-cli/internal/compose"
	"github.com/sells-group/outreach-cli/internal/config"
	"github.com/sells-group/outreach-cli/internal/dispatch"
	"github.com/sells-group/outreach-cli/internal/enrich"
	"github.com/sells-group/outreach-cli/internal/extract"
	"github.com/sells-group/outreach-cli/internal/llm"
	"github.com/sells-group/outreach-cli/internal/mailer"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/outreach"
	"github.com/sells-group/outreach-cli/internal/scrape"
	anthropicpkg "github.com/sells-group/outreach-cli/pkg/anthropic"
	"github.com/sells-group/outreach-cli/pkg/gemini"
	"github.com/sells-group/outreach-cli/pkg/jina"
)

// pipelineOptions are the per-command switches for initPipeline.
type pipelineOptions struct {
	// DryRun swaps the outreach mailer for a no-op one.
	DryRun bool
	// Preview receives the YAML rendering of each composed email, or nil.
	Preview io.Writer
}

// pipelineEnv holds the wired pipeline and the pieces commands log about.
type pipelineEnv struct {
	Pipeline *outreach.Pipeline
	Scrapers []string
	Mailer   mailer.Mailer
	Audit    *audit.Notifier
}

// initPipeline builds every client from cfg and wires the pipeline.
// Missing credentials do not fail here; the affected step degrades per run.
func initPipeline(ctx context.Context, c *config.Config, opts pipelineOptions) (*pipelineEnv, error) {
	completer, err := initCompleter(ctx, c)
	if err != nil {
		return nil, err
	}

	chain := initScrapeChain(c)
	enricher := enrich.New(chain, completer,
		enrich.WithMaxContentChars(c.Scrape.MaxContentChars),
		enrich.WithProductName(c.Compose.ProductName),
	)

	var greeter compose.Greeter = compose.FirstNameGreeter{}
	if c.Compose.Greeting == config.GreetingLLM {
		greeter = compose.NewLLMGreeter(completer)
	}
	composer := compose.New(compose.Config{
		Subject:         c.Compose.Subject,
		SenderFirstName: c.Compose.SenderFirstName,
		ProductName:     c.Compose.ProductName,
		CalendarURL:     c.Compose.CalendarURL,
		TelegramURL:     c.Compose.TelegramURL,
		SendImmediately: c.Compose.SendImmediately,
		MinDelay:        c.Compose.MinDelay,
		MaxDelay:        c.Compose.MaxDelay,
	}, compose.WithGreeter(greeter))

	var outbound mailer.Mailer = mailer.Noop{}
	if !opts.DryRun {
		outbound, err = mailer.New(mailerConfig(c, c.Mail.Provider))
		if err != nil {
			return nil, eris.Wrap(err, "init mail provider")
		}
	}
	auditMailer, err := mailer.New(mailerConfig(c, c.Audit.Provider))
	if err != nil {
		return nil, eris.Wrap(err, "init audit provider")
	}

	from := senderAddress(c.Sender)
	notifier := audit.New(auditMailer, mailer.Address{Name: c.Audit.FromName, Email: from.Email}, c.Audit.Recipient)

	var pipelineOpts []outreach.Option
	if opts.Preview != nil {
		pipelineOpts = append(pipelineOpts, outreach.WithPreview(previewWriter(opts.Preview)))
	}

	p := outreach.NewPipeline(
		extract.New(c.Extract.GenericDomains),
		enricher,
		composer,
		dispatch.New(outbound, from),
		notifier,
		pipelineOpts...,
	)

	env := &pipelineEnv{
		Pipeline: p,
		Scrapers: chain.Names(),
		Mailer:   outbound,
		Audit:    notifier,
	}
	zap.L().Info("pipeline initialized", append(env.logFields(), zap.String("llm", c.LLM.Provider))...)
	return env, nil
}

func (e *pipelineEnv) logFields() []zap.Field {
	return []zap.Field{
		zap.Strings("scrapers", e.Scrapers),
		zap.String("mailer", e.Mailer.Name()),
		zap.Bool("mailer_configured", e.Mailer.Configured()),
		zap.Bool("audit_enabled", e.Audit.Enabled()),
	}
}

// initScrapeChain returns the local scraper, followed by Jina Reader when a
// Jina key is configured. Challenge pages only fail locally when Jina can
// retry them.
func initScrapeChain(c *config.Config) *scrape.Chain {
	localOpts := []scrape.LocalOption{
		scrape.WithTimeout(time.Duration(c.Scrape.TimeoutSecs) * time.Second),
		scrape.WithUserAgent(c.Scrape.UserAgent),
	}
	if c.Jina.Key == "" {
		return scrape.NewChain(scrape.NewLocalScraper(localOpts...))
	}
	localOpts = append(localOpts, scrape.WithRejectChallenges())
	client := jina.NewClient(c.Jina.Key, jina.WithBaseURL(c.Jina.BaseURL))
	return scrape.NewChain(scrape.NewLocalScraper(localOpts...), scrape.NewJinaAdapter(client))
}

// initCompleter selects the LLM backend. Without a key the completer always
// fails, which enrichment and the LLM greeter already tolerate.
func initCompleter(ctx context.Context, c *config.Config) (llm.Completer, error) {
	switch c.LLM.Provider {
	case config.LLMGemini:
		if c.Gemini.Key == "" {
			zap.L().Warn("gemini.key not set, company enrichment disabled")
			return llm.Unavailable{Reason: "gemini.key not set"}, nil
		}
		client, err := gemini.NewClient(ctx, gemini.Config{APIKey: c.Gemini.Key, BaseURL: c.Gemini.BaseURL})
		if err != nil {
			return nil, eris.Wrap(err, "init gemini")
		}
		return llm.NewGemini(client, c.Gemini.Model), nil
	case config.LLMAnthropic, "":
		if c.Anthropic.Key == "" {
			zap.L().Warn("anthropic.key not set, company enrichment disabled")
			return llm.Unavailable{Reason: "anthropic.key not set"}, nil
		}
		var reqOpts []option.RequestOption
		if c.Anthropic.BaseURL != "" {
			reqOpts = append(reqOpts, option.WithBaseURL(c.Anthropic.BaseURL))
		}
		return llm.NewAnthropic(anthropicpkg.NewClient(c.Anthropic.Key, reqOpts...), c.Anthropic.Model), nil
	default:
		return nil, eris.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
}

func mailerConfig(c *config.Config, provider string) mailer.Config {
	return mailer.Config{
		Provider: provider,
		SendGrid: mailer.SendGridConfig{
			APIKey:  c.SendGrid.Key,
			BaseURL: c.SendGrid.BaseURL,
		},
		SES: mailer.SESConfig{
			Region:          c.SES.Region,
			AccessKeyID:     c.SES.AccessKeyID,
			SecretAccessKey: c.SES.SecretAccessKey,
			Endpoint:        c.SES.Endpoint,
		},
	}
}

// senderAddress accepts sender.email as a bare address or `Name <addr>`.
// A bare address takes sender.name as its display name.
func senderAddress(s config.SenderConfig) mailer.Address {
	addr := mailer.ParseAddress(s.Email)
	if addr.Name == "" {
		addr.Name = s.Name
	}
	return addr
}

// previewWriter renders composed emails as YAML documents on w.
func previewWriter(w io.Writer) func(model.ComposedEmail) {
	return func(email model.ComposedEmail) {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(email); err != nil {
			zap.L().Warn("preview: encode email", zap.Error(err))
		}
		_ = enc.Close()
	}
}
