// Package outreach runs the new-customer outreach pipeline: extract,
// enrich, compose, dispatch, and audit.
package outreach

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
)

// SkipReasonNoCustomer is the audit reason for inputs with no usable customer.
const SkipReasonNoCustomer = "no valid customer data"

// ErrDispatchFailed marks runs whose email the provider did not accept.
var ErrDispatchFailed = eris.New("outreach: dispatch failed")

// Extractor parses raw notification text.
type Extractor interface {
	Parse(raw string) (*model.CustomerRecord, bool)
}

// Enricher resolves company info for an email. It must not fail.
type Enricher interface {
	Enrich(ctx context.Context, email string) model.CompanyInfo
}

// Composer renders the outreach email.
type Composer interface {
	Compose(ctx context.Context, customer model.CustomerRecord, company model.CompanyInfo) model.ComposedEmail
}

// Dispatcher schedules a composed email with the mail provider.
type Dispatcher interface {
	Send(ctx context.Context, email model.ComposedEmail) error
}

// Auditor reports the terminal state of a run.
type Auditor interface {
	Notify(ctx context.Context, rec model.AuditRecord) bool
}

// Outcome is what a run reached. It mirrors the audit record.
type Outcome struct {
	RunID    string
	Status   model.AuditStatus
	Customer *model.CustomerRecord
	Company  *model.CompanyInfo
	Email    *model.ComposedEmail
	Err      error
	Reason   string
	// Audited is the Auditor's return value.
	Audited bool
}

// Pipeline sequences one run per Process call. It holds no per-run state and
// is safe for concurrent use.
type Pipeline struct {
	extractor  Extractor
	enricher   Enricher
	composer   Composer
	dispatcher Dispatcher
	auditor    Auditor
	preview    func(model.ComposedEmail)
	now        func() time.Time
	newRunID   func() string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPreview registers a callback that sees each composed email before it
// is dispatched.
func WithPreview(fn func(model.ComposedEmail)) Option {
	return func(p *Pipeline) { p.preview = fn }
}

// WithClock overrides time.Now for audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithRunIDs overrides the uuid run ID generator.
func WithRunIDs(fn func() string) Option {
	return func(p *Pipeline) { p.newRunID = fn }
}

// NewPipeline wires the pipeline stages.
func NewPipeline(ex Extractor, en Enricher, co Composer, di Dispatcher, au Auditor, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor:  ex,
		enricher:   en,
		composer:   co,
		dispatcher: di,
		auditor:    au,
		now:        time.Now,
		newRunID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs raw through the pipeline. Whatever happens, the Auditor is
// called exactly once with the terminal status, and no panic escapes.
func (p *Pipeline) Process(ctx context.Context, raw string) (out Outcome) {
	out.RunID = p.newRunID()
	log := zap.L().With(zap.String("run_id", out.RunID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("outreach: recovered panic", zap.Any("panic", r), zap.Stack("stack"))
			out.Status = model.AuditError
			out.Err = eris.Errorf("outreach: unexpected failure: %v", r)
		}
		out.Audited = p.audit(ctx, log, out, raw)
	}()

	customer, ok := p.extractor.Parse(raw)
	if !ok || customer == nil {
		log.Info("outreach: no valid customer data, skipping")
		out.Status = model.AuditSkipped
		out.Reason = SkipReasonNoCustomer
		return out
	}
	out.Customer = customer
	log = log.With(zap.String("email", customer.Email))
	log.Info("outreach: customer found", zap.String("name", customer.Name))

	company := p.enrich(ctx, log, customer.Email)
	out.Company = &company
	if !company.IsZero() {
		log.Info("outreach: company resolved",
			zap.String("company", company.CompanyName),
			zap.String("category", company.Category),
		)
	} else {
		log.Info("outreach: could not determine company information")
	}

	email := p.composer.Compose(ctx, *customer, company)
	out.Email = &email
	log.Info("outreach: email composed",
		zap.String("subject", email.Subject),
		zap.Time("send_at", email.SendAt),
	)

	if p.preview != nil {
		p.preview(email)
	}

	if err := p.dispatcher.Send(ctx, email); err != nil {
		log.Error("outreach: dispatch failed", zap.Error(err))
		out.Status = model.AuditError
		// eris matches ErrDispatchFailed by message and keeps err as the cause.
		out.Err = eris.Wrap(err, ErrDispatchFailed.Error())
		return out
	}

	log.Info("outreach: email scheduled")
	out.Status = model.AuditSuccess
	return out
}

// enrich shields the run from an Enricher panic by degrading to the
// domain's leading label.
func (p *Pipeline) enrich(ctx context.Context, log *zap.Logger, email string) (info model.CompanyInfo) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("outreach: enrichment panicked, using domain label", zap.Any("panic", r))
			info = model.CompanyInfo{CompanyName: model.DomainLabel(model.EmailDomain(email))}
		}
	}()
	return p.enricher.Enrich(ctx, email)
}

func (p *Pipeline) audit(ctx context.Context, log *zap.Logger, out Outcome, raw string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("outreach: audit panicked", zap.Any("panic", r))
			ok = false
		}
	}()
	return p.auditor.Notify(ctx, model.AuditRecord{
		RunID:    out.RunID,
		Status:   out.Status,
		Customer: out.Customer,
		Company:  out.Company,
		Email:    out.Email,
		Err:      out.Err,
		Reason:   out.Reason,
		RawInput: raw,
		At:       p.now(),
	})
}
