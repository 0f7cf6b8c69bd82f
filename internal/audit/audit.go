// Package audit emails an internal summary of every pipeline run.
package audit

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html"
	"html/template"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/mailer"
	"github.com/sells-group/outreach-cli/internal/markdown"
	"github.com/sells-group/outreach-cli/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

var reportTmpl = template.Must(template.ParseFS(templateFS, "templates/report.html"))

// DefaultFromName is the display name audit reports are sent under.
const DefaultFromName = "ZeroDev Email Agent"

const timeLayout = "Mon, 02 Jan 2006 15:04:05 MST"

// Notifier sends audit reports immediately to a single internal recipient.
type Notifier struct {
	mailer    mailer.Mailer
	from      mailer.Address
	recipient string
	now       func() time.Time
}

// New creates a Notifier. from.Name defaults to DefaultFromName.
func New(m mailer.Mailer, from mailer.Address, recipient string) *Notifier {
	if from.Name == "" {
		from.Name = DefaultFromName
	}
	return &Notifier{
		mailer:    m,
		from:      from,
		recipient: strings.TrimSpace(recipient),
		now:       time.Now,
	}
}

// Enabled reports whether reports will be attempted at all.
func (n *Notifier) Enabled() bool {
	return n.recipient != "" && n.mailer != nil && n.mailer.Configured()
}

// Subject formats the report subject line.
func Subject(rec model.AuditRecord) string {
	who := "Unknown Customer"
	if rec.Customer != nil && rec.Customer.Email != "" {
		who = rec.Customer.Email
	}
	return fmt.Sprintf("[Email Agent Audit] %s: %s", strings.ToUpper(string(rec.Status)), who)
}

// Notify renders rec and sends it. Without a recipient or provider
// credentials it does nothing and returns false. It never panics.
func (n *Notifier) Notify(ctx context.Context, rec model.AuditRecord) (ok bool) {
	log := zap.L().With(zap.String("run_id", rec.RunID), zap.String("status", string(rec.Status)))
	defer func() {
		if r := recover(); r != nil {
			log.Error("audit: recovered panic", zap.Any("panic", r))
			ok = false
		}
	}()

	if !n.Enabled() {
		log.Debug("audit: no recipient or provider credentials, skipping report")
		return false
	}

	body, err := n.Render(rec)
	if err != nil {
		log.Error("audit: render report", zap.Error(err))
		return false
	}

	err = n.mailer.Send(ctx, mailer.Message{
		From:    n.from,
		To:      mailer.Address{Email: n.recipient},
		Subject: Subject(rec),
		HTML:    body,
	})
	if err != nil {
		log.Error("audit: send report", zap.String("provider", n.mailer.Name()), zap.Error(err))
		return false
	}

	log.Info("audit: report sent", zap.String("recipient", n.recipient))
	return true
}

type reportData struct {
	Status       string
	Time         string
	RunID        string
	Customer     *model.CustomerRecord
	Company      *model.CompanyInfo
	Email        *model.ComposedEmail
	ScheduledFor string
	EmailBody    template.HTML
	ErrMessage   string
	ErrStack     string
	Reason       string
	RawInput     string
	Agent        string
}

// Render produces the HTML report body. Each block appears only when the
// record carries its data and, for the email, error and skip blocks, when
// the status matches.
func (n *Notifier) Render(rec model.AuditRecord) (string, error) {
	at := rec.At
	if at.IsZero() {
		at = n.now()
	}

	data := reportData{
		Status:   strings.ToUpper(string(rec.Status)),
		Time:     at.Format(timeLayout),
		RunID:    rec.RunID,
		Customer: rec.Customer,
		Company:  rec.Company,
		RawInput: rec.RawInput,
		Agent:    n.from.Name,
	}

	switch rec.Status {
	case model.AuditSuccess:
		if rec.Email != nil {
			data.Email = rec.Email
			data.ScheduledFor = rec.Email.SendAt.Format(timeLayout)
			// Escape first so only the markdown conversion produces markup.
			data.EmailBody = template.HTML(markdown.ToHTML(html.EscapeString(rec.Email.Body))) //nolint:gosec
		}
	case model.AuditError:
		if rec.Err != nil {
			data.ErrMessage = rec.Err.Error()
			data.ErrStack = eris.ToString(rec.Err, true)
		}
	case model.AuditSkipped:
		data.Reason = rec.Reason
	}

	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, data); err != nil {
		return "", eris.Wrap(err, "audit: execute template")
	}
	return buf.String(), nil
}
