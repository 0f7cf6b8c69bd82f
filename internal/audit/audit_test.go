package audit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/mailer"
	"github.com/sells-group/outreach-cli/internal/model"
)

type mockMailer struct {
	mock.Mock
	configured bool
}

func (m *mockMailer) Send(ctx context.Context, msg mailer.Message) error {
	return m.Called(ctx, msg).Error(0)
}
func (m *mockMailer) Configured() bool { return m.configured }
func (m *mockMailer) Name() string     { return "mock" }

var (
	from     = mailer.Address{Email: "derek@zerodev.app"}
	customer = &model.CustomerRecord{Email: "alice@acme.xyz", Name: "Alice Smith"}
	at       = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "[Email Agent Audit] SUCCESS: alice@acme.xyz",
		Subject(model.AuditRecord{Status: model.AuditSuccess, Customer: customer}))
	assert.Equal(t, "[Email Agent Audit] SKIPPED: Unknown Customer",
		Subject(model.AuditRecord{Status: model.AuditSkipped}))
}

func TestNotify_SendsImmediately(t *testing.T) {
	m := &mockMailer{configured: true}
	m.On("Send", mock.Anything, mock.MatchedBy(func(msg mailer.Message) bool {
		return msg.SendAt.IsZero() &&
			msg.From == mailer.Address{Name: DefaultFromName, Email: "derek@zerodev.app"} &&
			msg.To.Email == "audit@zerodev.app" &&
			msg.Subject == "[Email Agent Audit] ERROR: alice@acme.xyz" &&
			strings.Contains(msg.HTML, "<h3>Error Details</h3>")
	})).Return(nil).Once()

	n := New(m, from, " audit@zerodev.app ")
	ok := n.Notify(context.Background(), model.AuditRecord{
		Status:   model.AuditError,
		Customer: customer,
		Err:      errors.New("sendgrid: 401"),
		At:       at,
	})
	assert.True(t, ok)
	m.AssertExpectations(t)
}

func TestNotify_SkipsWithoutRecipientOrKey(t *testing.T) {
	unconfigured := &mockMailer{configured: false}
	assert.False(t, New(unconfigured, from, "audit@zerodev.app").Notify(context.Background(), model.AuditRecord{Status: model.AuditSkipped}))
	unconfigured.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)

	configured := &mockMailer{configured: true}
	assert.False(t, New(configured, from, "").Notify(context.Background(), model.AuditRecord{Status: model.AuditSkipped}))
	configured.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestNotify_SendFailure(t *testing.T) {
	m := &mockMailer{configured: true}
	m.On("Send", mock.Anything, mock.Anything).Return(errors.New("boom")).Once()

	assert.False(t, New(m, from, "audit@zerodev.app").Notify(context.Background(), model.AuditRecord{Status: model.AuditSuccess}))
	m.AssertNumberOfCalls(t, "Send", 1)
}

type panicMailer struct{}

func (panicMailer) Send(context.Context, mailer.Message) error { panic("nope") }
func (panicMailer) Configured() bool                           { return true }
func (panicMailer) Name() string                               { return "panic" }

func TestNotify_RecoversPanic(t *testing.T) {
	n := New(panicMailer{}, from, "audit@zerodev.app")
	assert.NotPanics(t, func() {
		assert.False(t, n.Notify(context.Background(), model.AuditRecord{Status: model.AuditSuccess}))
	})
}

func TestRender_Success(t *testing.T) {
	n := New(&mockMailer{}, from, "audit@zerodev.app")
	out, err := n.Render(model.AuditRecord{
		RunID:    "run-1",
		Status:   model.AuditSuccess,
		Customer: &model.CustomerRecord{Email: "alice@acme.xyz"},
		Company:  &model.CompanyInfo{CompanyName: "Acme"},
		Email: &model.ComposedEmail{
			To:      "alice@acme.xyz",
			Subject: "ZeroDev experience?",
			Body:    "Hi Alice,\n[book a call](https://cal.example) & <b>",
			SendAt:  at.Add(36 * time.Hour),
		},
		Err:      errors.New("ignored on success"),
		Reason:   "ignored on success",
		RawInput: "Customer email: alice@acme.xyz",
		At:       at,
	})
	require.NoError(t, err)

	assert.Contains(t, out, "<strong>Status:</strong> SUCCESS")
	assert.Contains(t, out, "<strong>Time:</strong> Sat, 01 Mar 2025 12:00:00 UTC")
	assert.Contains(t, out, "<strong>Run ID:</strong> run-1")
	assert.Contains(t, out, "<strong>Name:</strong> Not provided")
	assert.Contains(t, out, "<strong>Company Name:</strong> Acme")
	assert.Contains(t, out, "<strong>Category:</strong> Not determined")
	assert.Contains(t, out, "<strong>Scheduled For:</strong> Mon, 03 Mar 2025 00:00:00 UTC")
	assert.Contains(t, out, `Hi Alice,<br><a href="https://cal.example">book a call</a> &amp; &lt;b&gt;`)
	assert.Contains(t, out, "<h3>Original Email Content</h3>")
	assert.Contains(t, out, "ZeroDev Email Agent.")
	assert.NotContains(t, out, "Error Details")
	assert.NotContains(t, out, "Skipped Reason")
}

func TestRender_ErrorIncludesStack(t *testing.T) {
	n := New(&mockMailer{}, from, "audit@zerodev.app")
	out, err := n.Render(model.AuditRecord{
		Status:   model.AuditError,
		Err:      eris.Wrap(eris.New("status 401"), "dispatch failed"),
		Email:    &model.ComposedEmail{To: "alice@acme.xyz"},
		Customer: customer,
		At:       at,
	})
	require.NoError(t, err)

	assert.Contains(t, out, `<p style="color: red;">dispatch failed: status 401</p>`)
	assert.Contains(t, out, "<pre>")
	assert.Contains(t, out, "audit_test.go")
	assert.NotContains(t, out, "Email Details")
	assert.NotContains(t, out, "Company Analysis")
}

func TestRender_Skipped(t *testing.T) {
	n := New(&mockMailer{}, from, "audit@zerodev.app")
	n.now = func() time.Time { return at }

	out, err := n.Render(model.AuditRecord{
		Status:   model.AuditSkipped,
		Reason:   "no valid customer data",
		RawInput: "hello <world>",
	})
	require.NoError(t, err)

	assert.Contains(t, out, "<h3>Skipped Reason</h3>\n<p>no valid customer data</p>")
	assert.Contains(t, out, "<pre>hello &lt;world&gt;</pre>")
	assert.Contains(t, out, "Sat, 01 Mar 2025 12:00:00 UTC")
	assert.NotContains(t, out, "Customer Details")
}
