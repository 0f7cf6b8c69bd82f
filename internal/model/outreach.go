package model

import (
	"strings"
	"time"
)

// CustomerRecord is a customer parsed from a new-customer notification.
// Email always carries a non-webmail domain; Name is empty when absent.
type CustomerRecord struct {
	Email string `json:"email" yaml:"email"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Domain returns the lowercased part of the email after the last '@'.
func (c CustomerRecord) Domain() string {
	return EmailDomain(c.Email)
}

// EmailDomain returns the lowercased domain of an email address, or "" when
// the address has no '@'.
func EmailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[at+1:]))
}

// DomainLabel returns the leading label of a domain ("acme" for "acme.xyz").
func DomainLabel(domain string) string {
	label, _, _ := strings.Cut(domain, ".")
	return label
}

// CompanyInfo is the best-effort company identity derived from the customer's
// website. Either field may be empty.
type CompanyInfo struct {
	CompanyName string `json:"companyName,omitempty" yaml:"company_name,omitempty"`
	Category    string `json:"category,omitempty" yaml:"category,omitempty"`
}

// IsZero reports whether neither field was resolved.
func (c CompanyInfo) IsZero() bool {
	return c.CompanyName == "" && c.Category == ""
}

// ComposedEmail is a fully rendered outreach message. Body uses the
// lightweight markdown dialect understood by the markdown package.
type ComposedEmail struct {
	To      string    `json:"to" yaml:"to"`
	Subject string    `json:"subject" yaml:"subject"`
	Body    string    `json:"body" yaml:"body"`
	SendAt  time.Time `json:"send_at" yaml:"send_at"`
}

// AuditStatus is the terminal state of a pipeline run.
type AuditStatus string

const (
	AuditSuccess AuditStatus = "success"
	AuditError   AuditStatus = "error"
	AuditSkipped AuditStatus = "skipped"
)

// AuditRecord carries whatever a run produced up to its terminal state.
// It is rendered and sent once, never stored.
type AuditRecord struct {
	RunID    string
	Status   AuditStatus
	Customer *CustomerRecord
	Company  *CompanyInfo
	Email    *ComposedEmail
	Err      error
	Reason   string
	RawInput string
	At       time.Time
}
