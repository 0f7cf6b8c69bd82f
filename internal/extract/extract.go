// Package extract parses new-customer notifications into customer records.
package extract

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
)

// DefaultGenericDomains lists public webmail domains that carry no company
// signal.
var DefaultGenericDomains = []string{
	"gmail.com",
	"yahoo.com",
	"hotmail.com",
	"outlook.com",
	"aol.com",
	"icloud.com",
	"mail.com",
	"protonmail.com",
	"zoho.com",
}

const addressPattern = `[\w.+-]+@[\w-]+\.[\w.-]+`

var (
	emailRe   = regexp.MustCompile(`(?i)Customer email:\s*(` + addressPattern + `)`)
	nameRe    = regexp.MustCompile(`(?i)Customer description:[ \t]*([^\n]+)`)
	addressRe = regexp.MustCompile(`^` + addressPattern + `$`)
)

// IsAddress reports whether s is a single address of the form Parse accepts
// after the "Customer email:" label.
func IsAddress(s string) bool {
	return addressRe.MatchString(s)
}

// Extractor turns raw notification text into a CustomerRecord.
type Extractor struct {
	generic map[string]struct{}
}

// New creates an Extractor that rejects the given webmail domains. A nil or
// empty list falls back to DefaultGenericDomains.
func New(genericDomains []string) *Extractor {
	if len(genericDomains) == 0 {
		genericDomains = DefaultGenericDomains
	}
	generic := make(map[string]struct{}, len(genericDomains))
	for _, d := range genericDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			generic[d] = struct{}{}
		}
	}
	return &Extractor{generic: generic}
}

// Parse extracts the customer email and optional name from raw. It returns
// false when no usable customer is found, including generic webmail senders.
// Parse never panics.
func (e *Extractor) Parse(raw string) (rec *model.CustomerRecord, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("extract: recovered while parsing customer", zap.Any("panic", r))
			rec, ok = nil, false
		}
	}()

	m := emailRe.FindStringSubmatch(raw)
	if m == nil {
		return nil, false
	}
	email := m[1]

	if e.IsGeneric(email) {
		zap.L().Debug("extract: generic email domain", zap.String("email", email))
		return nil, false
	}

	var name string
	if nm := nameRe.FindStringSubmatch(raw); nm != nil {
		name = strings.TrimSpace(nm[1])
	}

	return &model.CustomerRecord{Email: email, Name: name}, true
}

// IsGeneric reports whether the email belongs to a webmail domain.
func (e *Extractor) IsGeneric(email string) bool {
	_, ok := e.generic[model.EmailDomain(email)]
	return ok
}
