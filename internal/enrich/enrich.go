// Package enrich derives a company name and interest category from the
// customer's website.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/llm"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/scrape"
)

// DefaultMaxContentChars bounds the page text sent to the model.
const DefaultMaxContentChars = 2000

// Fetcher fetches a single URL. *scrape.Chain satisfies it.
type Fetcher interface {
	Scrape(ctx context.Context, url string) (*scrape.Result, error)
}

// Enricher turns a customer email into CompanyInfo.
type Enricher struct {
	fetcher         Fetcher
	llm             llm.Completer
	maxContentChars int
	audience        string
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithMaxContentChars overrides DefaultMaxContentChars.
func WithMaxContentChars(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.maxContentChars = n
		}
	}
}

// WithProductName sets the product the category guidance is written for.
func WithProductName(name string) Option {
	return func(e *Enricher) {
		if name != "" {
			e.audience = name
		}
	}
}

// New creates an Enricher.
func New(fetcher Fetcher, completer llm.Completer, opts ...Option) *Enricher {
	e := &Enricher{
		fetcher:         fetcher,
		llm:             completer,
		maxContentChars: DefaultMaxContentChars,
		audience:        "ZeroDev",
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich returns the best available company identity for email. It never
// fails: an unreachable site yields an empty CompanyInfo and a model failure
// yields the domain's leading label as company name.
func (e *Enricher) Enrich(ctx context.Context, email string) model.CompanyInfo {
	domain := model.EmailDomain(email)
	log := zap.L().With(zap.String("email", email), zap.String("domain", domain))
	if domain == "" {
		log.Warn("enrich: email has no domain")
		return model.CompanyInfo{}
	}

	url := "https://" + domain
	res, err := e.fetcher.Scrape(ctx, url)
	if err != nil {
		log.Warn("enrich: website fetch failed", zap.String("url", url), zap.Error(err))
		return model.CompanyInfo{}
	}
	log.Debug("enrich: website fetched",
		zap.String("scraper", res.Source),
		zap.String("title", res.Page.Title),
	)

	fallback := model.CompanyInfo{CompanyName: model.DomainLabel(domain)}

	reply, err := e.llm.Complete(ctx, llm.Request{
		Phase:     "enrich",
		Prompt:    e.buildPrompt(summarize(res.Page, e.maxContentChars), domain),
		MaxTokens: 256,
		JSON:      true,
	})
	if err != nil {
		log.Warn("enrich: model call failed, using domain label", zap.Error(err))
		return fallback
	}

	info, err := parseCompanyInfo(reply)
	if err != nil {
		log.Warn("enrich: unparseable model reply, using domain label",
			zap.String("reply", reply),
			zap.Error(err),
		)
		return fallback
	}

	log.Info("enrich: company analyzed",
		zap.String("company", info.CompanyName),
		zap.String("category", info.Category),
	)
	return info
}

// summarize renders the page as the block the prompt embeds.
func summarize(p scrape.Page, maxChars int) string {
	return fmt.Sprintf("Title: %s\nDescription: %s\nContent: %s", p.Title, p.Description, truncateRunes(p.Text, maxChars))
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

type companyReply struct {
	CompanyName *string `json:"companyName"`
	Category    *string `json:"category"`
}

func parseCompanyInfo(reply string) (model.CompanyInfo, error) {
	var parsed companyReply
	if err := json.Unmarshal([]byte(llm.StripFences(reply)), &parsed); err != nil {
		return model.CompanyInfo{}, err
	}
	var info model.CompanyInfo
	if parsed.CompanyName != nil {
		info.CompanyName = *parsed.CompanyName
	}
	if parsed.Category != nil {
		info.Category = *parsed.Category
	}
	return info, nil
}

const enrichPrompt = `You are an AI assistant that analyzes website content to extract company information.

Website Content:
%s

Domain: %s

Context:
- This is for %s, a Web3 company that provides embedded smart accounts to Web3 companies
- All %s customers are already in Web3/crypto, so those are not meaningful specific categories
- The category must be specific enough that a human would genuinely say "I'm very into [category]" in conversation
- Generic terms like "platforms", "protocols", "apps", "wallets", "smart contracts" are not specific enough
- Good examples: "DeFi", "GameFi", "NFTs", "DAOs", "play-to-earn"

Determine:
1. The company name (extract it if present, otherwise use the domain name without its suffix)
2. A specific category that describes what the company does

Respond ONLY with a JSON object in this exact format, with no markdown and no text around it:
{"companyName": "COMPANY_NAME_HERE", "category": "CATEGORY_HERE"}

If the category is too generic to mention in conversation (for example just "Web3"), set it to null.
Don't capitalize the category unless it is known to be capitalized.
If you can't determine the company name, use null.`

func (e *Enricher) buildPrompt(content, domain string) string {
	return fmt.Sprintf(enrichPrompt, content, domain, e.audience, e.audience)
}
