package scrape

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/pkg/jina"
)

// JinaAdapter wraps a Jina Reader client as a Scraper.
type JinaAdapter struct {
	client jina.Client
}

// NewJinaAdapter creates a JinaAdapter from a Jina client.
func NewJinaAdapter(client jina.Client) *JinaAdapter {
	return &JinaAdapter{client: client}
}

func (j *JinaAdapter) Name() string           { return "jina" }
func (j *JinaAdapter) Supports(_ string) bool { return true }

// Scrape fetches a URL via Jina Reader and rejects challenge pages.
func (j *JinaAdapter) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	resp, err := j.client.Read(ctx, targetURL)
	if err != nil {
		return nil, err
	}

	if needsFallback(resp) {
		return nil, eris.New("jina: response needs fallback")
	}

	url := resp.Data.URL
	if url == "" {
		url = targetURL
	}
	return &Result{
		Page: Page{
			URL:         url,
			Title:       strings.TrimSpace(resp.Data.Title),
			Description: strings.TrimSpace(resp.Data.Description),
			Text:        collapse(resp.Data.Content),
			StatusCode:  200,
		},
		Source: "jina",
	}, nil
}

var challengeSignatures = []string{
	"checking your browser",
	"enable javascript",
	"please enable cookies",
	"access denied",
	"403 forbidden",
	"just a moment",
	"attention required",
}

// needsFallback reports whether a Jina response is empty or a challenge
// page, in which case the next scraper in the chain should try.
func needsFallback(resp *jina.ReadResponse) bool {
	if resp == nil {
		return true
	}
	if resp.Code != 0 && resp.Code != 200 {
		return true
	}

	content := strings.TrimSpace(resp.Data.Content)
	if content == "" && strings.TrimSpace(resp.Data.Title) == "" {
		return true
	}

	if len(content) < 1000 {
		lower := strings.ToLower(content)
		for _, sig := range challengeSignatures {
			if strings.Contains(lower, sig) {
				return true
			}
		}
	}

	return false
}
