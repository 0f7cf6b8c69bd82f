// Package scrape fetches a company homepage through an ordered chain of
// scrapers and reduces it to text suitable for LLM prompts.
package scrape

import "context"

// Page is the text-level view of a fetched web page.
type Page struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Text        string `json:"text"`
	StatusCode  int    `json:"status_code"`
}

// Result holds a scraped page with its source.
type Result struct {
	Page   Page
	Source string // e.g. "local_http", "jina"
}

// Scraper fetches a single URL and returns its content.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Result, error)
	Name() string
	Supports(url string) bool
}
