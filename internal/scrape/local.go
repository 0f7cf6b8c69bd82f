package scrape

import (
	"bytes"
	"context"
	"html"
	"io"
	"mime"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
)

// DefaultUserAgent is a desktop browser identity; several company sites
// serve an empty shell or a 403 to obvious bots.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

const (
	defaultLocalTimeout = 10 * time.Second
	maxBodyBytes        = 2 << 20
)

// LocalScraper fetches HTML via net/http, detects blocks, and converts the
// page to plaintext. Free, no API calls.
type LocalScraper struct {
	client           *http.Client
	userAgent        string
	rejectChallenges bool
}

// LocalOption configures a LocalScraper.
type LocalOption func(*LocalScraper)

// WithTimeout bounds the whole request including reading the body.
func WithTimeout(d time.Duration) LocalOption {
	return func(l *LocalScraper) {
		if d > 0 {
			l.client.Timeout = d
		}
	}
}

// WithUserAgent overrides DefaultUserAgent.
func WithUserAgent(ua string) LocalOption {
	return func(l *LocalScraper) {
		if ua != "" {
			l.userAgent = ua
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) LocalOption {
	return func(l *LocalScraper) {
		if hc != nil {
			l.client = hc
		}
	}
}

// WithRejectChallenges makes a 2xx challenge, captcha, refresh-shell or
// empty page a failure, so a later scraper in the chain gets a turn. Without
// it such pages are returned as fetched.
func WithRejectChallenges() LocalOption {
	return func(l *LocalScraper) { l.rejectChallenges = true }
}

// NewLocalScraper creates a LocalScraper with a 10s timeout and a browser
// User-Agent.
func NewLocalScraper(opts ...LocalOption) *LocalScraper {
	l := &LocalScraper{
		client: &http.Client{
			Timeout: defaultLocalTimeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout: 5 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 5 * time.Second,
			},
		},
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *LocalScraper) Name() string           { return "local_http" }
func (l *LocalScraper) Supports(_ string) bool { return true }

// Scrape fetches a URL, detects blocks, and extracts title, meta description
// and visible text.
func (l *LocalScraper) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: create request")
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: read body")
	}

	blocked, blockType := DetectBlock(resp, body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if blocked {
			return nil, eris.Errorf("local_http: blocked (%s)", blockType)
		}
		return nil, eris.Errorf("local_http: status %d", resp.StatusCode)
	}
	if blocked {
		if l.rejectChallenges {
			return nil, eris.Errorf("local_http: blocked (%s)", blockType)
		}
		zap.L().Debug("local_http: page looks like a challenge, keeping it",
			zap.String("url", targetURL),
			zap.String("block_type", string(blockType)),
		)
	}

	if len(bytes.TrimSpace(body)) == 0 {
		if l.rejectChallenges {
			return nil, eris.New("local_http: empty page")
		}
		return &Result{
			Page:   Page{URL: targetURL, StatusCode: resp.StatusCode},
			Source: "local_http",
		}, nil
	}

	doc, err := decodeBody(resp.Header.Get("Content-Type"), body)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: decode body")
	}

	return &Result{
		Page: Page{
			URL:         targetURL,
			Title:       extractTitle(doc),
			Description: extractMetaDescription(doc),
			Text:        extractText(doc),
			StatusCode:  resp.StatusCode,
		},
		Source: "local_http",
	}, nil
}

var metaCharsetRe = regexp.MustCompile(`(?i)<meta[^>]+charset=["']?([\w-]+)`)

// decodeBody converts the body to UTF-8 using the charset from the
// Content-Type header or, failing that, a <meta charset> tag.
func decodeBody(contentType string, body []byte) (string, error) {
	charset := ""
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		charset = params["charset"]
	}
	if charset == "" {
		head := body
		if len(head) > 2048 {
			head = head[:2048]
		}
		if m := metaCharsetRe.FindSubmatch(head); m != nil {
			charset = string(m[1])
		}
	}

	charset = strings.ToLower(strings.TrimSpace(charset))
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return string(body), nil
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		// Unknown label: treat as UTF-8 rather than losing the page.
		return string(body), nil
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", eris.Wrapf(err, "charset %q", charset)
	}
	return string(decoded), nil
}

var (
	titleRe    = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	metaTagRe  = regexp.MustCompile(`(?is)<meta\s[^>]*>`)
	metaNameRe = regexp.MustCompile(`(?i)\bname\s*=\s*["']description["']`)
	contentRe  = regexp.MustCompile(`(?is)\bcontent\s*=\s*(?:"([^"]*)"|'([^']*)')`)
	bodyRe     = regexp.MustCompile(`(?is)<body[^>]*>(.*)</body>`)
	headRe     = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	hiddenRes  = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
		regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`),
		regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`),
		regexp.MustCompile(`(?is)<template[^>]*>.*?</template>`),
		regexp.MustCompile(`(?is)<!--.*?-->`),
	}
	tagRe   = regexp.MustCompile(`<[^>]+>`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// extractTitle pulls the <title> from HTML.
func extractTitle(doc string) string {
	m := titleRe.FindStringSubmatch(doc)
	if len(m) > 1 {
		return collapse(html.UnescapeString(m[1]))
	}
	return ""
}

// extractMetaDescription returns the content of <meta name="description">,
// regardless of attribute order.
func extractMetaDescription(doc string) string {
	for _, tag := range metaTagRe.FindAllString(doc, -1) {
		if !metaNameRe.MatchString(tag) {
			continue
		}
		m := contentRe.FindStringSubmatch(tag)
		if m == nil {
			return ""
		}
		return collapse(html.UnescapeString(m[1] + m[2]))
	}
	return ""
}

// extractText returns the visible text of the <body> with scripts, styles
// and comments removed and whitespace collapsed to single spaces.
func extractText(doc string) string {
	if m := bodyRe.FindStringSubmatch(doc); m != nil {
		doc = m[1]
	} else {
		doc = headRe.ReplaceAllString(doc, "")
	}
	for _, re := range hiddenRes {
		doc = re.ReplaceAllString(doc, " ")
	}
	doc = tagRe.ReplaceAllString(doc, " ")
	return collapse(html.UnescapeString(doc))
}

func collapse(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
