package scrape

import (
	"net/http"
	"strings"
)

// BlockType names the anti-bot wall a page hit.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// interstitialMaxBytes bounds body-marker checks. Real landing pages often
// embed a recaptcha widget on a contact form; only short pages are walls.
const interstitialMaxBytes = 4096

var (
	cloudflareMarkers = []string{
		"checking your browser",
		"cf-browser-verification",
		"cf-challenge",
		"just a moment...",
	}
	captchaMarkers = []string{
		"g-recaptcha",
		"h-captcha",
		"captcha-delivery",
		"verify you are human",
	}
)

// DetectBlock reports whether a response is a challenge or captcha page
// rather than the site itself.
func DetectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if resp == nil {
		return false, BlockNone
	}

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		if resp.Header.Get("cf-ray") != "" || resp.Header.Get("cf-mitigated") != "" ||
			strings.EqualFold(resp.Header.Get("server"), "cloudflare") {
			return true, BlockCloudflare
		}
	}

	if len(body) > interstitialMaxBytes {
		return false, BlockNone
	}

	lower := strings.ToLower(string(body))

	for _, m := range cloudflareMarkers {
		if strings.Contains(lower, m) {
			return true, BlockCloudflare
		}
	}
	for _, m := range captchaMarkers {
		if strings.Contains(lower, m) {
			return true, BlockCaptcha
		}
	}

	if strings.Contains(lower, `http-equiv="refresh"`) && !strings.Contains(lower, "<p") {
		return true, BlockJSShell
	}

	return false, BlockNone
}
