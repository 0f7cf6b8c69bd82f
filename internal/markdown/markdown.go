// Package markdown converts the small markdown dialect used in outreach
// bodies into email-safe HTML.
package markdown

import (
	"regexp"
	"strings"
)

var (
	linkRe   = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	boldRe   = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicRe = regexp.MustCompile(`\*([^*]+)\*`)
)

// ToHTML converts line breaks, [text](url) links, **bold** and *italic*.
// Bold is replaced before italic so double asterisks are never read as two
// italic markers. Input is not HTML-escaped.
func ToHTML(md string) string {
	html := strings.ReplaceAll(md, "\n", "<br>")
	html = linkRe.ReplaceAllString(html, `<a href="$2">$1</a>`)
	html = boldRe.ReplaceAllString(html, "<strong>$1</strong>")
	html = italicRe.ReplaceAllString(html, "<em>$1</em>")
	return html
}
