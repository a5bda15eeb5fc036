// Package webtext converts raw HTML into plaintext suitable for LLM input
// and normalizes company website URLs into stable cache keys.
package webtext

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxTextLength is the truncation limit for extracted page text.
const MaxTextLength = 15000

var (
	blockContentRe = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
	commentRe      = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockTagRe     = regexp.MustCompile(`(?i)<(br|p|div|h[1-6]|li|tr|section|article|header|footer)[^>]*>`)
	tagRe          = regexp.MustCompile(`<[^>]+>`)
	spaceRe        = regexp.MustCompile(`[ \t]+`)
	blankLineRe    = regexp.MustCompile(`\n\s*\n`)
)

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&nbsp;", " ",
)

// ExtractText strips scripts, styles, comments, and tags from HTML, decodes
// common entities, collapses whitespace, and truncates to MaxTextLength.
// Block-level elements become newlines so paragraph structure survives.
func ExtractText(html string) string {
	html = blockContentRe.ReplaceAllString(html, "")
	html = commentRe.ReplaceAllString(html, "")
	html = blockTagRe.ReplaceAllString(html, "\n")
	text := tagRe.ReplaceAllString(html, " ")
	text = entityReplacer.Replace(text)
	text = spaceRe.ReplaceAllString(text, " ")
	text = blankLineRe.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(norm.NFC.String(text))

	if len(text) > MaxTextLength {
		cut := MaxTextLength
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "\n...[truncated]"
	}
	return text
}

var (
	schemeStripRe = regexp.MustCompile(`(?i)^(mailto:|ftp://)`)
	httpSchemeRe  = regexp.MustCompile(`(?i)^https?://`)
	portRe        = regexp.MustCompile(`:443$`)
	wwwRe         = regexp.MustCompile(`(?i)^(www\.)+`)
)

// NormalizeURL turns any plausible website input into a clean fetchable URL.
// Handles bare domains, www. prefixes, trailing slashes/paths, whitespace,
// and accidental surrounding quotes. Bare domains get https://; an explicit
// http:// scheme is kept as given. Returns "" for inputs with no usable host.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	u = strings.Trim(u, `"'`)
	u = schemeStripRe.ReplaceAllString(u, "")

	scheme := "https://"
	if m := httpSchemeRe.FindString(u); m != "" {
		scheme = strings.ToLower(m)
		u = u[len(m):]
	}

	// Drop query strings and fragments.
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	u = strings.TrimRight(u, "/")
	u = portRe.ReplaceAllString(u, "")
	u = wwwRe.ReplaceAllString(u, "www.")

	if u == "" {
		return ""
	}
	return scheme + u
}
