package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// maxProjectionChars bounds the text projection handed to the completion
// collaborator. Longer pages are cut at the limit.
const maxProjectionChars = 20000

// ProjectText builds a text-only projection of an HTML document: scripts,
// styles and other non-content elements removed, tags stripped, whitespace
// collapsed, capped at maxProjectionChars. Falls back to a whitespace-collapsed
// raw string when the document cannot be parsed.
func ProjectText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return capProjection(collapseWhitespace(html))
	}

	doc.Find("script, style, noscript, iframe, svg").Remove()

	text := doc.Find("body").Text()
	if strings.TrimSpace(text) == "" {
		text = doc.Text()
	}

	return capProjection(collapseWhitespace(text))
}

// collapseWhitespace normalizes runs of whitespace to single spaces, keeping
// line boundaries so list-like content stays readable.
func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastSpace := true
	lastNewline := false
	for _, r := range s {
		switch {
		case r == '\n':
			if !lastNewline && b.Len() > 0 {
				b.WriteRune('\n')
				lastNewline = true
				lastSpace = true
			}
		case r == ' ' || r == '\t' || r == '\r':
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		default:
			b.WriteRune(r)
			lastSpace = false
			lastNewline = false
		}
	}
	return strings.TrimSpace(b.String())
}

func capProjection(s string) string {
	if len(s) <= maxProjectionChars {
		return s
	}
	// Back off to a rune boundary so the cut never splits a multi-byte
	// character.
	cut := maxProjectionChars
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
