// Package sanitizer cleans product description markup for catalog import.
//
// The transform is a fixed sequence of text rewrites and the order matters:
// quote characters escaped in step two stay escaped, while tag brackets and
// ampersands are restored. Output is deterministic; idempotence is not
// guaranteed.
package sanitizer

import (
	"regexp"
	"strings"
)

// DefaultPrefix marks attributes the catalog format does not recognise.
const DefaultPrefix = "data"

var (
	escaper   = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&#x27;")
	unescaper = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&")

	interTagSpace = regexp.MustCompile(`>\s+<`)
	spanTag       = regexp.MustCompile(`<span\b[^>]*>`)
	newline       = regexp.MustCompile(`\s*\n\s*`)
)

// Sanitizer cleans description fragments, stripping one attribute prefix.
type Sanitizer struct {
	prefixAttr *regexp.Regexp
}

// New returns a sanitizer stripping attributes named prefix-*.
func New(prefix string) *Sanitizer {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Sanitizer{
		prefixAttr: regexp.MustCompile(`\s` + regexp.QuoteMeta(prefix) + `-[\w\-.:]*\s*=\s*(?:"[^"]*"|'[^']*')`),
	}
}

var defaultSanitizer = New(DefaultPrefix)

// Sanitize applies the default sanitizer.
func Sanitize(fragment string) string {
	return defaultSanitizer.Sanitize(fragment)
}

// Sanitize runs the transform steps over fragment in order.
func (s *Sanitizer) Sanitize(fragment string) string {
	out := s.prefixAttr.ReplaceAllString(fragment, "")
	out = escaper.Replace(out)
	out = unescaper.Replace(out)
	out = interTagSpace.ReplaceAllString(out, "><")
	out = spaceAfterSpans(out)
	out = newline.ReplaceAllString(out, "")
	return out
}

// spaceAfterSpans inserts one space after every opening span tag that is
// directly followed by another opening tag, nested spans included.
func spaceAfterSpans(s string) string {
	matches := spanTag.FindAllStringIndex(s, -1)
	if len(matches) == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + len(matches))
	last := 0
	for _, m := range matches {
		end := m[1]
		b.WriteString(s[last:end])
		if startsWithOpeningTag(s[end:]) {
			b.WriteByte(' ')
		}
		last = end
	}
	b.WriteString(s[last:])
	return b.String()
}

func startsWithOpeningTag(s string) bool {
	if len(s) < 2 || s[0] != '<' {
		return false
	}
	c := s[1]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
