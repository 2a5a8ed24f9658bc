package search

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultSnippetLength is the target snippet size in characters.
const DefaultSnippetLength = 200

// ExtractSnippet returns a short excerpt of body centered on the first
// query term it contains. When no term matches, the snippet is the
// start of the body. Cuts land on whitespace where possible and
// truncation is marked with an ellipsis.
func ExtractSnippet(body, query string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultSnippetLength
	}
	body = strings.TrimSpace(body)
	if len(body) <= maxLen {
		return body
	}

	pos := firstTermPosition(body, query)

	start := pos - maxLen/2
	if start < 0 {
		start = 0
	}
	end := start + maxLen
	if end > len(body) {
		end = len(body)
		start = end - maxLen
	}

	// The offsets are byte positions and may land mid-rune; back up to
	// the nearest rune start before slicing.
	start = runeStart(body, start)
	end = runeStart(body, end)

	// Move the boundaries to whitespace so words stay whole.
	if start > 0 {
		if i := strings.IndexFunc(body[start:end], unicode.IsSpace); i >= 0 && i < maxLen/4 {
			_, w := utf8.DecodeRuneInString(body[start+i:])
			start += i + w
		}
	}
	if end < len(body) {
		if i := strings.LastIndexFunc(body[start:end], unicode.IsSpace); i > maxLen/2 {
			end = start + i
		}
	}

	snippet := strings.TrimSpace(body[start:end])
	if start > 0 {
		snippet = "…" + snippet
	}
	if end < len(body) {
		snippet += "…"
	}
	return snippet
}

// runeStart backs pos up to the start of the rune it points into.
func runeStart(s string, pos int) int {
	for pos > 0 && pos < len(s) && !utf8.RuneStart(s[pos]) {
		pos--
	}
	return pos
}

// firstTermPosition finds the earliest case-insensitive occurrence of
// any query term in body, or 0.
func firstTermPosition(body, query string) int {
	lowerBody := strings.ToLower(body)
	best := -1
	for _, term := range strings.Fields(strings.ToLower(query)) {
		term = strings.TrimFunc(term, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if term == "" {
			continue
		}
		if i := strings.Index(lowerBody, term); i >= 0 && (best == -1 || i < best) {
			best = i
		}
	}
	if best < 0 {
		return 0
	}
	return best
}
