package search

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestExtractSnippet_ShortBodyReturnedWhole(t *testing.T) {
	body := "a short document body"
	assert.Equal(t, body, ExtractSnippet(body, "document", 200))
}

func TestExtractSnippet_CentersOnMatch(t *testing.T) {
	padding := strings.Repeat("filler words before the interesting part ", 20)
	body := padding + "the ZANZIBAR reference lives here" + strings.Repeat(" and trailing text", 20)

	snippet := ExtractSnippet(body, "zanzibar", 120)
	assert.Contains(t, strings.ToLower(snippet), "zanzibar")
	assert.LessOrEqual(t, len(snippet), 120+2*len("…"))
	assert.True(t, strings.HasPrefix(snippet, "…"), "truncated start is marked")
	assert.True(t, strings.HasSuffix(snippet, "…"), "truncated end is marked")
}

func TestExtractSnippet_NoMatchUsesStart(t *testing.T) {
	body := "opening words " + strings.Repeat("more text ", 50)
	snippet := ExtractSnippet(body, "absentterm", 80)
	assert.True(t, strings.HasPrefix(snippet, "opening words"))
	assert.True(t, strings.HasSuffix(snippet, "…"))
}

func TestExtractSnippet_KeepsMultiByteRunesIntact(t *testing.T) {
	// Dense multi-byte text with no spaces forces the raw window offsets
	// onto mid-rune byte positions; the snippet must still be valid UTF-8.
	cjk := strings.Repeat("検索エンジンの実装について、", 40)
	accented := strings.Repeat("café naïve résumé ", 40)

	for _, body := range []string{cjk, accented, cjk + " zanzibar " + cjk} {
		for _, max := range []int{50, 101, 200} {
			snippet := ExtractSnippet(body, "zanzibar", max)
			assert.True(t, utf8.ValidString(snippet), "maxLen %d body %.20q", max, body)
			assert.NotEmpty(t, snippet)
		}
	}
}

func TestExtractSnippet_IgnoresPunctuationInQuery(t *testing.T) {
	body := strings.Repeat("padding ", 30) + "the config.yaml entry" + strings.Repeat(" padding", 30)
	snippet := ExtractSnippet(body, `"config.yaml"`, 100)
	assert.Contains(t, snippet, "config")
}
