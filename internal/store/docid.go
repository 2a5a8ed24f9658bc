package store

import (
	"regexp"
	"strconv"
	"strings"
)

// docidLen is the minimum width of rendered docids.
const docidLen = 6

// docidRe matches a bare or #-prefixed docid. At least six characters:
// small ids are zero-padded, ids past 36^6 render wider and must still
// parse back.
var docidRe = regexp.MustCompile(`^#?[0-9a-z]{6,}$`)

// Docid renders a document id as its short user-facing identifier:
// lowercase base-36, zero-padded to at least six characters. The mapping
// is reversible, so a docid always resolves to exactly one document id.
func Docid(id int64) string {
	s := strconv.FormatInt(id, 36)
	if len(s) < docidLen {
		s = strings.Repeat("0", docidLen-len(s)) + s
	}
	return s
}

// ParseDocid reverses Docid. Returns false for strings that are not docids.
func ParseDocid(docid string) (int64, bool) {
	docid = NormalizeDocid(docid)
	if !docidRe.MatchString(docid) {
		return 0, false
	}
	id, err := strconv.ParseInt(docid, 36, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// IsDocid reports whether s looks like a docid reference (#abc123 or abc123).
func IsDocid(s string) bool {
	return docidRe.MatchString(strings.TrimSpace(s))
}

// NormalizeDocid strips the optional # prefix and surrounding space.
func NormalizeDocid(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "#")
}
