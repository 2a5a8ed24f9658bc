// Package gitignore matches paths against .gitignore-style patterns so
// scans skip what git would skip. Supports wildcards, **, negation,
// directory-only patterns, and nested ignore files applying below their
// own directory.
package gitignore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Matcher holds compiled ignore rules in the order they were added.
// Later rules override earlier ones, which is how negation works.
type Matcher struct {
	rules []rule
}

type rule struct {
	re      *regexp.Regexp
	negate  bool
	dirOnly bool
	base    string // slash-relative dir this rule applies under, "" for root
}

func New() *Matcher {
	return &Matcher{}
}

// AddPattern adds one pattern scoped to base ("" for the whole tree).
// Blank lines, comments, and patterns that fail to compile are dropped.
func (m *Matcher) AddPattern(pattern, base string) {
	pattern = strings.TrimRight(pattern, " \t")
	if pattern == "" || strings.HasPrefix(pattern, "#") {
		return
	}

	r := rule{base: strings.Trim(filepath.ToSlash(base), "/")}
	if strings.HasPrefix(pattern, "!") {
		r.negate = true
		pattern = pattern[1:]
	}
	if strings.HasSuffix(pattern, "/") {
		r.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}

	re, err := compile(pattern)
	if err != nil {
		return
	}
	r.re = re
	m.rules = append(m.rules, r)
}

// AddFile loads an ignore file whose rules apply under base. A missing
// file is not an error.
func (m *Matcher) AddFile(path, base string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open ignore file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		m.AddPattern(sc.Text(), base)
	}
	return sc.Err()
}

// Ignored reports whether the slash-relative path is excluded. The last
// matching rule decides, so a later negation un-ignores.
func (m *Matcher) Ignored(relPath string, isDir bool) bool {
	relPath = strings.Trim(filepath.ToSlash(relPath), "/")
	ignored := false
	for _, r := range m.rules {
		path := relPath
		if r.base != "" {
			rest, ok := strings.CutPrefix(relPath, r.base+"/")
			if !ok {
				continue
			}
			path = rest
		}
		if r.matches(path, isDir) {
			ignored = !r.negate
		}
	}
	return ignored
}

func (r rule) matches(path string, isDir bool) bool {
	if r.re.MatchString(path) {
		return isDir || !r.dirOnly
	}
	// A rule matching a parent directory covers everything beneath it.
	for i := strings.IndexByte(path, '/'); i > 0; {
		if r.re.MatchString(path[:i]) {
			return true
		}
		next := strings.IndexByte(path[i+1:], '/')
		if next < 0 {
			break
		}
		i += 1 + next
	}
	return false
}

// compile translates one gitignore pattern into an anchored regexp over
// slash-relative paths. A pattern containing a slash anchors at the
// rule's base; otherwise it matches at any depth.
func compile(pattern string) (*regexp.Regexp, error) {
	anchored := strings.Contains(pattern, "/")
	pattern = strings.TrimPrefix(pattern, "/")

	var sb strings.Builder
	if anchored {
		sb.WriteString("^")
	} else {
		sb.WriteString("(^|.*/)")
	}

	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '*':
			if strings.HasPrefix(pattern[i:], "**/") {
				sb.WriteString("(.*/)?")
				i += 2
			} else if strings.HasPrefix(pattern[i:], "**") {
				sb.WriteString(".*")
				i++
			} else {
				sb.WriteString("[^/]*")
			}
		case '?':
			sb.WriteString("[^/]")
		case '[':
			end := strings.IndexByte(pattern[i:], ']')
			if end < 0 {
				sb.WriteString(regexp.QuoteMeta("["))
			} else {
				sb.WriteString(pattern[i : i+end+1])
				i += end
			}
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}
