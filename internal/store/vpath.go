package store

import (
	"path"
	"regexp"
	"strings"
)

// VirtualPathScheme is the canonical external reference scheme.
const VirtualPathScheme = "qmd://"

// BuildVirtualPath renders the canonical qmd://collection/path reference.
func BuildVirtualPath(collection, docPath string) string {
	return VirtualPathScheme + collection + "/" + docPath
}

// ParseVirtualPath splits a qmd:// reference into collection and path.
// Returns ok=false for anything that is not a well-formed virtual path.
func ParseVirtualPath(vpath string) (collection, docPath string, ok bool) {
	rest, found := strings.CutPrefix(vpath, VirtualPathScheme)
	if !found || rest == "" {
		return "", "", false
	}
	collection, docPath, found = strings.Cut(rest, "/")
	if !found || collection == "" || docPath == "" {
		return "", "", false
	}
	return collection, docPath, true
}

// IsVirtualPath reports whether s uses the qmd:// scheme.
func IsVirtualPath(s string) bool {
	return strings.HasPrefix(s, VirtualPathScheme)
}

var segmentDropRe = regexp.MustCompile(`[^a-z0-9._-]+`)
var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizePath canonicalizes a collection-relative file path for storage:
// forward slashes, cleaned of ./.. segments, each segment lowercased with
// whitespace runs collapsed to "-" and remaining odd characters dropped.
// Stored document paths and resolver inputs both pass through here, so the
// two always compare equal for the same file.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean(p)
	p = strings.TrimPrefix(p, "/")
	if p == "." || p == "" {
		return ""
	}

	segments := strings.Split(p, "/")
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		seg = strings.ToLower(strings.TrimSpace(seg))
		seg = whitespaceRe.ReplaceAllString(seg, "-")
		seg = segmentDropRe.ReplaceAllString(seg, "")
		if seg != "" && seg != "." && seg != ".." {
			out = append(out, seg)
		}
	}
	return strings.Join(out, "/")
}
