package index

import (
	"path"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var titleParser = goldmark.New()

// ExtractTitle returns the document's display title: the text of the
// first heading if the body has one, otherwise the filename without its
// extension. relPath uses forward slashes.
func ExtractTitle(body, relPath string) string {
	if title := firstHeading(body); title != "" {
		return title
	}
	return titleFromFilename(relPath)
}

// firstHeading parses the body as markdown and returns the text of the
// first heading of any level, or "".
func firstHeading(body string) string {
	source := []byte(body)
	doc := titleParser.Parser().Parse(text.NewReader(source))

	var title string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		title = strings.TrimSpace(headingText(h, source))
		return ast.WalkStop, nil
	})
	return title
}

// headingText flattens a heading's inline children to plain text, so
// "# A `code` *title*" yields "A code title".
func headingText(h *ast.Heading, source []byte) string {
	var sb strings.Builder
	for c := h.FirstChild(); c != nil; c = c.NextSibling() {
		appendNodeText(&sb, c, source)
	}
	return sb.String()
}

func appendNodeText(sb *strings.Builder, n ast.Node, source []byte) {
	switch t := n.(type) {
	case *ast.Text:
		sb.Write(t.Segment.Value(source))
	case *ast.CodeSpan, *ast.Emphasis, *ast.Link:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			appendNodeText(sb, c, source)
		}
	default:
		if n.Type() == ast.TypeInline && n.HasChildren() {
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				appendNodeText(sb, c, source)
			}
		}
	}
}

func titleFromFilename(relPath string) string {
	base := path.Base(relPath)
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}
