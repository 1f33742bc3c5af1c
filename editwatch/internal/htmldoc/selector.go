package htmldoc

import (
	"slices"
	"strings"

	"golang.org/x/net/html"
)

// Selectors support a subset of CSS:
//   - tag: "p", "div"
//   - .class: ".mid-synopsis-area"
//   - #id: "#story-history"
//   - tag.class, tag#id
//   - [attr], [attr=val], tag[attr=val]: "p[data-paragraph-id]"
//   - parts separated by space (descendant combinator)

// queryAll returns every node under root matching selector, in document
// order, without duplicates.
func queryAll(root *html.Node, selector string) []*html.Node {
	parts := strings.Fields(selector)
	if len(parts) == 0 {
		return nil
	}

	matches := matchSimple(root, parts[0], false)
	for _, part := range parts[1:] {
		var next []*html.Node
		for _, parent := range matches {
			for _, n := range matchSimple(parent, part, true) {
				if !slices.Contains(next, n) {
					next = append(next, n)
				}
			}
		}
		matches = next
	}
	return matches
}

// queryFirst returns the first match of selector, or nil.
func queryFirst(root *html.Node, selector string) *html.Node {
	if m := queryAll(root, selector); len(m) > 0 {
		return m[0]
	}
	return nil
}

// matchSimple walks root's subtree. With descendantsOnly, root itself is
// never a match.
func matchSimple(root *html.Node, sel string, descendantsOnly bool) []*html.Node {
	m := parseSimple(sel)
	var results []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if (n != root || !descendantsOnly) && m.matches(n) {
			results = append(results, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return results
}

type simpleSelector struct {
	tag     string
	id      string
	class   string
	attrKey string
	attrVal string
	hasVal  bool
}

func parseSimple(sel string) simpleSelector {
	var s simpleSelector

	if idx := strings.IndexByte(sel, '['); idx >= 0 {
		attrPart := strings.TrimSuffix(sel[idx+1:], "]")
		sel = sel[:idx]
		if k, v, ok := strings.Cut(attrPart, "="); ok {
			s.attrKey = k
			s.attrVal = strings.Trim(v, `"'`)
			s.hasVal = true
		} else {
			s.attrKey = attrPart
		}
	}
	if idx := strings.IndexByte(sel, '#'); idx >= 0 {
		s.id = sel[idx+1:]
		sel = sel[:idx]
	}
	if idx := strings.IndexByte(sel, '.'); idx >= 0 {
		s.class = sel[idx+1:]
		sel = sel[:idx]
	}
	s.tag = strings.ToLower(sel)
	return s
}

func (s simpleSelector) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if s.tag != "" && n.Data != s.tag {
		return false
	}
	if s.id != "" && attr(n, "id") != s.id {
		return false
	}
	if s.class != "" && !slices.Contains(strings.Fields(attr(n, "class")), s.class) {
		return false
	}
	if s.attrKey != "" {
		if !hasAttr(n, s.attrKey) {
			return false
		}
		if s.hasVal && attr(n, s.attrKey) != s.attrVal {
			return false
		}
	}
	return true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}
