// Package candidate computes paragraph-level diffs between the latest
// server snapshot and the latest user snapshot and maintains the candidate
// artifact in the store.
package candidate

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	attrParagraphID = "data-paragraph-id"
	attrStoryKey    = "data-story-id"
)

// Paragraph is one <p> of a region, in document order.
type Paragraph struct {
	ID       *string
	Index    int
	StoryKey *string
	Text     string
}

// ParseParagraphs extracts the <p> elements of a region's inner markup.
// Text is the element's text content with non-breaking spaces turned into
// plain spaces. Empty data attributes count as absent.
func ParseParagraphs(markup string) ([]Paragraph, error) {
	if strings.TrimSpace(markup) == "" {
		return nil, nil
	}
	container := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(markup), container)
	if err != nil {
		return nil, err
	}

	var out []Paragraph
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.P {
			out = append(out, Paragraph{
				ID:       attr(n, attrParagraphID),
				Index:    len(out),
				StoryKey: attr(n, attrStoryKey),
				Text:     strings.ReplaceAll(textContent(n), "\u00a0", " "),
			})
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return out, nil
}

func attr(n *html.Node, key string) *string {
	for _, a := range n.Attr {
		if a.Key == key && a.Val != "" {
			v := a.Val
			return &v
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
