// Package htmldoc is an in-process HTML document that serves monitored
// regions to the snapshot reader and accepts the writes a render layer or
// an editor would make.
package htmldoc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"golang.org/x/net/html"
)

// ErrNoMatch is returned when a selector matches no element.
var ErrNoMatch = errors.New("htmldoc: selector matched nothing")

// Document is a parsed HTML document. It is safe for concurrent use.
type Document struct {
	mu   sync.RWMutex
	root *html.Node
	md   *converter.Converter
}

// Parse reads an HTML document from r.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: parse: %w", err)
	}
	return &Document{
		root: root,
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}, nil
}

// ParseString parses an HTML document held in s.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Open parses the HTML file at path.
func Open(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: open: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Region returns the inner markup and flattened text of the first element
// matching selector.
func (d *Document) Region(selector string) (markup, text string, ok bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n := queryFirst(d.root, selector)
	if n == nil {
		return "", "", false
	}
	markup = innerHTML(n)
	return markup, d.plainText(n, markup), true
}

// SetInnerHTML replaces the children of the first element matching
// selector with the parsed markup.
func (d *Document) SetInnerHTML(selector, markup string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := queryFirst(d.root, selector)
	if n == nil {
		return fmt.Errorf("%w: %s", ErrNoMatch, selector)
	}
	children, err := html.ParseFragment(strings.NewReader(markup), n)
	if err != nil {
		return fmt.Errorf("htmldoc: parse fragment for %s: %w", selector, err)
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	for _, c := range children {
		n.AppendChild(c)
	}
	return nil
}

// RemoveLast removes the last element matching child inside the first
// element matching selector. It reports whether anything was removed.
func (d *Document) RemoveLast(selector, child string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := queryFirst(d.root, selector)
	if n == nil {
		return false, fmt.Errorf("%w: %s", ErrNoMatch, selector)
	}
	matches := matchSimpleChain(n, child)
	if len(matches) == 0 {
		return false, nil
	}
	last := matches[len(matches)-1]
	last.Parent.RemoveChild(last)
	return true, nil
}

// HTML renders the whole document.
func (d *Document) HTML() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var buf bytes.Buffer
	html.Render(&buf, d.root)
	return buf.String()
}

// plainText flattens a region to readable text. The markdown converter
// keeps paragraph breaks; plain text collection is the fallback.
func (d *Document) plainText(n *html.Node, markup string) string {
	if strings.TrimSpace(markup) == "" {
		return ""
	}
	out, err := d.md.ConvertString(markup)
	if err != nil || strings.TrimSpace(out) == "" {
		return strings.TrimSpace(collectText(n))
	}
	return strings.TrimSpace(out)
}

// matchSimpleChain resolves a descendant selector strictly below n.
func matchSimpleChain(n *html.Node, selector string) []*html.Node {
	var out []*html.Node
	for _, m := range queryAll(n, selector) {
		if m != n {
			out = append(out, m)
		}
	}
	return out
}

func innerHTML(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		html.Render(&buf, c)
	}
	return buf.String()
}

func collectText(n *html.Node) string {
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
