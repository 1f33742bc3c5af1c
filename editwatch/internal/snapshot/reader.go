// Package snapshot reads the monitored regions of a document and keeps
// the bounded, deduplicating snapshot logs built from those reads.
package snapshot

import (
	"slices"

	"github.com/hazyhaar/storyedit/editwatch/record"
)

// Document is the source of region content. Region returns the region's
// inner markup and its flattened text; ok is false when no element
// matches selector.
type Document interface {
	Region(selector string) (markup, text string, ok bool)
}

// Reader turns the current state of a Document into snapshot fields for a
// fixed, ordered list of selectors.
type Reader struct {
	doc       Document
	selectors []string
}

// NewReader creates a Reader over doc for selectors, in that order.
func NewReader(doc Document, selectors []string) *Reader {
	return &Reader{doc: doc, selectors: slices.Clone(selectors)}
}

// Read captures every monitored region. Absent regions yield null fields.
func (r *Reader) Read() []record.Field {
	fields := make([]record.Field, 0, len(r.selectors))
	for _, sel := range r.selectors {
		markup, text, ok := r.doc.Region(sel)
		if !ok {
			fields = append(fields, record.Field{Selector: sel})
			continue
		}
		fields = append(fields, record.Field{
			Selector:  sel,
			RawMarkup: record.String(markup),
			PlainText: record.String(text),
		})
	}
	return fields
}

// Selectors returns the monitored selectors in capture order.
func (r *Reader) Selectors() []string {
	return slices.Clone(r.selectors)
}

// Monitored reports whether selector is one of the monitored regions.
func (r *Reader) Monitored(selector string) bool {
	return slices.Contains(r.selectors, selector)
}
