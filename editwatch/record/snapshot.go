// Package record defines the persisted shapes produced by editwatch.
// These are the public contract: the request builder that ships a
// candidate, and editkeeper that applies it, import this package to read
// what the watcher wrote.
package record

import "time"

// TimeLayout is the ISO-8601 layout used for every persisted timestamp
// (UTC, millisecond precision).
const TimeLayout = "2006-01-02T15:04:05.000Z"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Field is the captured content of one monitored region. RawMarkup and
// PlainText are nil when the region was absent from the document.
type Field struct {
	Selector  string  `json:"selector"`
	RawMarkup *string `json:"rawMarkup"`
	PlainText *string `json:"plainText"`
}

// Present reports whether the region existed at capture time.
func (f Field) Present() bool { return f.RawMarkup != nil }

// Markup returns the raw markup, or "" for an absent region.
func (f Field) Markup() string {
	if f.RawMarkup == nil {
		return ""
	}
	return *f.RawMarkup
}

// Snapshot is a timestamped capture of every monitored region.
// Meta holds diagnostic tags (trigger, selector, reason) and never takes
// part in comparisons.
type Snapshot struct {
	Timestamp string            `json:"timestamp"`
	Fields    []Field           `json:"fields"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// Field returns the field for selector, if the snapshot has one.
func (s Snapshot) Field(selector string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Selector == selector {
			return f, true
		}
	}
	return Field{}, false
}

// Clone returns a deep copy. Snapshots cross component boundaries as
// values; nothing holds a reference into another component's log.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Timestamp: s.Timestamp}
	if s.Fields != nil {
		out.Fields = make([]Field, len(s.Fields))
		for i, f := range s.Fields {
			out.Fields[i] = Field{
				Selector:  f.Selector,
				RawMarkup: cloneString(f.RawMarkup),
				PlainText: cloneString(f.PlainText),
			}
		}
	}
	if s.Meta != nil {
		out.Meta = make(map[string]string, len(s.Meta))
		for k, v := range s.Meta {
			out.Meta[k] = v
		}
	}
	return out
}

// Origin names which log a snapshot belongs to.
type Origin string

const (
	OriginServer Origin = "server"
	OriginUser   Origin = "user"
)

// Valid reports whether o is a known origin.
func (o Origin) Valid() bool {
	return o == OriginServer || o == OriginUser
}

// String returns a pointer to a copy of s. Handy for building Fields and
// Diffs in literals.
func String(s string) *string { return &s }

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
