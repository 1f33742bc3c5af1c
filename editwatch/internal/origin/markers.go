// Package origin tells server-rendered mutations apart from user edits.
//
// The render layer marks a region just before writing server content into
// it. Mutation signals on a marked region are attributed to the server and
// ignored by the user capture path. A mark expires after a short validity
// window, so a user edit that lands later in the same region is seen again.
package origin

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultTTL is the validity window of a server mark.
const DefaultTTL = 250 * time.Millisecond

// Markers is a set of region selectors recently written by the server.
// It is safe for concurrent use.
type Markers struct {
	ttl   time.Duration
	marks *cache.Cache
}

// New creates an empty marker set. ttl <= 0 selects DefaultTTL.
func New(ttl time.Duration) *Markers {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	// No janitor goroutine: expired marks are invisible to Get and are
	// swept on every Mark.
	return &Markers{ttl: ttl, marks: cache.New(ttl, 0)}
}

// Mark flags selector as server-written for the validity window.
func (m *Markers) Mark(selector string) {
	m.marks.DeleteExpired()
	m.marks.Set(selector, struct{}{}, cache.DefaultExpiration)
}

// IsMarked reports whether selector carries an unexpired server mark.
func (m *Markers) IsMarked(selector string) bool {
	_, ok := m.marks.Get(selector)
	return ok
}

// Clear removes the mark on selector.
func (m *Markers) Clear(selector string) {
	m.marks.Delete(selector)
}

// Len returns the number of marks held, expired or not.
func (m *Markers) Len() int {
	return m.marks.ItemCount()
}

// TTL returns the validity window.
func (m *Markers) TTL() time.Duration { return m.ttl }
