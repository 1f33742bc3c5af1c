package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/storyedit/editwatch/internal/kvstore"
	"github.com/hazyhaar/storyedit/editwatch/record"
)

// DefaultLimit is the number of snapshots a log keeps: current and previous.
const DefaultLimit = 2

// Outcome says what Append did with a snapshot.
type Outcome int

const (
	// Appended means the snapshot became the new latest entry.
	Appended Outcome = iota
	// Refreshed means the content matched the latest entry, whose
	// timestamp and meta were updated in place.
	Refreshed
)

func (o Outcome) String() string {
	if o == Refreshed {
		return "refreshed"
	}
	return "appended"
}

// Log is an append-only, deduplicating, length-bounded sequence of
// snapshots persisted under one store key. It is not safe for concurrent
// use; the owning watcher serialises access.
type Log struct {
	key     string
	store   kvstore.Store
	limit   int
	logger  *slog.Logger
	entries []record.Snapshot
}

// LoadLog reads the log stored under key. A missing key is an empty log;
// a malformed one is logged and treated as empty too.
func LoadLog(ctx context.Context, store kvstore.Store, key string, limit int, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	l := &Log{key: key, store: store, limit: limit, logger: logger}

	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		logger.Warn("snapshot: read log failed, starting empty", "key", key, "error", err)
		return l
	}
	if !ok {
		return l
	}
	entries, err := record.UnmarshalLog(raw)
	if err != nil {
		logger.Warn("snapshot: malformed log, starting empty", "key", key, "error", err)
		return l
	}
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	l.entries = entries
	return l
}

// Key returns the store key this log owns.
func (l *Log) Key() string { return l.key }

// Len returns the number of stored snapshots.
func (l *Log) Len() int { return len(l.entries) }

// Append records snap. When its fields serialise identically to the
// latest entry's, no entry is added: the latest entry takes snap's
// timestamp and meta keys instead. The log is then trimmed to its limit
// and persisted.
//
// A persistence error is logged and returned, but the in-memory log is
// updated regardless and stays authoritative for the rest of the session.
func (l *Log) Append(ctx context.Context, snap record.Snapshot) (Outcome, error) {
	outcome := Appended
	if n := len(l.entries); n > 0 && sameFields(l.entries[n-1].Fields, snap.Fields) {
		last := &l.entries[n-1]
		last.Timestamp = snap.Timestamp
		if len(snap.Meta) > 0 {
			if last.Meta == nil {
				last.Meta = make(map[string]string, len(snap.Meta))
			}
			for k, v := range snap.Meta {
				last.Meta[k] = v
			}
		}
		outcome = Refreshed
	} else {
		l.entries = append(l.entries, snap.Clone())
		if len(l.entries) > l.limit {
			l.entries = append([]record.Snapshot(nil), l.entries[len(l.entries)-l.limit:]...)
		}
	}
	return outcome, l.save(ctx)
}

// Latest returns a copy of the newest snapshot.
func (l *Log) Latest() (record.Snapshot, bool) {
	if len(l.entries) == 0 {
		return record.Snapshot{}, false
	}
	return l.entries[len(l.entries)-1].Clone(), true
}

// Entries returns copies of all snapshots, oldest first.
func (l *Log) Entries() []record.Snapshot {
	out := make([]record.Snapshot, len(l.entries))
	for i, s := range l.entries {
		out[i] = s.Clone()
	}
	return out
}

// Clear empties the log and persists the empty state.
func (l *Log) Clear(ctx context.Context) error {
	l.entries = nil
	return l.save(ctx)
}

func (l *Log) save(ctx context.Context) error {
	data, err := record.MarshalLog(l.entries)
	if err != nil {
		l.logger.Warn("snapshot: marshal log failed", "key", l.key, "error", err)
		return fmt.Errorf("snapshot: marshal %s: %w", l.key, err)
	}
	if err := l.store.Set(ctx, l.key, data); err != nil {
		l.logger.Warn("snapshot: persist log failed, keeping in memory", "key", l.key, "error", err)
		return fmt.Errorf("snapshot: persist %s: %w", l.key, err)
	}
	return nil
}

func sameFields(a, b []record.Field) bool {
	ja, err := record.MarshalFields(a)
	if err != nil {
		return false
	}
	jb, err := record.MarshalFields(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}
