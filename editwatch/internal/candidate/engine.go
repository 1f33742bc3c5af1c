package candidate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/storyedit/editwatch/internal/kvstore"
	"github.com/hazyhaar/storyedit/editwatch/record"
)

// Keys names the three store entries the engine reads and writes.
type Keys struct {
	Server    string
	User      string
	Candidate string
}

// DefaultKeys are the store keys used when none are configured.
var DefaultKeys = Keys{
	Server:    "storySnapshots",
	User:      "userSnapshots",
	Candidate: "candidateSnapshot",
}

// Outcome says what Generate did to the artifact key.
type Outcome int

const (
	// Written means a new artifact was stored.
	Written Outcome = iota
	// Unchanged means the stored artifact already held the same diffs.
	Unchanged
	// Cleared means there were no diffs and the key was removed.
	Cleared
)

func (o Outcome) String() string {
	switch o {
	case Unchanged:
		return "unchanged"
	case Cleared:
		return "cleared"
	default:
		return "written"
	}
}

// Engine recomputes the candidate artifact from the latest snapshots.
type Engine struct {
	store  kvstore.Store
	keys   Keys
	now    func() time.Time
	logger *slog.Logger
}

// NewEngine creates an Engine over store. A nil now selects time.Now.
func NewEngine(store kvstore.Store, keys Keys, now func() time.Time, logger *slog.Logger) *Engine {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, keys: keys, now: now, logger: logger}
}

// Keys returns the store keys in use.
func (e *Engine) Keys() Keys { return e.keys }

// Generate compares the latest server and user snapshots stored under the
// engine's keys. See GenerateFrom.
func (e *Engine) Generate(ctx context.Context) (*record.Candidate, Outcome, error) {
	return e.GenerateFrom(ctx, e.latest(ctx, e.keys.Server), e.latest(ctx, e.keys.User))
}

// GenerateFrom compares server and user region by region and stores the
// result. An empty result removes the artifact key. When the stored
// artifact already carries an identical diff list it is kept as is,
// timestamp included, so repeated calls leave the same bytes.
//
// Callers holding the logs in memory pass their latest entries here: the
// stored logs may lag behind after a failed write.
//
// The returned candidate is nil when there is nothing pending. Errors only
// come from the store.
func (e *Engine) GenerateFrom(ctx context.Context, server, user record.Snapshot) (*record.Candidate, Outcome, error) {
	diffs := Compute(server, user, e.logger)

	if len(diffs) == 0 {
		if err := e.store.Delete(ctx, e.keys.Candidate); err != nil {
			return nil, Cleared, fmt.Errorf("candidate: clear: %w", err)
		}
		return nil, Cleared, nil
	}

	if prev, err := e.Load(ctx); err == nil && prev != nil && sameDiffs(prev.Diffs, diffs) {
		return prev, Unchanged, nil
	}

	c := &record.Candidate{Timestamp: record.FormatTime(e.now()), Diffs: diffs}
	data, err := record.MarshalCandidate(c)
	if err != nil {
		return nil, Written, fmt.Errorf("candidate: marshal: %w", err)
	}
	if err := e.store.Set(ctx, e.keys.Candidate, data); err != nil {
		return c, Written, fmt.Errorf("candidate: persist: %w", err)
	}
	return c, Written, nil
}

// Load returns the stored artifact, or nil when none is pending. A
// malformed artifact is logged and reported as absent.
func (e *Engine) Load(ctx context.Context) (*record.Candidate, error) {
	raw, ok, err := e.store.Get(ctx, e.keys.Candidate)
	if err != nil {
		return nil, fmt.Errorf("candidate: load: %w", err)
	}
	if !ok || len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	c, err := record.UnmarshalCandidate(raw)
	if err != nil {
		e.logger.Warn("candidate: malformed artifact, ignoring", "key", e.keys.Candidate, "error", err)
		return nil, nil
	}
	if c.Empty() {
		return nil, nil
	}
	return c, nil
}

// Clear removes the artifact key.
func (e *Engine) Clear(ctx context.Context) error {
	if err := e.store.Delete(ctx, e.keys.Candidate); err != nil {
		return fmt.Errorf("candidate: clear: %w", err)
	}
	return nil
}

// latest reads the newest snapshot under key. Missing or malformed logs
// yield an empty snapshot.
func (e *Engine) latest(ctx context.Context, key string) record.Snapshot {
	raw, ok, err := e.store.Get(ctx, key)
	if err != nil {
		e.logger.Warn("candidate: read snapshot log failed", "key", key, "error", err)
		return record.Snapshot{}
	}
	if !ok {
		return record.Snapshot{}
	}
	snaps, err := record.UnmarshalLog(raw)
	if err != nil {
		e.logger.Warn("candidate: malformed snapshot log, treating as absent", "key", key, "error", err)
		return record.Snapshot{}
	}
	if len(snaps) == 0 {
		return record.Snapshot{}
	}
	return snaps[len(snaps)-1]
}

// Compute diffs every region of server against user. Regions are visited
// in server field order, then regions only the user snapshot carries.
// Markup that fails to parse is logged and read as an empty region.
func Compute(server, user record.Snapshot, logger *slog.Logger) []record.Diff {
	if logger == nil {
		logger = slog.Default()
	}
	sp := regions(server, logger)
	up := regions(user, logger)

	var order []string
	seen := make(map[string]bool)
	for _, fs := range [][]record.Field{server.Fields, user.Fields} {
		for _, f := range fs {
			if !seen[f.Selector] {
				seen[f.Selector] = true
				order = append(order, f.Selector)
			}
		}
	}

	var diffs []record.Diff
	for _, sel := range order {
		diffs = append(diffs, CompareRegion(sel, sp[sel], up[sel])...)
	}
	return filter(diffs)
}

func regions(s record.Snapshot, logger *slog.Logger) map[string][]Paragraph {
	out := make(map[string][]Paragraph, len(s.Fields))
	for _, f := range s.Fields {
		paras, err := ParseParagraphs(f.Markup())
		if err != nil {
			logger.Warn("candidate: parse region markup", "selector", f.Selector, "error", err)
			paras = nil
		}
		out[f.Selector] = paras
	}
	return out
}

func sameDiffs(a, b []record.Diff) bool {
	ja, err := json.Marshal(a)
	if err != nil {
		return false
	}
	jb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}
