// Package editwatch records what the server last rendered into the
// monitored regions of a story page and what the user then edited in
// place, and keeps a candidate artifact listing the paragraph-level
// changes the next outgoing request should carry.
//
// editwatch captures and compares, it does not submit. The candidate is
// read by whatever builds the next request (see BuildPayload) and applied
// server side by editkeeper.
package editwatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/storyedit/editwatch/internal/candidate"
	"github.com/hazyhaar/storyedit/editwatch/internal/origin"
	"github.com/hazyhaar/storyedit/editwatch/internal/schedule"
	"github.com/hazyhaar/storyedit/editwatch/internal/sink"
	"github.com/hazyhaar/storyedit/editwatch/internal/snapshot"
	"github.com/hazyhaar/storyedit/editwatch/record"
)

// ErrNotEditable is returned by RemoveLastParagraph when the document
// cannot be modified.
var ErrNotEditable = errors.New("editwatch: document is not editable")

// ParagraphSelector matches the addressable paragraphs of a region.
const ParagraphSelector = "p[data-paragraph-id]"

// Document serves the content of monitored regions. Region returns the
// inner markup and flattened text of the first element matching selector.
type Document = snapshot.Document

// Editable is a Document that collaborators may modify.
type Editable interface {
	Document
	RemoveLast(selector, child string) (bool, error)
}

// Clock provides time and one-shot timers to the edit debouncer.
type Clock = schedule.Clock

// ManualClock is a Clock that only advances when told to. Timers fire
// synchronously inside Advance.
type ManualClock = schedule.ManualClock

// NewManualClock returns a ManualClock reading start.
func NewManualClock(start time.Time) *ManualClock {
	return schedule.NewManualClock(start)
}

// EditKind is the kind of a native editing signal.
type EditKind string

const (
	EditInput       EditKind = "input"
	EditPaste       EditKind = "paste"
	EditComposition EditKind = "composition"
	EditBlur        EditKind = "blur"
)

// Edit is an editing signal on a region.
type Edit struct {
	Kind     EditKind `json:"kind"`
	Selector string   `json:"selector"`
}

// KeyPress is a key-down with focus inside Focused (a region selector, or
// empty when focus is elsewhere).
type KeyPress struct {
	Key     string `json:"key"`
	Ctrl    bool   `json:"ctrl"`
	Meta    bool   `json:"meta"`
	Focused string `json:"focused"`
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithClock sets the clock driving timestamps and the debounce window.
func WithClock(c Clock) Option {
	return func(w *Watcher) { w.clock = c }
}

// WithSinks adds event sinks.
func WithSinks(sinks ...Sink) Option {
	return func(w *Watcher) { w.extra = append(w.extra, sinks...) }
}

// Watcher is the top-level orchestrator: it owns both snapshot logs, the
// origin markers, the edit debouncer and the candidate engine. Every
// handler runs to completion under one lock, including the candidate
// generation chained off a user capture.
type Watcher struct {
	cfg    *Config
	doc    Document
	store  Store
	clock  Clock
	logger *slog.Logger
	extra  []Sink

	mu       sync.Mutex
	reader   *snapshot.Reader
	server   *snapshot.Log
	user     *snapshot.Log
	markers  *origin.Markers
	debounce *schedule.Debouncer
	engine   *candidate.Engine
	sinks    *sink.Router
}

// New creates a Watcher reading doc and persisting into store. Both logs
// are loaded from the store; malformed entries are logged and dropped.
func New(ctx context.Context, cfg *Config, doc Document, store Store, opts ...Option) (*Watcher, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if doc == nil || store == nil {
		return nil, fmt.Errorf("editwatch: document and store are required")
	}

	w := &Watcher{cfg: cfg, doc: doc, store: store}
	for _, o := range opts {
		o(w)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.clock == nil {
		w.clock = schedule.SystemClock{}
	}

	keys := candidate.Keys{Server: cfg.Keys.Server, User: cfg.Keys.User, Candidate: cfg.Keys.Candidate}
	w.reader = snapshot.NewReader(doc, cfg.Regions)
	w.server = snapshot.LoadLog(ctx, store, keys.Server, snapshot.DefaultLimit, w.logger)
	w.user = snapshot.LoadLog(ctx, store, keys.User, snapshot.DefaultLimit, w.logger)
	w.markers = origin.New(cfg.Origin.MarkerTTL)
	w.debounce = schedule.NewDebouncer(w.clock, cfg.Debounce.Window, &w.mu)
	w.engine = candidate.NewEngine(store, keys, w.clock.Now, w.logger)
	w.sinks = sink.NewRouter(w.logger, w.extra...)

	w.logger.Info("editwatch: ready",
		"regions", cfg.Regions,
		"server_snapshots", w.server.Len(),
		"user_snapshots", w.user.Len())
	return w, nil
}

// Regions returns the monitored selectors in capture order.
func (w *Watcher) Regions() []string {
	return w.reader.Selectors()
}

// NotifyServerUpdate is called by the render layer right after it wrote
// server content into the given regions. Each monitored selector present
// in the document is marked as server-written for the validity window, so
// the mutations the render caused are not taken for user edits, and one
// server snapshot of every region is recorded. Selectors that are not
// monitored or not in the document are ignored; when none is left nothing
// is recorded. With no selectors, nothing is marked and every region is
// recorded.
func (w *Watcher) NotifyServerUpdate(ctx context.Context, selectors ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	meta := map[string]string{"trigger": "server"}
	if len(selectors) > 0 {
		var written []string
		for _, sel := range selectors {
			if !w.reader.Monitored(sel) {
				continue
			}
			if _, _, ok := w.doc.Region(sel); !ok {
				continue
			}
			w.markers.Mark(sel)
			written = append(written, sel)
		}
		if len(written) == 0 {
			w.logger.Debug("editwatch: server update outside monitored regions ignored", "selectors", selectors)
			return
		}
		meta["selector"] = strings.Join(written, ",")
	}
	w.captureLocked(ctx, record.OriginServer, meta)
}

// HandleEdit consumes a native editing signal. Input, paste and
// composition signals (re)start the debounce window; blur captures at once.
// Signals outside the monitored regions are ignored.
func (w *Watcher) HandleEdit(ctx context.Context, e Edit) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.reader.Monitored(e.Selector) {
		return
	}
	switch e.Kind {
	case EditInput, EditPaste, EditComposition:
		signalsTotal.WithLabelValues(string(e.Kind)).Inc()
		w.scheduleLocked(ctx, map[string]string{"trigger": string(e.Kind), "selector": e.Selector})
	case EditBlur:
		signalsTotal.WithLabelValues(string(e.Kind)).Inc()
		w.debounce.Cancel()
		w.captureUserLocked(ctx, map[string]string{"trigger": "blur", "selector": e.Selector})
	default:
		w.logger.Debug("editwatch: unknown edit kind", "kind", e.Kind)
	}
}

// HandleKey consumes a key-down. Ctrl+S or Cmd+S with focus in a
// monitored region captures at once; the return value then tells the
// caller to prevent the browser's default save.
func (w *Watcher) HandleKey(ctx context.Context, k KeyPress) bool {
	if !(k.Ctrl || k.Meta) || !strings.EqualFold(k.Key, "s") {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.reader.Monitored(k.Focused) {
		return false
	}
	signalsTotal.WithLabelValues("save").Inc()
	w.debounce.Cancel()
	w.captureUserLocked(ctx, map[string]string{"trigger": "manual-save", "selector": k.Focused})
	return true
}

// HandleMutation consumes a structural-change signal on targets. The first
// monitored target that carries no server mark schedules a debounced
// capture; server-marked targets are ignored.
func (w *Watcher) HandleMutation(ctx context.Context, targets ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, sel := range targets {
		if !w.reader.Monitored(sel) {
			continue
		}
		if w.markers.IsMarked(sel) {
			w.logger.Debug("editwatch: mutation from server render ignored", "selector", sel)
			continue
		}
		signalsTotal.WithLabelValues("mutation").Inc()
		w.scheduleLocked(ctx, map[string]string{"trigger": "mutation", "selector": sel})
		return
	}
}

// ForceUserCapture cancels any pending debounced capture and records a
// user snapshot now. meta tags the snapshot; nil or empty meta becomes
// trigger=manual.
func (w *Watcher) ForceUserCapture(ctx context.Context, meta map[string]string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(meta) == 0 {
		meta = map[string]string{"trigger": "manual"}
	}
	w.debounce.Cancel()
	w.captureUserLocked(ctx, maps.Clone(meta))
}

// RemoveLastParagraph removes the last addressable paragraph of a region
// and force-captures, so the removal reaches the candidate. It reports
// whether a paragraph was removed.
func (w *Watcher) RemoveLastParagraph(ctx context.Context, selector string) (bool, error) {
	ed, ok := w.doc.(Editable)
	if !ok {
		return false, ErrNotEditable
	}
	removed, err := ed.RemoveLast(selector, ParagraphSelector)
	if err != nil {
		return false, fmt.Errorf("editwatch: remove last paragraph: %w", err)
	}
	reason := "redo-empty"
	if removed {
		reason = "redo-remove-last-paragraph"
	}
	w.ForceUserCapture(ctx, map[string]string{"reason": reason, "selector": selector})
	return removed, nil
}

// CapturePending reports whether a debounced capture is waiting.
func (w *Watcher) CapturePending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.debounce.Pending()
}

// Snapshots returns copies of the log for origin, oldest first.
func (w *Watcher) Snapshots(o record.Origin) ([]record.Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	l, err := w.logFor(o)
	if err != nil {
		return nil, err
	}
	return l.Entries(), nil
}

// ClearSnapshots empties the log for origin. Clearing the user log also
// recomputes the candidate.
func (w *Watcher) ClearSnapshots(ctx context.Context, o record.Origin) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	l, err := w.logFor(o)
	if err != nil {
		return err
	}
	if err := l.Clear(ctx); err != nil {
		persistFailures.WithLabelValues(l.Key()).Inc()
	}
	if o == record.OriginUser {
		w.generateLocked(ctx)
	}
	return nil
}

// Generate recomputes the candidate from the latest snapshots.
func (w *Watcher) Generate(ctx context.Context) *record.Candidate {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.generateLocked(ctx)
}

// PendingCandidate returns the stored candidate, or nil when nothing is
// pending.
func (w *Watcher) PendingCandidate(ctx context.Context) (*record.Candidate, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.engine.Load(ctx)
}

// BuildPayload returns a copy of action with the pending candidate
// attached under "candidate", when there is a non-empty one.
func (w *Watcher) BuildPayload(ctx context.Context, action map[string]any) map[string]any {
	payload := make(map[string]any, len(action)+1)
	maps.Copy(payload, action)

	c, err := w.PendingCandidate(ctx)
	if err != nil {
		w.logger.Warn("editwatch: read candidate for payload", "error", err)
		return payload
	}
	if !c.Empty() {
		payload["candidate"] = c
	}
	return payload
}

// AcknowledgeCandidate clears the stored candidate. Call it only once the
// server accepted the request that carried it.
func (w *Watcher) AcknowledgeCandidate(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.engine.Clear(ctx); err != nil {
		return err
	}
	candidateDiffs.Set(0)
	if err := w.sinks.SendCandidate(ctx, sink.CandidateEvent{Outcome: "acknowledged"}); err != nil {
		w.logger.Debug("editwatch: candidate event not delivered", "error", err)
	}
	return nil
}

// Close cancels any pending capture and closes the sinks.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounce.Cancel()
	return w.sinks.Close()
}

func (w *Watcher) logFor(o record.Origin) (*snapshot.Log, error) {
	switch o {
	case record.OriginServer:
		return w.server, nil
	case record.OriginUser:
		return w.user, nil
	default:
		return nil, fmt.Errorf("editwatch: unknown origin %q", o)
	}
}

// scheduleLocked (re)starts the debounce window. The capture outlives the
// triggering request, so it keeps ctx's values but not its cancellation.
func (w *Watcher) scheduleLocked(ctx context.Context, meta map[string]string) {
	bg := context.WithoutCancel(ctx)
	w.debounce.Schedule(func() {
		w.captureUserLocked(bg, meta)
	})
}

func (w *Watcher) captureUserLocked(ctx context.Context, meta map[string]string) {
	w.captureLocked(ctx, record.OriginUser, meta)
	w.generateLocked(ctx)
}

func (w *Watcher) captureLocked(ctx context.Context, o record.Origin, meta map[string]string) {
	l, _ := w.logFor(o)
	snap := record.Snapshot{
		Timestamp: record.FormatTime(w.clock.Now()),
		Fields:    w.reader.Read(),
		Meta:      meta,
	}
	outcome, err := l.Append(ctx, snap)
	if err != nil {
		persistFailures.WithLabelValues(l.Key()).Inc()
	}
	capturesTotal.WithLabelValues(string(o), outcome.String()).Inc()
	w.logger.Debug("editwatch: snapshot recorded",
		"origin", o, "outcome", outcome, "trigger", meta["trigger"], "entries", l.Len())

	latest, _ := l.Latest()
	ev := sink.SnapshotEvent{Origin: o, Refreshed: outcome == snapshot.Refreshed, Snapshot: latest}
	if err := w.sinks.SendSnapshot(ctx, ev); err != nil {
		w.logger.Debug("editwatch: snapshot event not delivered", "error", err)
	}
}

func (w *Watcher) generateLocked(ctx context.Context) *record.Candidate {
	server, _ := w.server.Latest()
	user, _ := w.user.Latest()
	c, outcome, err := w.engine.GenerateFrom(ctx, server, user)
	if err != nil {
		persistFailures.WithLabelValues(w.engine.Keys().Candidate).Inc()
		w.logger.Warn("editwatch: candidate not persisted", "error", err)
	}
	candidateGenerations.WithLabelValues(outcome.String()).Inc()
	if c.Empty() {
		candidateDiffs.Set(0)
	} else {
		candidateDiffs.Set(float64(len(c.Diffs)))
	}

	if outcome != candidate.Unchanged {
		if err := w.sinks.SendCandidate(ctx, sink.CandidateEvent{Outcome: outcome.String(), Candidate: c}); err != nil {
			w.logger.Debug("editwatch: candidate event not delivered", "error", err)
		}
	}
	return c
}
