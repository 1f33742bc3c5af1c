// Package editkeeper applies candidate artifacts to the story database.
//
// A candidate lists paragraph-level changes the user made in place (see
// editwatch). Apply writes them to story_paragraphs in one transaction:
//
//	#story-history      → content, token_cost
//	.mid-synopsis-area  → summary_from_action, summary_token_cost
//	.long-synopsis-area → summary, summary_token_cost
//
// Diffs without a paragraph id cannot be addressed and are skipped. A
// delete, or an update to empty text, removes the row. Every applied diff
// appends an edit_log row.
//
// Usage:
//
//	k, err := editkeeper.Open("data/story.db")
//	defer k.Close()
//	res, err := k.Apply(ctx, candidate)
package editkeeper

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/storyedit/dbopen"
	"github.com/hazyhaar/storyedit/editkeeper/internal/store"
	"github.com/hazyhaar/storyedit/editwatch/record"
	"github.com/hazyhaar/storyedit/idgen"
	"github.com/hazyhaar/storyedit/trace"
)

// Paragraph is one story_paragraphs row.
type Paragraph = store.Paragraph

// LogEntry is one edit_log row.
type LogEntry = store.LogEntry

// TokenCounter measures the cost of a text for the story's context budget.
type TokenCounter func(text string) int

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// Result summarises one Apply.
type Result struct {
	Updated  int `json:"updated"`
	Inserted int `json:"inserted"`
	Deleted  int `json:"deleted"`
	// Skipped counts diffs that addressed no paragraph: no id, or a
	// delete/update of a row that does not exist.
	Skipped int `json:"skipped"`
}

// Applied returns the number of rows changed.
func (r Result) Applied() int { return r.Updated + r.Inserted + r.Deleted }

// Option configures a Keeper.
type Option func(*Keeper)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option { return func(k *Keeper) { k.logger = l } }

// WithTokenCounter replaces WordCount.
func WithTokenCounter(tc TokenCounter) Option { return func(k *Keeper) { k.tokens = tc } }

// WithIDGenerator sets the edit_log id generator. Default: "edit_" + UUIDv7.
func WithIDGenerator(g idgen.Generator) Option { return func(k *Keeper) { k.newID = g } }

// WithStrictSelectors rejects diffs on unknown selectors with
// ErrUnknownSelector instead of writing them to the history column.
func WithStrictSelectors() Option { return func(k *Keeper) { k.strict = true } }

// WithSQLTrace opens the database through the tracing driver: every
// statement is logged with its request ID and timed.
func WithSQLTrace() Option { return func(k *Keeper) { k.traceSQL = true } }

// WithClock sets the time source for updated_at and applied_at.
func WithClock(now func() time.Time) Option { return func(k *Keeper) { k.now = now } }

var columns = map[string]store.Column{
	"#story-history":      store.History,
	".mid-synopsis-area":  store.MidTerm,
	".long-synopsis-area": store.LongTerm,
}

// Keeper applies candidates to a story database.
type Keeper struct {
	store    *store.Store
	tokens   TokenCounter
	newID    idgen.Generator
	now      func() time.Time
	strict   bool
	traceSQL bool
	logger   *slog.Logger
	closed   atomic.Bool
}

// Open opens (or creates) the story database at path.
func Open(path string, opts ...Option) (*Keeper, error) {
	k := newKeeper(nil, opts...)
	var dbOpts []dbopen.Option
	if k.traceSQL {
		dbOpts = append(dbOpts, dbopen.WithDriver(trace.DriverName))
	}
	s, err := store.Open(path, dbOpts...)
	if err != nil {
		return nil, fmt.Errorf("editkeeper: open: %w", err)
	}
	k.store = s
	return k, nil
}

// New wraps an already open database. The schema is applied if missing.
func New(db *sql.DB, opts ...Option) (*Keeper, error) {
	if _, err := db.Exec(store.Schema); err != nil {
		return nil, fmt.Errorf("editkeeper: apply schema: %w", err)
	}
	return newKeeper(&store.Store{DB: db}, opts...), nil
}

func newKeeper(s *store.Store, opts ...Option) *Keeper {
	k := &Keeper{
		store:  s,
		tokens: WordCount,
		newID:  idgen.Prefixed("edit_", idgen.UUIDv7()),
		now:    time.Now,
	}
	for _, o := range opts {
		o(k)
	}
	if k.logger == nil {
		k.logger = slog.Default()
	}
	return k
}

// Apply writes every diff of c in one transaction. Any error rolls the
// whole candidate back; the caller keeps it and retries later. A nil or
// empty candidate is a no-op.
func (k *Keeper) Apply(ctx context.Context, c *record.Candidate) (Result, error) {
	var res Result
	if k.closed.Load() {
		return res, ErrClosed
	}
	if c.Empty() {
		return res, nil
	}

	err := dbopen.RunTx(ctx, k.store.DB, func(tx *sql.Tx) error {
		res = Result{}
		now := k.now().UnixMilli()
		for i, d := range c.Diffs {
			if err := k.applyDiff(ctx, tx, d, now, &res); err != nil {
				return fmt.Errorf("editkeeper: diff %d (%s %s): %w", i, d.Action, d.Selector, err)
			}
		}
		return nil
	})
	if err != nil {
		k.logger.Warn("editkeeper: candidate rolled back", "diffs", len(c.Diffs), "error", err)
		return Result{}, err
	}

	k.logger.Info("editkeeper: candidate applied",
		"timestamp", c.Timestamp,
		"updated", res.Updated, "inserted", res.Inserted,
		"deleted", res.Deleted, "skipped", res.Skipped)
	return res, nil
}

func (k *Keeper) applyDiff(ctx context.Context, tx *sql.Tx, d record.Diff, now int64, res *Result) error {
	if d.ParagraphID == nil || *d.ParagraphID == "" {
		k.logger.Debug("editkeeper: diff without paragraph id skipped", "selector", d.Selector, "action", d.Action)
		res.Skipped++
		return nil
	}
	id := *d.ParagraphID

	col, ok := columns[d.Selector]
	if !ok {
		if k.strict {
			return fmt.Errorf("%w: %q", ErrUnknownSelector, d.Selector)
		}
		col = store.History
	}

	old, exists, err := store.CurrentText(ctx, tx, id, col)
	if err != nil {
		return err
	}

	entry := store.LogEntry{
		ID:          k.newID(),
		ParagraphID: id,
		Selector:    d.Selector,
		Action:      string(d.Action),
		Column:      col.Text,
		AppliedAt:   now,
	}
	if exists {
		entry.OldText = &old
	}

	// Candidate texts are plain text content: stored as given, never
	// interpreted as markup.
	text := d.NewText
	switch {
	case d.Action == record.ActionDelete || strings.TrimSpace(text) == "":
		deleted, err := store.DeleteParagraph(ctx, tx, id)
		if err != nil {
			return err
		}
		if !deleted {
			res.Skipped++
			return nil
		}
		entry.Action = string(record.ActionDelete)
		res.Deleted++

	case d.Action == record.ActionUpdate || d.Action == record.ActionInsert:
		updated, err := store.WriteText(ctx, tx, id, col, text, k.tokens(text), now)
		if err != nil {
			return err
		}
		switch {
		case updated:
			res.Updated++
		case d.Action == record.ActionInsert:
			if err := store.InsertParagraph(ctx, tx, id, d.StoryKey, col, text, k.tokens(text), now); err != nil {
				return err
			}
			res.Inserted++
		default:
			res.Skipped++
			return nil
		}
		entry.NewText = &text

	default:
		return fmt.Errorf("unknown action %q", d.Action)
	}
	return store.AppendLog(ctx, tx, entry)
}

// Paragraphs lists the rows of a story.
func (k *Keeper) Paragraphs(ctx context.Context, storyID string) ([]Paragraph, error) {
	return k.store.Paragraphs(ctx, storyID)
}

// Paragraph returns one row, or nil when absent.
func (k *Keeper) Paragraph(ctx context.Context, id string) (*Paragraph, error) {
	return k.store.GetParagraph(ctx, id)
}

// EditLog returns the applied edits of a paragraph, oldest first.
func (k *Keeper) EditLog(ctx context.Context, paragraphID string) ([]LogEntry, error) {
	return k.store.EditLog(ctx, paragraphID)
}

// Close closes the database.
func (k *Keeper) Close() error {
	if k.closed.Swap(true) {
		return nil
	}
	return k.store.Close()
}
