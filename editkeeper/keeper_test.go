package editkeeper

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/storyedit/dbopen"
	"github.com/hazyhaar/storyedit/editwatch/record"
	"github.com/hazyhaar/storyedit/idgen"
	"github.com/hazyhaar/storyedit/trace"
)

func testKeeper(t *testing.T, opts ...Option) *Keeper {
	t.Helper()
	db := dbopen.OpenMemory(t)
	opts = append([]Option{WithClock(func() time.Time { return time.UnixMilli(1_700_000_000_000) })}, opts...)
	k, err := New(db, opts...)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`
		INSERT INTO story_paragraphs (id, story_id, content, token_cost, summary_from_action, summary)
		VALUES ('p1', 's1', 'Once upon a time', 4, 'mid one', 'long one'),
		       ('p2', 's1', 'The end', 2, '', '')`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return k
}

func diff(sel string, action record.Action, id *string, text string) record.Diff {
	return record.Diff{Selector: sel, Action: action, ParagraphID: id, NewText: text}
}

func TestApply_ColumnsByRegion(t *testing.T) {
	k := testKeeper(t)
	ctx := context.Background()

	res, err := k.Apply(ctx, &record.Candidate{Timestamp: "t", Diffs: []record.Diff{
		diff("#story-history", record.ActionUpdate, record.String("p1"), "Once upon a midnight dreary"),
		diff(".mid-synopsis-area", record.ActionUpdate, record.String("p1"), "mid two"),
		diff(".long-synopsis-area", record.ActionUpdate, record.String("p2"), "long & short"),
	}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Updated != 3 || res.Applied() != 3 {
		t.Errorf("result: got %+v", res)
	}

	p1, _ := k.Paragraph(ctx, "p1")
	if p1.Content != "Once upon a midnight dreary" || p1.TokenCost != 5 {
		t.Errorf("content: got %q (%d tokens)", p1.Content, p1.TokenCost)
	}
	if p1.SummaryFromAction != "mid two" || p1.SummaryTokenCost != 2 {
		t.Errorf("mid: got %q (%d tokens)", p1.SummaryFromAction, p1.SummaryTokenCost)
	}
	if p1.UpdatedAt != 1_700_000_000_000 {
		t.Errorf("updated_at: got %d", p1.UpdatedAt)
	}
	p2, _ := k.Paragraph(ctx, "p2")
	if p2.Summary != "long & short" {
		t.Errorf("long: got %q, want %q", p2.Summary, "long & short")
	}
}

func TestApply_DeleteAndEmpty(t *testing.T) {
	k := testKeeper(t)
	ctx := context.Background()

	res, err := k.Apply(ctx, &record.Candidate{Diffs: []record.Diff{
		diff("#story-history", record.ActionDelete, record.String("p1"), record.DeleteText),
		diff("#story-history", record.ActionUpdate, record.String("p2"), "   "),
	}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Deleted != 2 {
		t.Errorf("result: got %+v", res)
	}
	rows, _ := k.Paragraphs(ctx, "s1")
	if len(rows) != 0 {
		t.Errorf("got %d rows, want 0", len(rows))
	}

	log, _ := k.EditLog(ctx, "p1")
	if len(log) != 1 || log[0].Action != "delete" || log[0].OldText == nil || *log[0].OldText != "Once upon a time" {
		t.Errorf("edit log: got %+v", log)
	}
}

func TestApply_StoresTextVerbatim(t *testing.T) {
	k := testKeeper(t)
	ctx := context.Background()

	res, err := k.Apply(ctx, &record.Candidate{Diffs: []record.Diff{
		diff("#story-history", record.ActionUpdate, record.String("p1"), "<whisper>"),
		diff("#story-history", record.ActionUpdate, record.String("p2"), "She wrote <3 and x<y> z &amp; left"),
	}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Updated != 2 || res.Deleted != 0 {
		t.Errorf("result: got %+v", res)
	}

	p1, _ := k.Paragraph(ctx, "p1")
	if p1 == nil || p1.Content != "<whisper>" {
		t.Fatalf("p1: got %+v, want content %q", p1, "<whisper>")
	}
	p2, _ := k.Paragraph(ctx, "p2")
	if want := "She wrote <3 and x<y> z &amp; left"; p2 == nil || p2.Content != want {
		t.Errorf("p2: got %+v, want content %q", p2, want)
	}
}

func TestApply_SkipsUnaddressable(t *testing.T) {
	k := testKeeper(t)
	ctx := context.Background()

	res, err := k.Apply(ctx, &record.Candidate{Diffs: []record.Diff{
		diff("#story-history", record.ActionInsert, nil, "no id"),
		diff("#story-history", record.ActionUpdate, record.String("missing"), "x"),
		diff("#story-history", record.ActionDelete, record.String("missing"), record.DeleteText),
	}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Skipped != 3 || res.Applied() != 0 {
		t.Errorf("result: got %+v", res)
	}
}

func TestApply_InsertCreatesRow(t *testing.T) {
	k := testKeeper(t, WithIDGenerator(idgen.Sequence("edit_1")))
	ctx := context.Background()

	d := diff("#story-history", record.ActionInsert, record.String("p3"), "A new line")
	d.StoryKey = record.String("s1")
	res, err := k.Apply(ctx, &record.Candidate{Diffs: []record.Diff{d}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Inserted != 1 {
		t.Fatalf("result: got %+v", res)
	}
	rows, _ := k.Paragraphs(ctx, "s1")
	if len(rows) != 3 || rows[2].Content != "A new line" {
		t.Errorf("rows: got %+v", rows)
	}
	log, _ := k.EditLog(ctx, "p3")
	if len(log) != 1 || log[0].ID != "edit_1" || log[0].OldText != nil {
		t.Errorf("edit log: got %+v", log)
	}
}

func TestApply_UnknownSelector(t *testing.T) {
	ctx := context.Background()
	c := &record.Candidate{Diffs: []record.Diff{
		diff("#sidebar", record.ActionUpdate, record.String("p2"), "Fallback"),
	}}

	k := testKeeper(t)
	if _, err := k.Apply(ctx, c); err != nil {
		t.Fatal(err)
	}
	p2, _ := k.Paragraph(ctx, "p2")
	if p2.Content != "Fallback" {
		t.Errorf("unknown selector should write the history column, got %q", p2.Content)
	}

	strict := testKeeper(t, WithStrictSelectors())
	if _, err := strict.Apply(ctx, c); !errors.Is(err, ErrUnknownSelector) {
		t.Errorf("strict: got %v, want ErrUnknownSelector", err)
	}
}

func TestApply_RollsBackOnError(t *testing.T) {
	k := testKeeper(t)
	ctx := context.Background()

	_, err := k.Apply(ctx, &record.Candidate{Diffs: []record.Diff{
		diff("#story-history", record.ActionUpdate, record.String("p1"), "changed"),
		diff("#story-history", "move", record.String("p2"), "x"),
	}})
	if err == nil {
		t.Fatal("expected error for unknown action")
	}
	p1, _ := k.Paragraph(ctx, "p1")
	if p1.Content != "Once upon a time" {
		t.Errorf("first diff should be rolled back, got %q", p1.Content)
	}
	if log, _ := k.EditLog(ctx, "p1"); len(log) != 0 {
		t.Errorf("edit log should be rolled back, got %d rows", len(log))
	}
}

func TestApply_EmptyAndClosed(t *testing.T) {
	k := testKeeper(t)
	ctx := context.Background()

	if res, err := k.Apply(ctx, nil); err != nil || res.Applied() != 0 {
		t.Errorf("nil candidate: got %+v, %v", res, err)
	}
	k.Close()
	if _, err := k.Apply(ctx, &record.Candidate{Diffs: []record.Diff{{}}}); !errors.Is(err, ErrClosed) {
		t.Errorf("after Close: got %v, want ErrClosed", err)
	}
}

func TestWordCount(t *testing.T) {
	cases := map[string]int{
		"":                  0,
		"   ":               0,
		"one":               1,
		"two  words\n here": 3,
	}
	for in, want := range cases {
		if got := WordCount(in); got != want {
			t.Errorf("WordCount(%q): got %d, want %d", in, got, want)
		}
	}
}

func TestOpen_WithSQLTrace(t *testing.T) {
	var mu sync.Mutex
	var queries int
	trace.SetRecorder(func(e trace.Entry) {
		mu.Lock()
		queries++
		mu.Unlock()
	})
	defer trace.SetRecorder(nil)

	k, err := Open(filepath.Join(t.TempDir(), "story.db"), WithSQLTrace())
	if err != nil {
		t.Fatal(err)
	}
	defer k.Close()

	if _, err := k.Paragraphs(context.Background(), "s1"); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	defer mu.Unlock()
	if queries == 0 {
		t.Error("no statement went through the tracing driver")
	}
}
