package candidate

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hazyhaar/storyedit/editwatch/internal/kvstore"
	"github.com/hazyhaar/storyedit/editwatch/record"
)

const history = "#story-history"

func put(t *testing.T, store kvstore.Store, key string, markup map[string]string) {
	t.Helper()
	s := record.Snapshot{Timestamp: "2026-01-01T00:00:00.000Z"}
	for _, sel := range []string{history, ".mid-synopsis-area"} {
		m, ok := markup[sel]
		if !ok {
			continue
		}
		s.Fields = append(s.Fields, record.Field{Selector: sel, RawMarkup: record.String(m), PlainText: record.String("")})
	}
	data, err := record.MarshalLog([]record.Snapshot{s})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Set(context.Background(), key, data); err != nil {
		t.Fatal(err)
	}
}

func newTestEngine(store kvstore.Store) *Engine {
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	return NewEngine(store, DefaultKeys, func() time.Time { return at }, nil)
}

func generate(t *testing.T, server, user map[string]string) ([]record.Diff, kvstore.Store) {
	t.Helper()
	store := kvstore.NewMemory(0)
	if server != nil {
		put(t, store, DefaultKeys.Server, server)
	}
	if user != nil {
		put(t, store, DefaultKeys.User, user)
	}
	c, _, err := newTestEngine(store).Generate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if c == nil {
		return nil, store
	}
	return c.Diffs, store
}

func TestGenerate_UpdateUserWins(t *testing.T) {
	got, _ := generate(t,
		map[string]string{history: `<p data-paragraph-id="1" data-story-id="s">Hello "world"</p>`},
		map[string]string{history: `<p data-paragraph-id="1" data-story-id="s">Hello "brave world"</p>`},
	)
	want := []record.Diff{{
		Selector:     history,
		Action:       record.ActionUpdate,
		ParagraphID:  record.String("1"),
		StoryKey:     record.String("s"),
		OriginalText: record.String(`Hello "world"`),
		NewText:      `Hello "brave world"`,
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("diffs mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerate_DeleteWhenUserRegionEmpty(t *testing.T) {
	got, _ := generate(t,
		map[string]string{history: `<p data-paragraph-id="1">Once upon a time</p>`},
		map[string]string{history: ``},
	)
	want := []record.Diff{{
		Selector:     history,
		Action:       record.ActionDelete,
		ParagraphID:  record.String("1"),
		OriginalText: record.String("Once upon a time"),
		NewText:      record.DeleteText,
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("diffs mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerate_InsertWithoutID(t *testing.T) {
	got, _ := generate(t,
		map[string]string{history: ``},
		map[string]string{history: `<p>A new line</p>`},
	)
	want := []record.Diff{{
		Selector: history,
		Action:   record.ActionInsert,
		NewText:  "A new line",
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("diffs mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerate_BothEmptyRemovesKey(t *testing.T) {
	store := kvstore.NewMemory(0)
	store.Set(context.Background(), DefaultKeys.Candidate, []byte(`{"timestamp":"old","diffs":[]}`))

	c, outcome, err := newTestEngine(store).Generate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if c != nil || outcome != Cleared {
		t.Errorf("got %v, %v; want nil, cleared", c, outcome)
	}
	if _, ok, _ := store.Get(context.Background(), DefaultKeys.Candidate); ok {
		t.Error("candidate key should be absent")
	}
}

func TestGenerate_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory(0)
	put(t, store, DefaultKeys.Server, map[string]string{history: `<p data-paragraph-id="1">a</p>`})
	put(t, store, DefaultKeys.User, map[string]string{history: `<p data-paragraph-id="1">b</p>`})

	first := NewEngine(store, DefaultKeys, func() time.Time { return time.Unix(100, 0) }, nil)
	if _, out, _ := first.Generate(ctx); out != Written {
		t.Fatalf("first outcome: got %v, want written", out)
	}
	before, _, _ := store.Get(ctx, DefaultKeys.Candidate)

	// A later clock must not change the stored bytes.
	second := NewEngine(store, DefaultKeys, func() time.Time { return time.Unix(200, 0) }, nil)
	if _, out, _ := second.Generate(ctx); out != Unchanged {
		t.Fatalf("second outcome: got %v, want unchanged", out)
	}
	after, _, _ := store.Get(ctx, DefaultKeys.Candidate)
	if string(before) != string(after) {
		t.Errorf("artifact changed:\n%s\n%s", before, after)
	}
}

func TestGenerate_NormalizationEquivalence(t *testing.T) {
	pairs := [][2]string{
		{"Hello world", "Hello\u00a0world"},
		{"Hello world", "Hello    world"},
		{"Hello world", "  Hello world\n"},
		{"Hello world", ">> Hello world"},
		{">>  You open the door", "You open the door"},
	}
	for _, p := range pairs {
		got, _ := generate(t,
			map[string]string{history: `<p data-paragraph-id="7">` + p[0] + `</p>`},
			map[string]string{history: `<p data-paragraph-id="7">` + p[1] + `</p>`},
		)
		if len(got) != 0 {
			t.Errorf("%q vs %q: got %d diffs, want 0", p[0], p[1], len(got))
		}
	}
}

func TestGenerate_DeleteCompleteness(t *testing.T) {
	got, _ := generate(t,
		map[string]string{history: `<p data-paragraph-id="1">one</p><p data-paragraph-id="2">two</p><p data-paragraph-id="3">three</p>`},
		map[string]string{history: `<p data-paragraph-id="2">two</p>`},
	)
	deleted := map[string]int{}
	for _, d := range got {
		if d.Action != record.ActionDelete {
			t.Errorf("unexpected %s diff", d.Action)
			continue
		}
		if d.NewText != record.DeleteText {
			t.Errorf("delete newText: got %q", d.NewText)
		}
		deleted[*d.ParagraphID]++
	}
	if diff := cmp.Diff(map[string]int{"1": 1, "3": 1}, deleted); diff != "" {
		t.Errorf("deleted ids (-want +got):\n%s", diff)
	}
}

func TestGenerate_BlankInsertDropped(t *testing.T) {
	got, _ := generate(t,
		map[string]string{history: `<p data-paragraph-id="1">kept</p>`},
		map[string]string{history: `<p data-paragraph-id="1">kept</p><p>  </p><p>fresh</p>`},
	)
	want := []record.Diff{{Selector: history, Action: record.ActionInsert, NewText: "fresh"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("diffs mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerate_PositionalMatchWithoutIDs(t *testing.T) {
	got, _ := generate(t,
		map[string]string{history: `<p>first</p><p>second</p>`},
		map[string]string{history: `<p>first</p><p>second, edited</p>`},
	)
	want := []record.Diff{{
		Selector:     history,
		Action:       record.ActionUpdate,
		OriginalText: record.String("second"),
		NewText:      "second, edited",
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("diffs mismatch (-want +got):\n%s", diff)
	}
}

// A server paragraph with an id never falls back to position: if the user
// side lost the id, the pair reads as delete plus insert.
func TestGenerate_IDNeverFallsBackToPosition(t *testing.T) {
	got, _ := generate(t,
		map[string]string{history: `<p data-paragraph-id="9">text</p>`},
		map[string]string{history: `<p>text</p>`},
	)
	if len(got) != 1 || got[0].Action != record.ActionDelete {
		t.Fatalf("got %+v, want a single delete", got)
	}
}

func TestGenerate_RegionOrderAndUserOnlyRegions(t *testing.T) {
	got, _ := generate(t,
		map[string]string{history: `<p data-paragraph-id="1">a</p>`},
		map[string]string{history: `<p data-paragraph-id="1">b</p>`, ".mid-synopsis-area": `<p>memo</p>`},
	)
	if len(got) != 2 {
		t.Fatalf("got %d diffs, want 2", len(got))
	}
	if got[0].Selector != history || got[1].Selector != ".mid-synopsis-area" {
		t.Errorf("order: got %q, %q", got[0].Selector, got[1].Selector)
	}
}

func TestGenerate_MalformedLogTreatedAsAbsent(t *testing.T) {
	store := kvstore.NewMemory(0)
	store.Set(context.Background(), DefaultKeys.Server, []byte(`not json`))
	put(t, store, DefaultKeys.User, map[string]string{history: `<p>hi</p>`})

	c, _, err := newTestEngine(store).Generate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if c == nil || len(c.Diffs) != 1 || c.Diffs[0].Action != record.ActionInsert {
		t.Errorf("got %+v, want one insert", c)
	}
	if c.Timestamp != "2026-02-03T04:05:06.000Z" {
		t.Errorf("timestamp: got %q", c.Timestamp)
	}
}

func TestLoad_Malformed(t *testing.T) {
	store := kvstore.NewMemory(0)
	store.Set(context.Background(), DefaultKeys.Candidate, []byte(`{"diffs":[{"action":"nope"}]}`))
	c, err := newTestEngine(store).Load(context.Background())
	if err != nil || c != nil {
		t.Errorf("got %v, %v; want nil, nil", c, err)
	}
}

func TestParseParagraphs(t *testing.T) {
	got, err := ParseParagraphs(`<div><p data-paragraph-id="4" data-story-id="">a&nbsp;<b>b</b></p></div><p>c</p>`)
	if err != nil {
		t.Fatal(err)
	}
	want := []Paragraph{
		{ID: record.String("4"), Index: 0, Text: "a b"},
		{Index: 1, Text: "c"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("paragraphs (-want +got):\n%s", diff)
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"  a \u00a0 b  ":  "a b",
		">> hello":        "hello",
		">>\u00a0\thello": "hello",
		">>hello":         ">>hello",
		">> >> twice":     ">> twice",
		"  >> indented":   ">> indented",
		"":                "",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q): got %q, want %q", in, got, want)
		}
	}
}
