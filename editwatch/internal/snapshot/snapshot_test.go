package snapshot

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hazyhaar/storyedit/editwatch/internal/kvstore"
	"github.com/hazyhaar/storyedit/editwatch/record"
)

type mapDoc map[string][2]string

func (d mapDoc) Region(sel string) (string, string, bool) {
	v, ok := d[sel]
	return v[0], v[1], ok
}

func snap(ts, markup string) record.Snapshot {
	return record.Snapshot{
		Timestamp: ts,
		Fields:    []record.Field{{Selector: "#story-history", RawMarkup: record.String(markup), PlainText: record.String(markup)}},
	}
}

func TestReader_AbsentRegionIsNull(t *testing.T) {
	doc := mapDoc{"#story-history": {"<p>a</p>", "a"}}
	r := NewReader(doc, []string{"#story-history", ".mid-synopsis-area"})

	fields := r.Read()
	if len(fields) != 2 {
		t.Fatalf("got %d fields, want 2", len(fields))
	}
	if got := fields[0].Markup(); got != "<p>a</p>" {
		t.Errorf("markup: got %q, want %q", got, "<p>a</p>")
	}
	if fields[1].Present() || fields[1].PlainText != nil {
		t.Errorf("absent region should be null: %+v", fields[1])
	}
	if fields[1].Selector != ".mid-synopsis-area" {
		t.Errorf("selector: got %q", fields[1].Selector)
	}
	if !r.Monitored(".mid-synopsis-area") || r.Monitored("#other") {
		t.Error("Monitored mismatch")
	}
}

func TestLog_Bound(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory(0)
	l := LoadLog(ctx, store, "userSnapshots", 2, nil)

	for i := range 5 {
		if _, err := l.Append(ctx, snap(fmt.Sprintf("t%d", i), fmt.Sprintf("<p>%d</p>", i))); err != nil {
			t.Fatal(err)
		}
		if l.Len() > 2 {
			t.Fatalf("after %d appends: len %d", i+1, l.Len())
		}
	}

	entries := l.Entries()
	if entries[0].Timestamp != "t3" || entries[1].Timestamp != "t4" {
		t.Errorf("expected the two newest entries, got %q %q", entries[0].Timestamp, entries[1].Timestamp)
	}

	// Persisted form matches memory.
	raw, _, _ := store.Get(ctx, "userSnapshots")
	persisted, err := record.UnmarshalLog(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(persisted) != 2 || persisted[1].Timestamp != "t4" {
		t.Errorf("persisted: %+v", persisted)
	}
}

func TestLog_DedupRefreshesLatest(t *testing.T) {
	ctx := context.Background()
	l := LoadLog(ctx, kvstore.NewMemory(0), "storySnapshots", 2, nil)

	first := snap("t1", "<p>same</p>")
	first.Meta = map[string]string{"trigger": "server", "selector": "#story-history"}
	l.Append(ctx, first)

	again := snap("t2", "<p>same</p>")
	again.Meta = map[string]string{"trigger": "blur"}
	out, err := l.Append(ctx, again)
	if err != nil {
		t.Fatal(err)
	}
	if out != Refreshed {
		t.Errorf("outcome: got %v, want refreshed", out)
	}
	if l.Len() != 1 {
		t.Fatalf("len: got %d, want 1", l.Len())
	}

	latest, _ := l.Latest()
	if latest.Timestamp != "t2" {
		t.Errorf("timestamp: got %q, want t2", latest.Timestamp)
	}
	if latest.Meta["trigger"] != "blur" || latest.Meta["selector"] != "#story-history" {
		t.Errorf("meta not merged: %v", latest.Meta)
	}
}

func TestLog_MalformedStartsEmpty(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory(0)
	store.Set(ctx, "userSnapshots", []byte(`{"not":"an array"}`))

	l := LoadLog(ctx, store, "userSnapshots", 2, nil)
	if l.Len() != 0 {
		t.Fatalf("len: got %d, want 0", l.Len())
	}
	if _, err := l.Append(ctx, snap("t1", "<p>x</p>")); err != nil {
		t.Fatal(err)
	}
	if l.Len() != 1 {
		t.Errorf("len after append: got %d, want 1", l.Len())
	}
}

func TestLog_LoadTrimsOversizedLog(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory(0)
	data, _ := record.MarshalLog([]record.Snapshot{snap("a", "1"), snap("b", "2"), snap("c", "3")})
	store.Set(ctx, "k", data)

	l := LoadLog(ctx, store, "k", 2, nil)
	entries := l.Entries()
	if len(entries) != 2 || entries[0].Timestamp != "b" {
		t.Errorf("got %+v", entries)
	}
}

func TestLog_PersistFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory(10)
	l := LoadLog(ctx, store, "userSnapshots", 2, nil)

	_, err := l.Append(ctx, snap("t1", "<p>far too long for the quota</p>"))
	if !errors.Is(err, kvstore.ErrQuotaExceeded) {
		t.Fatalf("got %v, want ErrQuotaExceeded", err)
	}
	if l.Len() != 1 {
		t.Errorf("in-memory log should keep the entry, len=%d", l.Len())
	}
	if _, ok, _ := store.Get(ctx, "userSnapshots"); ok {
		t.Error("nothing should have been persisted")
	}
}

func TestLog_Clear(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory(0)
	l := LoadLog(ctx, store, "userSnapshots", 2, nil)
	l.Append(ctx, snap("t1", "x"))

	if err := l.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := l.Latest(); ok {
		t.Error("Latest after Clear should be empty")
	}
	raw, _, _ := store.Get(ctx, "userSnapshots")
	if string(raw) != "[]" {
		t.Errorf("persisted after clear: got %q, want []", raw)
	}
}

func TestLog_LatestIsCopy(t *testing.T) {
	ctx := context.Background()
	l := LoadLog(ctx, kvstore.NewMemory(0), "k", 2, nil)
	l.Append(ctx, snap("t1", "x"))

	got, _ := l.Latest()
	*got.Fields[0].RawMarkup = "mutated"
	again, _ := l.Latest()
	if again.Fields[0].Markup() != "x" {
		t.Errorf("Latest leaked internal state: %q", again.Fields[0].Markup())
	}
}
