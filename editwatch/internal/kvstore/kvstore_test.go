package kvstore

import (
	"context"
	"errors"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/storyedit/dbopen"
)

func testBackends(t *testing.T) map[string]Store {
	t.Helper()

	sq, err := NewSQLite(dbopen.OpenMemory(t))
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}

	bg, err := OpenBadger(BadgerConfig{InMemory: true})
	if err != nil {
		t.Fatalf("badger: %v", err)
	}
	t.Cleanup(func() { bg.Close() })

	return map[string]Store{
		"memory": NewMemory(0),
		"sqlite": sq,
		"badger": bg,
	}
}

func TestStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := s.Get(ctx, "userSnapshots"); err != nil || ok {
				t.Fatalf("get missing: ok=%v err=%v", ok, err)
			}

			if err := s.Set(ctx, "userSnapshots", []byte(`[]`)); err != nil {
				t.Fatalf("set: %v", err)
			}
			if err := s.Set(ctx, "userSnapshots", []byte(`[{"timestamp":"t"}]`)); err != nil {
				t.Fatalf("overwrite: %v", err)
			}

			v, ok, err := s.Get(ctx, "userSnapshots")
			if err != nil || !ok {
				t.Fatalf("get: ok=%v err=%v", ok, err)
			}
			if string(v) != `[{"timestamp":"t"}]` {
				t.Errorf("value: got %q", v)
			}

			if err := s.Delete(ctx, "userSnapshots"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, ok, _ := s.Get(ctx, "userSnapshots"); ok {
				t.Error("key still present after delete")
			}
			if err := s.Delete(ctx, "never-set"); err != nil {
				t.Errorf("delete absent key: %v", err)
			}
		})
	}
}

func TestStore_KeysAreDisjoint(t *testing.T) {
	ctx := context.Background()
	for name, s := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			s.Set(ctx, "storySnapshots", []byte("server"))
			s.Set(ctx, "userSnapshots", []byte("user"))
			s.Delete(ctx, "storySnapshots")

			v, ok, err := s.Get(ctx, "userSnapshots")
			if err != nil || !ok || string(v) != "user" {
				t.Errorf("sibling key: got %q ok=%v err=%v", v, ok, err)
			}
		})
	}
}

func TestMemory_Quota(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(20)

	if err := m.Set(ctx, "a", []byte("0123456789")); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := m.Set(ctx, "b", []byte("0123456789")); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("second write: got %v, want ErrQuotaExceeded", err)
	}
	// Replacing a key only counts its new size.
	if err := m.Set(ctx, "a", []byte("short")); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if m.Keys() != 1 {
		t.Errorf("Keys: got %d, want 1", m.Keys())
	}
}

func TestMemory_Closed(t *testing.T) {
	m := NewMemory(0)
	m.Close()
	if err := m.Set(context.Background(), "a", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("set after close: got %v, want ErrClosed", err)
	}
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	m.Set(ctx, "k", []byte("abc"))
	v, _, _ := m.Get(ctx, "k")
	v[0] = 'x'
	again, _, _ := m.Get(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("stored value mutated through Get: %q", again)
	}
}
