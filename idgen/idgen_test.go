package idgen

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestShort(t *testing.T) {
	gen := Short(12)
	seen := make(map[string]bool, 1000)
	for i := 0; i < 1000; i++ {
		id := gen()
		if len(id) != 12 {
			t.Fatalf("Short(12): got length %d", len(id))
		}
		for _, c := range id {
			if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'z')) {
				t.Fatalf("Short: unexpected character %q in %q", c, id)
			}
		}
		if seen[id] {
			t.Fatalf("Short: duplicate at iteration %d: %q", i, id)
		}
		seen[id] = true
	}
}

func TestUUIDv7_Sortable(t *testing.T) {
	gen := UUIDv7()
	prev := gen()
	if len(prev) != 36 || len(strings.Split(prev, "-")) != 5 {
		t.Fatalf("UUIDv7: malformed %q", prev)
	}
	for i := 0; i < 100; i++ {
		id := gen()
		if id <= prev {
			t.Fatalf("UUIDv7: %q not after %q", id, prev)
		}
		prev = id
	}
}

func TestPrefixed(t *testing.T) {
	id := Prefixed("edit_", UUIDv7())()
	if !strings.HasPrefix(id, "edit_") {
		t.Errorf("got %q, want edit_ prefix", id)
	}
	u, err := uuid.Parse(strings.TrimPrefix(id, "edit_"))
	if err != nil {
		t.Fatalf("uuid.Parse: %v", err)
	}
	if u.Version() != 7 {
		t.Errorf("version: got %d, want 7", u.Version())
	}
}

func TestSequence(t *testing.T) {
	gen := Sequence("a", "b")
	if got := gen() + gen(); got != "ab" {
		t.Errorf("got %q, want %q", got, "ab")
	}
	defer func() {
		if recover() == nil {
			t.Error("expected panic on exhausted sequence")
		}
	}()
	gen()
}
