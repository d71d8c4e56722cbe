package memory

import (
	"context"
	"testing"

	"shiire/internal/core"
)

func TestMirrorReplaceAndDelete(t *testing.T) {
	ctx := context.Background()
	m := New()
	sess := core.PurchaseSession{ID: "s1", Title: "Trip"}

	if err := m.ReplaceSession(ctx, sess, []core.StoreAnalysis{{StoreID: "a"}, {StoreID: "b"}}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if got := len(m.Rows("s1")); got != 2 {
		t.Fatalf("expected 2 rows, got %d", got)
	}

	// a second replace drops the previous rows
	if err := m.ReplaceSession(ctx, sess, []core.StoreAnalysis{{StoreID: "c"}}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	rows := m.Rows("s1")
	if len(rows) != 1 || rows[0][2] != "c" {
		t.Fatalf("unexpected rows after replace: %v", rows)
	}

	// returned rows are copies
	rows[0][2] = "mutated"
	if m.Rows("s1")[0][2] != "c" {
		t.Fatal("Rows leaked internal state")
	}

	if err := m.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(m.Sessions()) != 0 {
		t.Fatalf("expected no sessions, got %v", m.Sessions())
	}
	if err := m.DeleteSession(ctx, "missing"); err != nil {
		t.Fatalf("delete of unknown session should be a no-op: %v", err)
	}
}

func TestMirrorSessionsSorted(t *testing.T) {
	ctx := context.Background()
	m := New()
	for _, id := range []string{"c", "a", "b"} {
		_ = m.ReplaceSession(ctx, core.PurchaseSession{ID: id}, nil)
	}
	got := m.Sessions()
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected order %v", got)
	}
}
