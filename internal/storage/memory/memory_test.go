package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"shiire/internal/core"
	"shiire/internal/storage"
)

var _ storage.Repository = (*Store)(nil)

func TestSessionsOrderedNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, st := range []core.SessionStatus{core.SessionActive, core.SessionCompleted, core.SessionActive} {
		v := core.PurchaseSession{ID: core.NewID(), Title: "s", Status: st, SessionDate: base.AddDate(0, 0, i)}
		if err := s.CreateSession(ctx, v); err != nil {
			t.Fatal(err)
		}
	}
	all, _ := s.ListSessions(ctx, "")
	if len(all) != 3 || !all[0].SessionDate.Equal(base.AddDate(0, 0, 2)) {
		t.Fatalf("unexpected order %+v", all)
	}
	active, _ := s.ListSessions(ctx, core.SessionActive)
	if len(active) != 2 {
		t.Fatalf("expected 2 active, got %d", len(active))
	}
}

func TestDeleteSessionCascades(t *testing.T) {
	s := New()
	ctx := context.Background()
	st := core.Store{ID: "st", Name: "Book Off"}
	sess := core.PurchaseSession{ID: "s1", Title: "t", Status: core.SessionActive}
	pur := core.StorePurchase{ID: "p1", SessionID: "s1", StoreID: "st"}
	pid := "p1"
	prod := core.Product{ID: "x", StorePurchaseID: &pid, Name: "n"}

	if err := s.CreateStore(ctx, st); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatal(err)
	}
	if err := s.CreatePurchase(ctx, pur); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateProduct(ctx, prod); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteSession(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetPurchase(ctx, "p1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("purchase should be gone, got %v", err)
	}
	got, err := s.GetProduct(ctx, "x")
	if err != nil || got.StorePurchaseID != nil {
		t.Fatalf("product should be unlinked: %+v (%v)", got, err)
	}
}

func TestCreatePurchaseRequiresParents(t *testing.T) {
	s := New()
	err := s.CreatePurchase(context.Background(), core.StorePurchase{ID: "p", SessionID: "nope", StoreID: "nope"})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNewFromFilesSeedsStores(t *testing.T) {
	dir := t.TempDir()
	content := "# stores\nHard Off\n\nBook Off\nHard Off\n"
	if err := os.WriteFile(filepath.Join(dir, "seed_stores.txt"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewFromFiles(dir)
	stores, _ := s.ListStores(context.Background())
	if len(stores) != 2 || stores[0].Name != "Book Off" {
		t.Fatalf("unexpected stores %+v", stores)
	}
	if _, err := s.FindStoreByName(context.Background(), "HARD OFF"); err != nil {
		t.Fatalf("find by name: %v", err)
	}
}
