package analysis

import (
	"testing"

	"shiire/internal/core"
)

func TestRegistration(t *testing.T) {
	purchases := []core.StorePurchase{purchase("p1", "A", 3, 0), purchase("p2", "B", 1, 0)}
	products := []core.Product{
		{ID: "1", StorePurchaseID: linked("p1"), Photos: core.PhotoList{"a.jpg"}},
		{ID: "2", StorePurchaseID: linked("p2")},
		{ID: "3", StorePurchaseID: linked("other")},
		{ID: "4"},
	}
	r := Registration(purchases, products)
	if r.TotalItems != 4 || r.RegisteredItems != 2 || r.WithPhotos != 1 {
		t.Fatalf("unexpected registration %+v", r)
	}
	if !r.RegistrationPercent.Equal(d(50)) || !r.PhotoCoverage.Equal(d(50)) {
		t.Fatalf("unexpected percents %s %s", r.RegistrationPercent, r.PhotoCoverage)
	}
}

func TestRegistrationZeroAndClamp(t *testing.T) {
	r := Registration(nil, nil)
	if !r.RegistrationPercent.IsZero() || !r.PhotoCoverage.IsZero() {
		t.Fatalf("expected zeros, got %+v", r)
	}

	// more products registered than items declared
	purchases := []core.StorePurchase{purchase("p1", "A", 1, 0)}
	products := []core.Product{
		{ID: "1", StorePurchaseID: linked("p1")},
		{ID: "2", StorePurchaseID: linked("p1")},
	}
	r = Registration(purchases, products)
	if !r.RegistrationPercent.Equal(d(100)) {
		t.Fatalf("expected clamp to 100, got %s", r.RegistrationPercent)
	}
}

func TestSummarize(t *testing.T) {
	s := core.PurchaseSession{ID: "s1", TransportationCost: d(100)}
	purchases := []core.StorePurchase{purchase("p1", "A", 1, 500), purchase("p2", "A", 1, 500), purchase("p3", "B", 1, 0)}
	sum := Summarize(s, purchases, nil)
	if sum.StoreCount != 2 || !sum.BaseAmount.Equal(d(1000)) || !sum.PurchaseAmount.Equal(d(1100)) {
		t.Fatalf("unexpected summary %+v", sum)
	}
}
