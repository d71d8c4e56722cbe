package analysis

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"shiire/internal/core"
)

var now = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

func soldOn(id, category, purchaseID string, price int64, at time.Time) core.Product {
	return core.Product{
		ID: id, Name: id, Category: category, StorePurchaseID: linked(purchaseID),
		Status: core.ProductSold, SoldPrice: d(price), PurchasePrice: d(price / 2),
		SoldAt: &at, CreatedAt: at.AddDate(0, 0, -10),
	}
}

func TestBuildReportTotals(t *testing.T) {
	in := ReportInput{
		From: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		Now:  now,
		Products: []core.Product{
			soldOn("a", "bags", "p1", 1000, time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)),
			soldOn("b", "shoes", "p2", 2000, time.Date(2025, 6, 30, 23, 0, 0, 0, time.UTC)),
			soldOn("c", "bags", "p1", 4000, time.Date(2025, 5, 31, 23, 0, 0, 0, time.UTC)), // out of range
		},
		PurchaseStores: map[string]string{"p1": "A", "p2": "B"},
		StoreNames:     map[string]string{"A": "Alpha"},
	}
	rep := BuildReport(in)
	if rep.SoldCount != 2 || !rep.Revenue.Equal(d(3000)) {
		t.Fatalf("unexpected totals %+v", rep)
	}
	// (1000-100-500) + (2000-200-1000)
	if !rep.Profit.Equal(d(1200)) {
		t.Fatalf("profit = %s", rep.Profit)
	}
	if !rep.Margin.Equal(d(40)) {
		t.Fatalf("margin = %s", rep.Margin)
	}
	if len(rep.TopCategories) != 2 || rep.TopCategories[0].Name != "shoes" {
		t.Fatalf("unexpected categories %+v", rep.TopCategories)
	}
	if len(rep.TopStores) != 2 || rep.TopStores[0].Name != "B" || rep.TopStores[1].Name != "Alpha" {
		t.Fatalf("unexpected stores %+v", rep.TopStores)
	}
	if len(rep.Trends) != 1 || rep.Trends[0].Month != "2025-06" {
		t.Fatalf("unexpected trends %+v", rep.Trends)
	}
}

func TestBuildReportTopFiveCategories(t *testing.T) {
	var products []core.Product
	at := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	for i, c := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		products = append(products, soldOn(c, c, "p", int64(100*(i+1)), at))
	}
	rep := BuildReport(ReportInput{From: at, To: at, Now: now, Products: products})
	if len(rep.TopCategories) != 5 || rep.TopCategories[0].Name != "g" || rep.TopCategories[4].Name != "c" {
		t.Fatalf("unexpected ranking %+v", rep.TopCategories)
	}
}

func TestBuildReportSlowMoving(t *testing.T) {
	old := core.Product{ID: "old", Status: core.ProductInStock, CreatedAt: now.AddDate(0, 0, -61)}
	young := core.Product{ID: "young", Status: core.ProductInStock, CreatedAt: now.AddDate(0, 0, -59)}
	edge := core.Product{ID: "edge", Status: core.ProductListed, CreatedAt: now.AddDate(0, 0, -60)}
	oldSold := core.Product{ID: "sold", Status: core.ProductSold, CreatedAt: now.AddDate(0, 0, -200), UpdatedAt: now.AddDate(-1, 0, 0)}
	oldDiscarded := core.Product{ID: "gone", Status: core.ProductDiscarded, CreatedAt: now.AddDate(0, 0, -200)}
	older := core.Product{ID: "older", Status: core.ProductOnHold, CreatedAt: now.AddDate(0, 0, -90)}

	rep := BuildReport(ReportInput{From: now, To: now, Now: now,
		Products: []core.Product{old, young, edge, oldSold, oldDiscarded, older}})

	if len(rep.SlowMoving) != 2 {
		t.Fatalf("expected 2 slow movers, got %+v", rep.SlowMoving)
	}
	if rep.SlowMoving[0].ProductID != "older" || rep.SlowMoving[1].ProductID != "old" {
		t.Fatalf("expected oldest first, got %+v", rep.SlowMoving)
	}
	if rep.SlowMoving[1].AgeDays != 61 {
		t.Fatalf("age = %d", rep.SlowMoving[1].AgeDays)
	}
	if !IsSlowMoving(old, now, 0) || IsSlowMoving(young, now, 0) {
		t.Fatalf("IsSlowMoving disagrees with report")
	}
}

func TestBuildReportInventoryAndEmpty(t *testing.T) {
	rep := BuildReport(ReportInput{From: now, To: now, Now: now})
	if !rep.Margin.IsZero() || rep.SoldCount != 0 || rep.Inventory == nil || rep.TopStores == nil {
		t.Fatalf("unexpected empty report %+v", rep)
	}

	products := []core.Product{
		{ID: "1", Status: core.ProductListed, PurchasePrice: d(100), CreatedAt: now},
		{ID: "2", Status: core.ProductInStock, PurchasePrice: d(50), CreatedAt: now},
		{ID: "3", Status: core.ProductListed, PurchasePrice: d(25), CreatedAt: now},
	}
	rep = BuildReport(ReportInput{From: now, To: now, Now: now, Products: products})
	if len(rep.Inventory) != 2 || rep.Inventory[0].Status != core.ProductInStock || rep.Inventory[1].Count != 2 || !rep.Inventory[1].CostTotal.Equal(d(125)) {
		t.Fatalf("unexpected inventory %+v", rep.Inventory)
	}
}

func TestBuildReportZeroFeeRate(t *testing.T) {
	at := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	rep := BuildReport(ReportInput{
		From: at, To: at, Now: now,
		Products: []core.Product{soldOn("a", "bags", "p1", 1000, at)},
		FeeRate:  decimal.NewNullDecimal(decimal.Zero),
	})
	// 1000 - 0 fee - 500 cost
	if !rep.Profit.Equal(d(500)) {
		t.Fatalf("profit = %s, want 500", rep.Profit)
	}
}

func TestBuildReportStoresRankedByID(t *testing.T) {
	at := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	rep := BuildReport(ReportInput{
		From: at, To: at, Now: now,
		Products: []core.Product{
			soldOn("a", "bags", "p1", 1000, at),
			soldOn("b", "bags", "p2", 3000, at),
			soldOn("c", "bags", "p3", 500, at),
		},
		PurchaseStores: map[string]string{"p1": "s1", "p2": "s2", "p3": "Hard Off"},
		// two branches share a name, and one store id equals that name
		StoreNames: map[string]string{"s1": "Hard Off", "s2": "Hard Off"},
	})
	if len(rep.TopStores) != 3 {
		t.Fatalf("stores merged: %+v", rep.TopStores)
	}
	first := rep.TopStores[0]
	if first.ID != "s2" || first.Name != "Hard Off" || !first.Revenue.Equal(d(3000)) {
		t.Fatalf("unexpected first store %+v", first)
	}
	if rep.TopStores[2].ID != "Hard Off" || !rep.TopStores[2].Revenue.Equal(d(500)) {
		t.Fatalf("unnamed store should fall back to its id: %+v", rep.TopStores[2])
	}
}

func TestSlowMovingAgeIsCalendarDays(t *testing.T) {
	created := time.Date(2025, 4, 30, 23, 0, 0, 0, time.UTC)
	p := core.Product{ID: "late", Status: core.ProductInStock, CreatedAt: created}

	// 61 calendar days later, even though less than 61*24h have passed
	morning := time.Date(2025, 6, 30, 1, 0, 0, 0, time.UTC)
	evening := time.Date(2025, 6, 30, 22, 0, 0, 0, time.UTC)
	for _, at := range []time.Time{morning, evening} {
		rep := BuildReport(ReportInput{From: at, To: at, Now: at, Products: []core.Product{p}})
		if len(rep.SlowMoving) != 1 || rep.SlowMoving[0].AgeDays != 61 {
			t.Fatalf("at %s: slow movers %+v", at.Format(time.RFC3339), rep.SlowMoving)
		}
	}
}
