package analysis

import (
	"github.com/shopspring/decimal"

	"shiire/internal/core"
)

// Registration compares the items bought in a session with the product rows
// registered against its purchases. Products not linked to any of the given
// purchases are ignored.
func Registration(purchases []core.StorePurchase, products []core.Product) core.Registration {
	ids := make(map[string]struct{}, len(purchases))
	var r core.Registration
	for _, p := range purchases {
		ids[p.ID] = struct{}{}
		r.TotalItems += p.ItemCount
	}
	for _, p := range products {
		if p.StorePurchaseID == nil {
			continue
		}
		if _, ok := ids[*p.StorePurchaseID]; !ok {
			continue
		}
		r.RegisteredItems++
		if p.HasPhotos() {
			r.WithPhotos++
		}
	}
	r.RegistrationPercent = core.ClampPercent(core.Percent(decimal.NewFromInt(int64(r.RegisteredItems)), decimal.NewFromInt(int64(r.TotalItems))))
	r.PhotoCoverage = core.ClampPercent(core.Percent(decimal.NewFromInt(int64(r.WithPhotos)), decimal.NewFromInt(int64(r.RegisteredItems))))
	return r
}

// Summarize builds the list row for a session.
func Summarize(s core.PurchaseSession, purchases []core.StorePurchase, products []core.Product) core.SessionSummary {
	stores := make(map[string]struct{})
	base := decimal.Zero
	for _, p := range purchases {
		stores[p.StoreID] = struct{}{}
		base = base.Add(p.BaseAmount())
	}
	shared := s.SharedCost()
	return core.SessionSummary{
		Session:        s,
		StoreCount:     len(stores),
		BaseAmount:     base,
		SharedCost:     shared,
		PurchaseAmount: base.Add(shared),
		Registration:   Registration(purchases, products),
	}
}
