// Package analysis turns stored rows into the derived summaries shown on the
// dashboard: per-store session breakdowns, registration progress and the
// date-range business report. Every function here is pure.
package analysis

import (
	"github.com/shopspring/decimal"

	"shiire/internal/core"
)

// DefaultPlatformFeeRate is charged on a sale when the product has no
// explicit platform fee.
var DefaultPlatformFeeRate = decimal.NewFromFloat(0.10)

// SessionInput carries everything needed to analyse one session.
type SessionInput struct {
	Session   core.PurchaseSession
	Purchases []core.StorePurchase
	// Products holds the products of each store, keyed by store id. A store
	// missing from the map was not loaded and is left out of the result.
	Products   map[string][]core.Product
	StoreNames map[string]string
	// FeeRate overrides DefaultPlatformFeeRate when valid. A valid zero
	// means sales carry no platform fee.
	FeeRate decimal.NullDecimal
}

type storeAcc struct {
	id   string
	base decimal.Decimal
	item int
}

// AnalyzeSession produces one StoreAnalysis per distinct store id in order
// of first appearance among the purchases.
//
// Shared session costs are split in proportion to each store's base amount
// over the session total. Stores whose products were not loaded are skipped
// but still count towards the session total, so the shares of the remaining
// stores do not change when one store fails to load.
func AnalyzeSession(in SessionInput) []core.StoreAnalysis {
	feeRate := feeRateOr(in.FeeRate)

	order := make([]*storeAcc, 0)
	byStore := make(map[string]*storeAcc)
	for _, p := range in.Purchases {
		acc, ok := byStore[p.StoreID]
		if !ok {
			acc = &storeAcc{id: p.StoreID}
			byStore[p.StoreID] = acc
			order = append(order, acc)
		}
		acc.base = acc.base.Add(p.BaseAmount())
		acc.item += p.ItemCount
	}

	total := decimal.Zero
	for _, acc := range order {
		total = total.Add(acc.base)
	}
	shared := in.Session.SharedCost()

	out := make([]core.StoreAnalysis, 0, len(order))
	for _, acc := range order {
		products, loaded := in.Products[acc.id]
		if !loaded {
			continue
		}
		sa := core.StoreAnalysis{
			StoreID:    acc.id,
			StoreName:  in.StoreNames[acc.id],
			BaseAmount: acc.base,
			ItemCount:  acc.item,
		}
		classify(&sa, products, feeRate)

		sa.AllocatedSharedCost = AllocateShare(acc.base, total, shared)
		sa.PurchaseAmount = acc.base.Add(sa.AllocatedSharedCost)
		sa.Profit = sa.SoldAmount.Sub(sa.SalesExpenses).Sub(sa.PurchaseAmount)
		sa.ProfitRate = core.Percent(sa.Profit, sa.SoldAmount)
		sa.ROI = core.Percent(sa.Profit, sa.PurchaseAmount)
		out = append(out, sa)
	}
	return out
}

// AllocateShare returns base/total*shared, or zero when total is zero.
func AllocateShare(base, total, shared decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return base.Mul(shared).Div(total)
}

// SalesExpense is the cost of selling one product: the platform fee (or the
// fallback rate applied to the sold price) plus outbound shipping.
func SalesExpense(p core.Product, feeRate decimal.Decimal) decimal.Decimal {
	fee := p.SoldPrice.Mul(feeRate)
	if p.PlatformFee.Valid {
		fee = p.PlatformFee.Decimal
	}
	return fee.Add(p.ShippingCost)
}

func classify(sa *core.StoreAnalysis, products []core.Product, feeRate decimal.Decimal) {
	for _, p := range products {
		sa.RegisteredCount++
		switch p.Status {
		case core.ProductDiscarded:
			sa.DiscardedCount++
		case core.ProductListed:
			sa.ListedCount++
		case core.ProductSold:
			sa.SoldCount++
			sa.SoldAmount = sa.SoldAmount.Add(p.SoldPrice)
			sa.SalesExpenses = sa.SalesExpenses.Add(SalesExpense(p, feeRate))
		}
	}
}

func feeRateOr(rate decimal.NullDecimal) decimal.Decimal {
	if rate.Valid {
		return rate.Decimal
	}
	return DefaultPlatformFeeRate
}
