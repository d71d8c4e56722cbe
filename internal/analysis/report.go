package analysis

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"shiire/internal/core"
)

const (
	// DefaultSlowMovingDays is the inventory age after which an unsold item is flagged.
	DefaultSlowMovingDays = 60
	topN                  = 5
)

// ReportInput is the set of rows a report is built from.
type ReportInput struct {
	From, To time.Time
	Now      time.Time
	Products []core.Product
	// PurchaseStores maps store purchase id to store id.
	PurchaseStores map[string]string
	StoreNames     map[string]string
	SlowMovingDays int
	// FeeRate overrides DefaultPlatformFeeRate when valid.
	FeeRate decimal.NullDecimal
}

// BuildReport aggregates sales inside [From, To] (whole days, inclusive) and
// the current inventory state.
func BuildReport(in ReportInput) core.Report {
	feeRate := feeRateOr(in.FeeRate)
	slowDays := in.SlowMovingDays
	if slowDays <= 0 {
		slowDays = DefaultSlowMovingDays
	}
	from := startOfDay(in.From)
	until := startOfDay(in.To).AddDate(0, 0, 1)

	rep := core.Report{
		From:          from,
		To:            startOfDay(in.To),
		TopCategories: []core.CategoryAmount{},
		TopStores:     []core.CategoryAmount{},
		SlowMoving:    []core.SlowMover{},
		Trends:        []core.TrendPoint{},
	}

	byCategory := map[string]*core.CategoryAmount{}
	byStore := map[string]*core.CategoryAmount{}
	byMonth := map[string]*core.TrendPoint{}
	buckets := map[core.ProductStatus]*core.StatusBucket{}

	for _, p := range in.Products {
		b, ok := buckets[p.Status]
		if !ok {
			b = &core.StatusBucket{Status: p.Status}
			buckets[p.Status] = b
		}
		b.Count++
		b.CostTotal = b.CostTotal.Add(p.PurchasePrice)

		if !p.Status.Terminal() {
			if age := ageInDays(p.CreatedAt, in.Now); age > slowDays {
				rep.SlowMoving = append(rep.SlowMoving, core.SlowMover{
					ProductID: p.ID,
					Name:      p.Name,
					Category:  p.Category,
					Status:    p.Status,
					CreatedAt: p.CreatedAt,
					AgeDays:   age,
				})
			}
		}

		if p.Status != core.ProductSold {
			continue
		}
		soldAt := soldTime(p)
		if soldAt.Before(from) || !soldAt.Before(until) {
			continue
		}
		profit := p.SoldPrice.Sub(SalesExpense(p, feeRate)).Sub(p.PurchasePrice)
		rep.SoldCount++
		rep.Revenue = rep.Revenue.Add(p.SoldPrice)
		rep.Profit = rep.Profit.Add(profit)

		cat := categoryName(p.Category)
		addTo(byCategory, cat, core.CategoryAmount{Name: cat}, p.SoldPrice, profit)
		if p.StorePurchaseID != nil {
			if storeID, ok := in.PurchaseStores[*p.StorePurchaseID]; ok {
				addTo(byStore, storeID, core.CategoryAmount{ID: storeID}, p.SoldPrice, profit)
			}
		}

		month := soldAt.Format("2006-01")
		tp, ok := byMonth[month]
		if !ok {
			tp = &core.TrendPoint{Month: month}
			byMonth[month] = tp
		}
		tp.Revenue = tp.Revenue.Add(p.SoldPrice)
		tp.Profit = tp.Profit.Add(profit)
	}

	rep.Margin = core.Percent(rep.Profit, rep.Revenue)
	rep.TopCategories = ranked(byCategory)
	for id, c := range byStore {
		if c.Name = in.StoreNames[id]; c.Name == "" {
			c.Name = id
		}
	}
	rep.TopStores = ranked(byStore)

	for _, st := range core.ProductStatuses() {
		if b, ok := buckets[st]; ok {
			rep.Inventory = append(rep.Inventory, *b)
		}
	}
	if rep.Inventory == nil {
		rep.Inventory = []core.StatusBucket{}
	}

	sort.SliceStable(rep.SlowMoving, func(i, j int) bool {
		return rep.SlowMoving[i].CreatedAt.Before(rep.SlowMoving[j].CreatedAt)
	})

	for _, tp := range byMonth {
		rep.Trends = append(rep.Trends, *tp)
	}
	sort.Slice(rep.Trends, func(i, j int) bool { return rep.Trends[i].Month < rep.Trends[j].Month })

	return rep
}

// IsSlowMoving reports whether an item would be flagged at now.
func IsSlowMoving(p core.Product, now time.Time, days int) bool {
	if days <= 0 {
		days = DefaultSlowMovingDays
	}
	return !p.Status.Terminal() && ageInDays(p.CreatedAt, now) > days
}

func addTo(m map[string]*core.CategoryAmount, key string, row core.CategoryAmount, revenue, profit decimal.Decimal) {
	c, ok := m[key]
	if !ok {
		c = &row
		m[key] = c
	}
	c.Count++
	c.Revenue = c.Revenue.Add(revenue)
	c.Profit = c.Profit.Add(profit)
}

func ranked(m map[string]*core.CategoryAmount) []core.CategoryAmount {
	out := make([]core.CategoryAmount, 0, len(m))
	for _, c := range m {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if cmp := out[i].Revenue.Cmp(out[j].Revenue); cmp != 0 {
			return cmp > 0
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

func categoryName(c string) string {
	if c == "" {
		return "uncategorized"
	}
	return c
}

// soldTime falls back to the last update for rows sold before sold_at was recorded.
func soldTime(p core.Product) time.Time {
	if p.SoldAt != nil {
		return *p.SoldAt
	}
	return p.UpdatedAt
}

// ageInDays counts UTC calendar days, so ages only move when the date does.
func ageInDays(created, now time.Time) int {
	if created.IsZero() || now.Before(created) {
		return 0
	}
	c, n := created.UTC(), now.UTC()
	days := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC).
		Sub(time.Date(c.Year(), c.Month(), c.Day(), 0, 0, 0, 0, time.UTC))
	return int(days / (24 * time.Hour))
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
