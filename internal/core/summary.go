package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// StoreAnalysis is the per-store rollup of one purchase session.
type StoreAnalysis struct {
	StoreID             string          `json:"store_id"`
	StoreName           string          `json:"store_name"`
	BaseAmount          decimal.Decimal `json:"base_amount"`
	AllocatedSharedCost decimal.Decimal `json:"allocated_shared_cost"`
	PurchaseAmount      decimal.Decimal `json:"purchase_amount"`
	ItemCount           int             `json:"item_count"`
	RegisteredCount     int             `json:"registered_count"`
	DiscardedCount      int             `json:"discarded_count"`
	ListedCount         int             `json:"listed_count"`
	SoldCount           int             `json:"sold_count"`
	SoldAmount          decimal.Decimal `json:"sold_amount"`
	SalesExpenses       decimal.Decimal `json:"sales_expenses"`
	Profit              decimal.Decimal `json:"profit"`
	ProfitRate          decimal.Decimal `json:"profit_rate"`
	ROI                 decimal.Decimal `json:"roi"`
}

// Registration tracks how many bought items already have a product row.
type Registration struct {
	TotalItems          int             `json:"total_items"`
	RegisteredItems     int             `json:"registered_items"`
	WithPhotos          int             `json:"with_photos"`
	RegistrationPercent decimal.Decimal `json:"registration_percent"`
	PhotoCoverage       decimal.Decimal `json:"photo_coverage"`
}

// SessionSummary is one row of the session list.
type SessionSummary struct {
	Session        PurchaseSession `json:"session"`
	StoreCount     int             `json:"store_count"`
	BaseAmount     decimal.Decimal `json:"base_amount"`
	SharedCost     decimal.Decimal `json:"shared_cost"`
	PurchaseAmount decimal.Decimal `json:"purchase_amount"`
	Registration   Registration    `json:"registration"`
}

// CategoryAmount represents revenue aggregated under a name (category or store).
// ID is set for store rows only.
type CategoryAmount struct {
	ID      string          `json:"id,omitempty"`
	Name    string          `json:"name"`
	Count   int             `json:"count"`
	Revenue decimal.Decimal `json:"revenue"`
	Profit  decimal.Decimal `json:"profit"`
}

// StatusBucket groups inventory by product status.
type StatusBucket struct {
	Status    ProductStatus   `json:"status"`
	Count     int             `json:"count"`
	CostTotal decimal.Decimal `json:"cost_total"`
}

// TrendPoint is one month of sales.
type TrendPoint struct {
	Month   string          `json:"month"` // YYYY-MM
	Revenue decimal.Decimal `json:"revenue"`
	Profit  decimal.Decimal `json:"profit"`
}

// SlowMover is an unsold item that has been in inventory too long.
type SlowMover struct {
	ProductID string        `json:"product_id"`
	Name      string        `json:"name"`
	Category  string        `json:"category"`
	Status    ProductStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	AgeDays   int           `json:"age_days"`
}

// Report is the business report for a date range.
type Report struct {
	From          time.Time        `json:"from"`
	To            time.Time        `json:"to"`
	Revenue       decimal.Decimal  `json:"revenue"`
	Profit        decimal.Decimal  `json:"profit"`
	Margin        decimal.Decimal  `json:"margin"`
	SoldCount     int              `json:"sold_count"`
	TopCategories []CategoryAmount `json:"top_categories"`
	TopStores     []CategoryAmount `json:"top_stores"`
	Inventory     []StatusBucket   `json:"inventory"`
	SlowMoving    []SlowMover      `json:"slow_moving"`
	Trends        []TrendPoint     `json:"trends"`
}
