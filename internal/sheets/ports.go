// Package sheets mirrors per-store session analyses into a spreadsheet.
package sheets

import (
	"context"
	"strconv"

	"shiire/internal/core"
)

// Ports for outbound adapters.
type (
	// SessionMirror keeps one row per store for every mirrored session.
	SessionMirror interface {
		// ReplaceSession drops the session's existing rows and writes the
		// given analysis in their place.
		ReplaceSession(ctx context.Context, session core.PurchaseSession, stores []core.StoreAnalysis) error
		// DeleteSession drops every row of the session. Unknown ids are a no-op.
		DeleteSession(ctx context.Context, sessionID string) error
	}
)

// Header is the first row of a mirror sheet. Its width matches range A:P.
var Header = []string{
	"session_id",
	"session_title",
	"store_id",
	"store_name",
	"item_count",
	"registered_count",
	"listed_count",
	"sold_count",
	"base_amount",
	"allocated_shared_cost",
	"purchase_amount",
	"sold_amount",
	"sales_expenses",
	"profit",
	"profit_rate",
	"roi",
}

// Rows flattens a session analysis into mirror rows, one per store, in the
// order the stores were given.
func Rows(session core.PurchaseSession, stores []core.StoreAnalysis) [][]string {
	out := make([][]string, 0, len(stores))
	for _, st := range stores {
		out = append(out, []string{
			session.ID,
			session.Title,
			st.StoreID,
			st.StoreName,
			strconv.Itoa(st.ItemCount),
			strconv.Itoa(st.RegisteredCount),
			strconv.Itoa(st.ListedCount),
			strconv.Itoa(st.SoldCount),
			st.BaseAmount.StringFixed(2),
			st.AllocatedSharedCost.StringFixed(2),
			st.PurchaseAmount.StringFixed(2),
			st.SoldAmount.StringFixed(2),
			st.SalesExpenses.StringFixed(2),
			st.Profit.StringFixed(2),
			st.ProfitRate.StringFixed(2),
			st.ROI.StringFixed(2),
		})
	}
	return out
}
