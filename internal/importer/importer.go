package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"shiire/internal/core"
	"shiire/internal/services"
)

// Columns, with the spellings accepted for each.
var headerAliases = map[string][]string{
	"store":          {"store", "store_name", "shop"},
	"item_count":     {"item_count", "items", "count", "quantity"},
	"product_amount": {"product_amount", "amount", "products"},
	"shipping_cost":  {"shipping_cost", "shipping"},
	"commission_fee": {"commission_fee", "commission", "fee"},
}

var ErrMissingColumn = errors.New("missing required column")

// Row is one parsed data row. Line is the 1-based worksheet row.
type Row struct {
	Line int
	Form services.PurchaseForm
}

type RowError struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

type Result struct {
	Imported  int                  `json:"imported"`
	Purchases []core.StorePurchase `json:"purchases"`
	Errors    []RowError           `json:"errors"`
}

// Target is where imported rows go.
type Target interface {
	GetSession(ctx context.Context, id string) (core.PurchaseSession, error)
	AddPurchase(ctx context.Context, sessionID string, form services.PurchaseForm) (core.StorePurchase, error)
}

// ParseRows maps worksheet rows to purchase forms using the header row.
// Blank rows are skipped. The store and product_amount columns are required.
func ParseRows(rows [][]string) ([]Row, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyWorkbook
	}
	idx := map[string]int{}
	for i, h := range rows[0] {
		h = normalizeHeader(h)
		for col, aliases := range headerAliases {
			if _, seen := idx[col]; seen {
				continue
			}
			for _, a := range aliases {
				if h == a {
					idx[col] = i
				}
			}
		}
	}
	for _, col := range []string{"store", "product_amount"} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}
	col := func(row []string, name string) string {
		i, ok := idx[name]
		if !ok {
			return ""
		}
		return cellValue(row, i)
	}

	var out []Row
	for n, row := range rows[1:] {
		if blank(row) {
			continue
		}
		out = append(out, Row{
			Line: n + 2,
			Form: services.PurchaseForm{
				StoreName:     col(row, "store"),
				ItemCount:     col(row, "item_count"),
				ProductAmount: col(row, "product_amount"),
				ShippingCost:  col(row, "shipping_cost"),
				CommissionFee: col(row, "commission_fee"),
			},
		})
	}
	return out, nil
}

// Import reads the workbook and adds each row to the session. A bad row is
// reported in Result.Errors and does not stop the others.
func Import(ctx context.Context, target Target, sessionID string, r io.Reader, filename string) (Result, error) {
	if _, err := target.GetSession(ctx, sessionID); err != nil {
		return Result{}, err
	}
	cells, err := ReadRows(r, filename)
	if err != nil {
		return Result{}, err
	}
	rows, err := ParseRows(cells)
	if err != nil {
		return Result{}, err
	}

	res := Result{Purchases: []core.StorePurchase{}, Errors: []RowError{}}
	for _, row := range rows {
		if row.Form.StoreName == "" {
			res.Errors = append(res.Errors, RowError{Line: row.Line, Error: core.ErrMissingStore.Error()})
			continue
		}
		p, err := target.AddPurchase(ctx, sessionID, row.Form)
		if err != nil {
			res.Errors = append(res.Errors, RowError{Line: row.Line, Error: err.Error()})
			continue
		}
		res.Purchases = append(res.Purchases, p)
		res.Imported++
	}

	slog.InfoContext(ctx, "Workbook imported",
		"session_id", sessionID,
		"file", filename,
		"imported", res.Imported,
		"rejected", len(res.Errors))
	return res, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
