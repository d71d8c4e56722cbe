package importer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"shiire/internal/core"
	"shiire/internal/services"
	"shiire/internal/storage/memory"
)

func workbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf
}

func TestReadRowsXLSX(t *testing.T) {
	buf := workbook(t, [][]any{
		{"Store", "Item Count", "Product Amount"},
		{"Hard Off", 3, "1200"},
	})
	rows, err := ReadRows(buf, "purchases.xlsx")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[1][0] != "Hard Off" || rows[1][1] != "3" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestReadRowsRejectsGarbage(t *testing.T) {
	if _, err := ReadRows(strings.NewReader("not a workbook"), "x.xlsx"); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseRows(t *testing.T) {
	rows := [][]string{
		{" store ", "items", "product-amount", "shipping", "commission"},
		{"A", "2", "100", "10", "5"},
		{"", "", ""},
		{"B", "", "50"},
	}
	got, err := ParseRows(rows)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].Line != 2 || got[0].Form.StoreName != "A" || got[0].Form.CommissionFee != "5" {
		t.Fatalf("unexpected first row %+v", got[0])
	}
	if got[1].Line != 4 || got[1].Form.ShippingCost != "" {
		t.Fatalf("unexpected second row %+v", got[1])
	}

	if _, err := ParseRows([][]string{{"store", "items"}}); !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected missing column error, got %v", err)
	}
}

func TestImportReportsRowErrors(t *testing.T) {
	ctx := context.Background()
	svc := services.NewSessionService(memory.New(), services.NewNotifier(nil))
	s, err := svc.CreateSession(ctx, services.SessionForm{Title: "Import", SessionDate: "2025-06-01"})
	if err != nil {
		t.Fatal(err)
	}

	buf := workbook(t, [][]any{
		{"store", "item_count", "product_amount", "shipping_cost", "commission_fee"},
		{"Hard Off", 3, "9000", "500", ""},
		{"Book Off", "lots", "100", "", ""},
		{"", 1, "100", "", ""},
		{"Hard Off", 1, "-5", "", ""},
		{"Book Off", 2, "1,500", "", ""},
	})

	res, err := Import(ctx, svc, s.ID, buf, "purchases.xlsx")
	if err != nil {
		t.Fatal(err)
	}
	if res.Imported != 2 || len(res.Errors) != 3 {
		t.Fatalf("imported %d, errors %+v", res.Imported, res.Errors)
	}
	lines := []int{res.Errors[0].Line, res.Errors[1].Line, res.Errors[2].Line}
	if lines[0] != 3 || lines[1] != 4 || lines[2] != 5 {
		t.Fatalf("error lines = %v", lines)
	}
	if !res.Purchases[1].ProductAmount.Equal(decimal.NewFromInt(1500)) {
		t.Fatalf("amount = %s", res.Purchases[1].ProductAmount)
	}

	stores, _ := svc.ListStores(ctx)
	if len(stores) != 2 {
		t.Fatalf("expected 2 stores, got %d", len(stores))
	}

	if _, err := Import(ctx, svc, "missing", workbook(t, [][]any{{"store", "product_amount"}}), "x.xlsx"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
