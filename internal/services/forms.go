package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"shiire/internal/core"
)

const dateLayout = "2006-01-02"

// SessionForm is the user supplied part of a purchase session. Amounts are
// raw strings and go through core.ParseAmount.
type SessionForm struct {
	Title              string `json:"title"`
	SessionDate        string `json:"session_date"`
	Status             string `json:"status"`
	TransportationCost string `json:"transportation_cost"`
	TransferFee        string `json:"transfer_fee"`
	AgencyFee          string `json:"agency_fee"`
	Notes              string `json:"notes"`
}

// Apply copies the form onto s and validates the result.
func (f SessionForm) Apply(s *core.PurchaseSession) error {
	date, err := parseDate(f.SessionDate)
	if err != nil {
		return err
	}
	status := core.SessionActive
	if strings.TrimSpace(f.Status) != "" {
		if status, err = core.ParseSessionStatus(f.Status); err != nil {
			return err
		}
	}
	amounts, err := parseAmounts(
		"transportation_cost", f.TransportationCost,
		"transfer_fee", f.TransferFee,
		"agency_fee", f.AgencyFee,
	)
	if err != nil {
		return err
	}

	s.Title = strings.TrimSpace(f.Title)
	s.SessionDate = date
	s.Status = status
	s.TransportationCost, s.TransferFee, s.AgencyFee = amounts[0], amounts[1], amounts[2]
	s.Notes = strings.TrimSpace(f.Notes)
	return s.Validate()
}

// PurchaseForm adds or edits one store purchase. StoreName is used when
// StoreID is empty; the store is created if it does not exist yet.
type PurchaseForm struct {
	StoreID       string `json:"store_id"`
	StoreName     string `json:"store_name"`
	ItemCount     string `json:"item_count"`
	ProductAmount string `json:"product_amount"`
	ShippingCost  string `json:"shipping_cost"`
	CommissionFee string `json:"commission_fee"`
}

func (f PurchaseForm) apply(p *core.StorePurchase) error {
	count, err := parseCount(f.ItemCount)
	if err != nil {
		return err
	}
	amounts, err := parseAmounts(
		"product_amount", f.ProductAmount,
		"shipping_cost", f.ShippingCost,
		"commission_fee", f.CommissionFee,
	)
	if err != nil {
		return err
	}
	p.ItemCount = count
	p.ProductAmount, p.ShippingCost, p.CommissionFee = amounts[0], amounts[1], amounts[2]
	return nil
}

// ProductForm registers or edits a product.
type ProductForm struct {
	StorePurchaseID string   `json:"store_purchase_id"`
	Name            string   `json:"name"`
	Category        string   `json:"category"`
	Status          string   `json:"status"`
	PurchasePrice   string   `json:"purchase_price"`
	ListingPrice    string   `json:"listing_price"`
	SoldPrice       string   `json:"sold_price"`
	PlatformFee     string   `json:"platform_fee"`
	ShippingCost    string   `json:"shipping_cost"`
	Photos          []string `json:"photos"`
	SoldAt          string   `json:"sold_at"`
}

// Apply copies the form onto p. An empty platform fee clears it so the
// default rate applies. Moving a product to sold without a sold date stamps
// it with now.
func (f ProductForm) Apply(p *core.Product, now time.Time) error {
	status := core.ProductInStock
	if strings.TrimSpace(f.Status) != "" {
		var err error
		if status, err = core.ParseProductStatus(f.Status); err != nil {
			return err
		}
	}
	amounts, err := parseAmounts(
		"purchase_price", f.PurchasePrice,
		"listing_price", f.ListingPrice,
		"sold_price", f.SoldPrice,
		"shipping_cost", f.ShippingCost,
	)
	if err != nil {
		return err
	}

	fee := decimal.NullDecimal{}
	if strings.TrimSpace(f.PlatformFee) != "" {
		v, err := core.ParseAmount(f.PlatformFee)
		if err != nil {
			return fmt.Errorf("platform_fee: %w", err)
		}
		fee = decimal.NewNullDecimal(v)
	}

	var soldAt *time.Time
	if strings.TrimSpace(f.SoldAt) != "" {
		t, err := parseDate(f.SoldAt)
		if err != nil {
			return fmt.Errorf("sold_at: %w", err)
		}
		soldAt = &t
	} else if status == core.ProductSold {
		if p.SoldAt != nil {
			soldAt = p.SoldAt
		} else {
			t := now
			soldAt = &t
		}
	}

	p.StorePurchaseID = nil
	if id := strings.TrimSpace(f.StorePurchaseID); id != "" {
		p.StorePurchaseID = &id
	}
	p.Name = strings.TrimSpace(f.Name)
	p.Category = strings.TrimSpace(f.Category)
	p.Status = status
	p.PurchasePrice, p.ListingPrice, p.SoldPrice, p.ShippingCost = amounts[0], amounts[1], amounts[2], amounts[3]
	p.PlatformFee = fee
	p.Photos = core.PhotoList(f.Photos)
	p.SoldAt = soldAt
	return p.Validate()
}

// parseAmounts takes name/value pairs and reports the first bad field.
func parseAmounts(pairs ...string) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		v, err := core.ParseAmount(pairs[i+1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", pairs[i], err)
		}
		out = append(out, v)
	}
	return out, nil
}

func parseCount(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// workbooks hand numeric cells over as "3.0"
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, fmt.Errorf("item_count: %w", core.ErrInvalidItemCount)
		}
		n = int(f)
	}
	if n < 0 {
		return 0, fmt.Errorf("item_count: %w", core.ErrInvalidItemCount)
	}
	return n, nil
}

// ParseDate accepts YYYY-MM-DD or RFC 3339.
func ParseDate(s string) (time.Time, error) {
	return parseDate(s)
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, core.ErrInvalidDate
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", core.ErrInvalidDate, s)
}
