package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"shiire/internal/core"
	"shiire/internal/services"
)

const dateLayout = "2006-01-02"

// RequestBodyParser reads a JSON or form encoded body once and exposes its
// fields as trimmed strings, whatever their JSON type.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads at most maxBodyBytes of the request body.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{contentType: r.Header.Get("Content-Type")}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse decodes the body as JSON when it looks like an object, and as a
// form otherwise.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true
	if p.err != nil {
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}
	if trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		if err := dec.Decode(&p.jsonData); err != nil {
			p.err = fmt.Errorf("decode JSON body: %w", err)
		}
		return p.err
	}
	if trimmed[0] == '[' {
		p.err = errors.New("request body must be an object")
		return p.err
	}
	p.formData, p.err = url.ParseQuery(string(trimmed))
	return p.err
}

// Get returns a field as a sanitized string.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// GetStrings returns a list field: a JSON array or a repeated form key.
// Empty entries are dropped.
func (p *RequestBodyParser) GetStrings(key string) []string {
	var raw []string
	switch {
	case p.jsonData != nil:
		switch v := p.jsonData[key].(type) {
		case []any:
			for _, item := range v {
				raw = append(raw, stringValue(item))
			}
		case nil:
		default:
			raw = append(raw, stringValue(v))
		}
	case p.formData != nil:
		raw = p.formData[key]
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = sanitizeInput(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput trims and strips control characters except tab and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// parseBody reads and parses the request body, writing a 400 on failure.
func parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		BadRequestError("invalid request body: " + err.Error()).Write(w)
		return nil, false
	}
	return p, true
}

func sessionForm(p *RequestBodyParser) services.SessionForm {
	return services.SessionForm{
		Title:              p.Get("title"),
		SessionDate:        p.Get("session_date"),
		Status:             p.Get("status"),
		TransportationCost: p.Get("transportation_cost"),
		TransferFee:        p.Get("transfer_fee"),
		AgencyFee:          p.Get("agency_fee"),
		Notes:              p.Get("notes"),
	}
}

func purchaseForm(p *RequestBodyParser) services.PurchaseForm {
	return services.PurchaseForm{
		StoreID:       p.Get("store_id"),
		StoreName:     p.Get("store_name"),
		ItemCount:     p.Get("item_count"),
		ProductAmount: p.Get("product_amount"),
		ShippingCost:  p.Get("shipping_cost"),
		CommissionFee: p.Get("commission_fee"),
	}
}

func productForm(p *RequestBodyParser) services.ProductForm {
	return services.ProductForm{
		StorePurchaseID: p.Get("store_purchase_id"),
		Name:            p.Get("name"),
		Category:        p.Get("category"),
		Status:          p.Get("status"),
		PurchasePrice:   p.Get("purchase_price"),
		ListingPrice:    p.Get("listing_price"),
		SoldPrice:       p.Get("sold_price"),
		PlatformFee:     p.Get("platform_fee"),
		ShippingCost:    p.Get("shipping_cost"),
		Photos:          p.GetStrings("photos"),
		SoldAt:          p.Get("sold_at"),
	}
}

// DateRange is an inclusive report range.
type DateRange struct {
	From time.Time
	To   time.Time
}

// ParseDateRange reads from and to (YYYY-MM-DD). Missing values default to
// the first day of the current month and today.
func ParseDateRange(query url.Values, now time.Time) (DateRange, error) {
	now = now.UTC()
	rng := DateRange{
		From: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
	}
	if v := strings.TrimSpace(query.Get("from")); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return DateRange{}, fmt.Errorf("from %q: %w", v, core.ErrInvalidDate)
		}
		rng.From = t
	}
	if v := strings.TrimSpace(query.Get("to")); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return DateRange{}, fmt.Errorf("to %q: %w", v, core.ErrInvalidDate)
		}
		rng.To = t
	}
	if rng.To.Before(rng.From) {
		return DateRange{}, fmt.Errorf("range ends before it starts: %w", core.ErrInvalidDate)
	}
	return rng, nil
}

// ParseConfirm reports whether ?confirm= holds a true value.
func ParseConfirm(query url.Values) bool {
	ok, err := strconv.ParseBool(strings.TrimSpace(query.Get("confirm")))
	return err == nil && ok
}
