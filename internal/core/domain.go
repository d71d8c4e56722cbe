package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

const (
	ProductInStock     ProductStatus = "in_stock"
	ProductReadyToList ProductStatus = "ready_to_list"
	ProductListed      ProductStatus = "listed"
	ProductSold        ProductStatus = "sold"
	ProductOnHold      ProductStatus = "on_hold"
	ProductDiscarded   ProductStatus = "discarded"
)

type (
	SessionStatus string
	ProductStatus string

	Store struct {
		ID        string    `db:"id" json:"id"`
		Name      string    `db:"name" json:"name"`
		CreatedAt time.Time `db:"created_at" json:"created_at"`
	}

	// PurchaseSession is one buying trip. The three shared cost fields are
	// spread over its store purchases when the session is analysed.
	PurchaseSession struct {
		ID                 string          `db:"id" json:"id"`
		Title              string          `db:"title" json:"title"`
		SessionDate        time.Time       `db:"session_date" json:"session_date"`
		Status             SessionStatus   `db:"status" json:"status"`
		TransportationCost decimal.Decimal `db:"transportation_cost" json:"transportation_cost"`
		TransferFee        decimal.Decimal `db:"transfer_fee" json:"transfer_fee"`
		AgencyFee          decimal.Decimal `db:"agency_fee" json:"agency_fee"`
		Notes              string          `db:"notes" json:"notes"`
		CreatedAt          time.Time       `db:"created_at" json:"created_at"`
		UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
	}

	StorePurchase struct {
		ID            string          `db:"id" json:"id"`
		SessionID     string          `db:"session_id" json:"session_id"`
		StoreID       string          `db:"store_id" json:"store_id"`
		ItemCount     int             `db:"item_count" json:"item_count"`
		ProductAmount decimal.Decimal `db:"product_amount" json:"product_amount"`
		ShippingCost  decimal.Decimal `db:"shipping_cost" json:"shipping_cost"`
		CommissionFee decimal.Decimal `db:"commission_fee" json:"commission_fee"`
		CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	}

	Product struct {
		ID              string              `db:"id" json:"id"`
		StorePurchaseID *string             `db:"store_purchase_id" json:"store_purchase_id,omitempty"`
		Name            string              `db:"name" json:"name"`
		Category        string              `db:"category" json:"category"`
		Status          ProductStatus       `db:"status" json:"status"`
		PurchasePrice   decimal.Decimal     `db:"purchase_price" json:"purchase_price"`
		ListingPrice    decimal.Decimal     `db:"listing_price" json:"listing_price"`
		SoldPrice       decimal.Decimal     `db:"sold_price" json:"sold_price"`
		PlatformFee     decimal.NullDecimal `db:"platform_fee" json:"platform_fee"`
		ShippingCost    decimal.Decimal     `db:"shipping_cost" json:"shipping_cost"`
		Photos          PhotoList           `db:"photos" json:"photos"`
		SoldAt          *time.Time          `db:"sold_at" json:"sold_at,omitempty"`
		CreatedAt       time.Time           `db:"created_at" json:"created_at"`
		UpdatedAt       time.Time           `db:"updated_at" json:"updated_at"`
	}
)

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrNegativeAmount       = errors.New("amount cannot be negative")
	ErrEmptyTitle           = errors.New("empty title")
	ErrTitleTooLong         = errors.New("title too long (max 200 characters)")
	ErrEmptyName            = errors.New("empty name")
	ErrInvalidDate          = errors.New("invalid date")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrInvalidItemCount     = errors.New("item count cannot be negative")
	ErrMissingSession       = errors.New("missing session id")
	ErrMissingStore         = errors.New("missing store id")
	ErrConfirmationRequired = errors.New("deletion must be confirmed")
)

var validationErrors = []error{
	ErrInvalidAmount, ErrNegativeAmount, ErrEmptyTitle, ErrTitleTooLong, ErrEmptyName,
	ErrInvalidDate, ErrInvalidStatus, ErrInvalidItemCount, ErrMissingSession, ErrMissingStore,
}

// IsValidation reports whether err comes from rejected user input.
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// NewID returns a random identifier for a new row.
func NewID() string {
	return uuid.NewString()
}

// ParseSessionStatus accepts the two stored statuses; anything else is an error.
func ParseSessionStatus(s string) (SessionStatus, error) {
	switch st := SessionStatus(strings.TrimSpace(strings.ToLower(s))); st {
	case SessionActive, SessionCompleted:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

func (s SessionStatus) Valid() bool {
	return s == SessionActive || s == SessionCompleted
}

// ProductStatuses lists every product status in lifecycle order.
func ProductStatuses() []ProductStatus {
	return []ProductStatus{ProductInStock, ProductReadyToList, ProductListed, ProductSold, ProductOnHold, ProductDiscarded}
}

func ParseProductStatus(s string) (ProductStatus, error) {
	st := ProductStatus(strings.TrimSpace(strings.ToLower(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

func (s ProductStatus) Valid() bool {
	for _, v := range ProductStatuses() {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether a product has left inventory for good.
func (s ProductStatus) Terminal() bool {
	return s == ProductSold || s == ProductDiscarded
}

// SharedCost is the part of the session cost that is not tied to one store.
func (s PurchaseSession) SharedCost() decimal.Decimal {
	return s.TransportationCost.Add(s.TransferFee).Add(s.AgencyFee)
}

func (s PurchaseSession) Validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return ErrEmptyTitle
	}
	if len(s.Title) > 200 {
		return ErrTitleTooLong
	}
	if s.SessionDate.IsZero() {
		return ErrInvalidDate
	}
	if !s.Status.Valid() {
		return ErrInvalidStatus
	}
	for _, d := range []decimal.Decimal{s.TransportationCost, s.TransferFee, s.AgencyFee} {
		if d.IsNegative() {
			return ErrNegativeAmount
		}
	}
	return nil
}

// BaseAmount is what was paid at the store itself, before shared costs.
func (p StorePurchase) BaseAmount() decimal.Decimal {
	return p.ProductAmount.Add(p.ShippingCost).Add(p.CommissionFee)
}

func (p StorePurchase) Validate() error {
	if strings.TrimSpace(p.SessionID) == "" {
		return ErrMissingSession
	}
	if strings.TrimSpace(p.StoreID) == "" {
		return ErrMissingStore
	}
	if p.ItemCount < 0 {
		return ErrInvalidItemCount
	}
	for _, d := range []decimal.Decimal{p.ProductAmount, p.ShippingCost, p.CommissionFee} {
		if d.IsNegative() {
			return ErrNegativeAmount
		}
	}
	return nil
}

func (s Store) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if !p.Status.Valid() {
		return ErrInvalidStatus
	}
	for _, d := range []decimal.Decimal{p.PurchasePrice, p.ListingPrice, p.SoldPrice, p.ShippingCost} {
		if d.IsNegative() {
			return ErrNegativeAmount
		}
	}
	if p.PlatformFee.Valid && p.PlatformFee.Decimal.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

// HasPhotos reports whether at least one photo was attached.
func (p Product) HasPhotos() bool {
	return len(p.Photos) > 0
}

// BelongsTo reports whether the product was registered against the given purchase.
func (p Product) BelongsTo(purchaseID string) bool {
	return p.StorePurchaseID != nil && *p.StorePurchaseID == purchaseID
}
