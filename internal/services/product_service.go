package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"shiire/internal/amqp"
	"shiire/internal/core"
	"shiire/internal/storage"
)

// ProductService registers products and tracks them through listing and sale.
type ProductService struct {
	repo     storage.Repository
	notifier *Notifier
	now      func() time.Time
}

func NewProductService(repo storage.Repository, notifier *Notifier) *ProductService {
	return &ProductService{repo: repo, notifier: notifier, now: func() time.Time { return time.Now().UTC() }}
}

// ListProducts returns every product, optionally restricted to one status.
func (s *ProductService) ListProducts(ctx context.Context, status core.ProductStatus) ([]core.Product, error) {
	all, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return all, nil
	}
	out := make([]core.Product, 0, len(all))
	for _, p := range all {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *ProductService) GetProduct(ctx context.Context, id string) (core.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *ProductService) CreateProduct(ctx context.Context, form ProductForm) (core.Product, error) {
	now := s.now()
	p := core.Product{ID: core.NewID(), CreatedAt: now, UpdatedAt: now}
	if err := form.Apply(&p, now); err != nil {
		return core.Product{}, err
	}
	sessionID, err := s.sessionOf(ctx, p.StorePurchaseID)
	if err != nil {
		return core.Product{}, err
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return core.Product{}, fmt.Errorf("save product: %w", err)
	}
	s.notifier.SessionChanged(ctx, sessionID, amqp.ActionUpsert)
	return p, nil
}

func (s *ProductService) UpdateProduct(ctx context.Context, id string, form ProductForm) (core.Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return core.Product{}, err
	}
	before := s.lookupSession(ctx, p.StorePurchaseID)

	now := s.now()
	if err := form.Apply(&p, now); err != nil {
		return core.Product{}, err
	}
	after, err := s.sessionOf(ctx, p.StorePurchaseID)
	if err != nil {
		return core.Product{}, err
	}
	p.UpdatedAt = now
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return core.Product{}, fmt.Errorf("save product: %w", err)
	}

	s.notifier.SessionChanged(ctx, after, amqp.ActionUpsert)
	if before != after {
		s.notifier.SessionChanged(ctx, before, amqp.ActionUpsert)
	}
	return p, nil
}

func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	sessionID := s.lookupSession(ctx, p.StorePurchaseID)
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.notifier.SessionChanged(ctx, sessionID, amqp.ActionUpsert)
	return nil
}

// sessionOf resolves the session a product is linked to. An unknown
// purchase id is rejected.
func (s *ProductService) sessionOf(ctx context.Context, purchaseID *string) (string, error) {
	if purchaseID == nil {
		return "", nil
	}
	pur, err := s.repo.GetPurchase(ctx, *purchaseID)
	if err != nil {
		return "", fmt.Errorf("store purchase %s: %w", *purchaseID, err)
	}
	return pur.SessionID, nil
}

// lookupSession is sessionOf for rows already stored, where a dangling link
// only means there is nothing to notify.
func (s *ProductService) lookupSession(ctx context.Context, purchaseID *string) string {
	id, err := s.sessionOf(ctx, purchaseID)
	if err != nil {
		slog.WarnContext(ctx, "Could not resolve product session", "purchase_id", *purchaseID, "error", err)
	}
	return id
}
