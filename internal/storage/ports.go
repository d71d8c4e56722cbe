package storage

import (
	"context"

	"shiire/internal/core"
)

// Ports implemented by every data backend.
type (
	SessionRepository interface {
		// ListSessions returns sessions newest first. An empty status lists all.
		ListSessions(ctx context.Context, status core.SessionStatus) ([]core.PurchaseSession, error)
		GetSession(ctx context.Context, id string) (core.PurchaseSession, error)
		CreateSession(ctx context.Context, s core.PurchaseSession) error
		UpdateSession(ctx context.Context, s core.PurchaseSession) error
		// DeleteSession removes the session and its store purchases.
		DeleteSession(ctx context.Context, id string) error
	}

	PurchaseRepository interface {
		ListPurchases(ctx context.Context, sessionIDs ...string) ([]core.StorePurchase, error)
		ListPurchasesByID(ctx context.Context, ids []string) ([]core.StorePurchase, error)
		GetPurchase(ctx context.Context, id string) (core.StorePurchase, error)
		CreatePurchase(ctx context.Context, p core.StorePurchase) error
		UpdatePurchase(ctx context.Context, p core.StorePurchase) error
		DeletePurchase(ctx context.Context, id string) error
	}

	ProductRepository interface {
		ListProducts(ctx context.Context) ([]core.Product, error)
		// ListProductsByPurchase returns products linked to any of the given
		// store purchases.
		ListProductsByPurchase(ctx context.Context, purchaseIDs []string) ([]core.Product, error)
		GetProduct(ctx context.Context, id string) (core.Product, error)
		CreateProduct(ctx context.Context, p core.Product) error
		UpdateProduct(ctx context.Context, p core.Product) error
		DeleteProduct(ctx context.Context, id string) error
	}

	StoreRepository interface {
		ListStores(ctx context.Context) ([]core.Store, error)
		GetStore(ctx context.Context, id string) (core.Store, error)
		FindStoreByName(ctx context.Context, name string) (core.Store, error)
		CreateStore(ctx context.Context, s core.Store) error
	}

	// Repository is the full data backend.
	Repository interface {
		SessionRepository
		PurchaseRepository
		ProductRepository
		StoreRepository
		Ping(ctx context.Context) error
		Close() error
	}
)
