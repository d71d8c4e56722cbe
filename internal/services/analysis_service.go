package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"shiire/internal/analysis"
	"shiire/internal/core"
	"shiire/internal/storage"
)

const defaultStoreWorkers = 4

// AnalysisService loads what a session breakdown needs and hands it to the
// pure functions in package analysis.
type AnalysisService struct {
	repo    storage.Repository
	feeRate decimal.Decimal
	workers int
}

func NewAnalysisService(repo storage.Repository, feeRate decimal.Decimal) *AnalysisService {
	return &AnalysisService{repo: repo, feeRate: feeRate, workers: defaultStoreWorkers}
}

// SessionAnalysis is the expanded view of one session.
type SessionAnalysis struct {
	Session      core.PurchaseSession `json:"session"`
	Stores       []core.StoreAnalysis `json:"stores"`
	Registration core.Registration    `json:"registration"`
}

// AnalyzeSession returns the per-store breakdown. Store products are loaded
// concurrently; a store whose products fail to load is logged and left out
// while the other stores are still returned.
func (s *AnalysisService) AnalyzeSession(ctx context.Context, sessionID string) (SessionAnalysis, error) {
	var (
		sess      core.PurchaseSession
		purchases []core.StorePurchase
		stores    []core.Store
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sess, err = s.repo.GetSession(gctx, sessionID)
		return err
	})
	g.Go(func() error {
		var err error
		purchases, err = s.repo.ListPurchases(gctx, sessionID)
		return err
	})
	g.Go(func() error {
		var err error
		stores, err = s.repo.ListStores(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return SessionAnalysis{}, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	byStore := make(map[string][]string)
	var order []string
	for _, p := range purchases {
		if _, ok := byStore[p.StoreID]; !ok {
			order = append(order, p.StoreID)
		}
		byStore[p.StoreID] = append(byStore[p.StoreID], p.ID)
	}

	var (
		mu       sync.Mutex
		products = make(map[string][]core.Product, len(order))
		linked   []core.Product
	)
	sg := new(errgroup.Group)
	sg.SetLimit(s.workers)
	for _, storeID := range order {
		ids := byStore[storeID]
		sg.Go(func() error {
			ps, err := s.repo.ListProductsByPurchase(ctx, ids)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to load store products, skipping store",
					"session_id", sessionID,
					"store_id", storeID,
					"error", err)
				return nil
			}
			mu.Lock()
			products[storeID] = ps
			linked = append(linked, ps...)
			mu.Unlock()
			return nil
		})
	}
	sg.Wait()

	names := make(map[string]string, len(stores))
	for _, st := range stores {
		names[st.ID] = st.Name
	}

	return SessionAnalysis{
		Session: sess,
		Stores: analysis.AnalyzeSession(analysis.SessionInput{
			Session:    sess,
			Purchases:  purchases,
			Products:   products,
			StoreNames: names,
			FeeRate:    decimal.NewNullDecimal(s.feeRate),
		}),
		Registration: analysis.Registration(purchases, linked),
	}, nil
}

// Registration returns only the registration metrics of a session.
func (s *AnalysisService) Registration(ctx context.Context, sessionID string) (core.Registration, error) {
	if _, err := s.repo.GetSession(ctx, sessionID); err != nil {
		return core.Registration{}, err
	}
	purchases, err := s.repo.ListPurchases(ctx, sessionID)
	if err != nil {
		return core.Registration{}, fmt.Errorf("load purchases: %w", err)
	}
	ids := make([]string, len(purchases))
	for i, p := range purchases {
		ids[i] = p.ID
	}
	products, err := s.repo.ListProductsByPurchase(ctx, ids)
	if err != nil {
		return core.Registration{}, fmt.Errorf("load products: %w", err)
	}
	return analysis.Registration(purchases, products), nil
}
