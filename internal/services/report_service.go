package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"shiire/internal/analysis"
	"shiire/internal/cache"
	"shiire/internal/core"
	"shiire/internal/storage"
)

// ReportService builds date-range business reports and caches them by range.
type ReportService struct {
	repo           storage.Repository
	cache          cache.Cache[core.Report]
	feeRate        decimal.Decimal
	slowMovingDays int
	now            func() time.Time
}

// NewReportService accepts a nil cache, in which case every call recomputes.
func NewReportService(repo storage.Repository, c cache.Cache[core.Report], feeRate decimal.Decimal, slowMovingDays int) *ReportService {
	return &ReportService{
		repo:           repo,
		cache:          c,
		feeRate:        feeRate,
		slowMovingDays: slowMovingDays,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Report returns the report for [from, to]. from must not be after to.
func (s *ReportService) Report(ctx context.Context, from, to time.Time) (core.Report, error) {
	if to.Before(from) {
		return core.Report{}, fmt.Errorf("range ends before it starts: %w", core.ErrInvalidDate)
	}
	// slow-moving ages are whole calendar days, so a cached report stays
	// exact until the date changes
	now := s.now()
	key := reportKey(from, to, now)
	if s.cache != nil {
		if rep, ok := s.cache.Get(ctx, key); ok {
			return rep, nil
		}
	}

	var (
		products []core.Product
		stores   []core.Store
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = s.repo.ListProducts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		stores, err = s.repo.ListStores(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Report{}, fmt.Errorf("load report data: %w", err)
	}

	seen := map[string]struct{}{}
	var ids []string
	for _, p := range products {
		if p.StorePurchaseID == nil {
			continue
		}
		if _, ok := seen[*p.StorePurchaseID]; !ok {
			seen[*p.StorePurchaseID] = struct{}{}
			ids = append(ids, *p.StorePurchaseID)
		}
	}
	purchases, err := s.repo.ListPurchasesByID(ctx, ids)
	if err != nil {
		return core.Report{}, fmt.Errorf("load purchases: %w", err)
	}

	purchaseStores := make(map[string]string, len(purchases))
	for _, p := range purchases {
		purchaseStores[p.ID] = p.StoreID
	}
	names := make(map[string]string, len(stores))
	for _, st := range stores {
		names[st.ID] = st.Name
	}

	rep := analysis.BuildReport(analysis.ReportInput{
		From:           from,
		To:             to,
		Now:            now,
		Products:       products,
		PurchaseStores: purchaseStores,
		StoreNames:     names,
		SlowMovingDays: s.slowMovingDays,
		FeeRate:        decimal.NewNullDecimal(s.feeRate),
	})
	if s.cache != nil {
		s.cache.Set(ctx, key, rep)
	}
	slog.DebugContext(ctx, "Report built", "from", from.Format(dateLayout), "to", to.Format(dateLayout), "sold", rep.SoldCount)
	return rep, nil
}

// Invalidate drops every cached report. It is wired as a session change hook.
func (s *ReportService) Invalidate(ctx context.Context, _, _ string) {
	if s.cache != nil {
		s.cache.Purge(ctx)
	}
}

func reportKey(from, to, now time.Time) string {
	return from.Format(dateLayout) + ":" + to.Format(dateLayout) + "@" + now.UTC().Format(dateLayout)
}
