package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"shiire/internal/amqp"
	"shiire/internal/analysis"
	"shiire/internal/core"
	"shiire/internal/storage"
)

// SessionService owns purchase sessions, their store purchases and stores.
type SessionService struct {
	repo     storage.Repository
	notifier *Notifier
	now      func() time.Time
}

func NewSessionService(repo storage.Repository, notifier *Notifier) *SessionService {
	return &SessionService{repo: repo, notifier: notifier, now: func() time.Time { return time.Now().UTC() }}
}

// ParseStatusFilter maps the list filter to a status. "all" and "" list
// every session.
func ParseStatusFilter(s string) (core.SessionStatus, error) {
	switch v := strings.TrimSpace(strings.ToLower(s)); v {
	case "", "all":
		return "", nil
	default:
		return core.ParseSessionStatus(v)
	}
}

// ListSessions returns the summary rows of every session matching status,
// newest first. Sessions and products load concurrently; the purchases of
// the listed sessions follow once the session ids are known.
func (s *SessionService) ListSessions(ctx context.Context, status core.SessionStatus) ([]core.SessionSummary, error) {
	var (
		sessions []core.PurchaseSession
		products []core.Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sessions, err = s.repo.ListSessions(gctx, status)
		return err
	})
	g.Go(func() error {
		var err error
		products, err = s.repo.ListProducts(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	ids := make([]string, len(sessions))
	for i, sess := range sessions {
		ids[i] = sess.ID
	}
	purchases, err := s.repo.ListPurchases(ctx, ids...)
	if err != nil {
		return nil, fmt.Errorf("load purchases: %w", err)
	}

	bySession := make(map[string][]core.StorePurchase)
	for _, p := range purchases {
		bySession[p.SessionID] = append(bySession[p.SessionID], p)
	}
	byPurchase := make(map[string][]core.Product)
	for _, p := range products {
		if p.StorePurchaseID != nil {
			byPurchase[*p.StorePurchaseID] = append(byPurchase[*p.StorePurchaseID], p)
		}
	}

	out := make([]core.SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		ps := bySession[sess.ID]
		var linked []core.Product
		for _, p := range ps {
			linked = append(linked, byPurchase[p.ID]...)
		}
		out = append(out, analysis.Summarize(sess, ps, linked))
	}
	return out, nil
}

func (s *SessionService) GetSession(ctx context.Context, id string) (core.PurchaseSession, error) {
	return s.repo.GetSession(ctx, id)
}

func (s *SessionService) CreateSession(ctx context.Context, form SessionForm) (core.PurchaseSession, error) {
	now := s.now()
	sess := core.PurchaseSession{ID: core.NewID(), CreatedAt: now, UpdatedAt: now}
	if err := form.Apply(&sess); err != nil {
		return core.PurchaseSession{}, err
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return core.PurchaseSession{}, fmt.Errorf("save session: %w", err)
	}
	s.notifier.SessionChanged(ctx, sess.ID, amqp.ActionUpsert)
	return sess, nil
}

func (s *SessionService) UpdateSession(ctx context.Context, id string, form SessionForm) (core.PurchaseSession, error) {
	sess, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return core.PurchaseSession{}, err
	}
	if err := form.Apply(&sess); err != nil {
		return core.PurchaseSession{}, err
	}
	sess.UpdatedAt = s.now()
	if err := s.repo.UpdateSession(ctx, sess); err != nil {
		return core.PurchaseSession{}, fmt.Errorf("save session: %w", err)
	}
	s.notifier.SessionChanged(ctx, sess.ID, amqp.ActionUpsert)
	return sess, nil
}

// DeleteSession removes a session and its store purchases. The caller must
// confirm explicitly.
func (s *SessionService) DeleteSession(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return core.ErrConfirmationRequired
	}
	if err := s.repo.DeleteSession(ctx, id); err != nil {
		return err
	}
	s.notifier.SessionChanged(ctx, id, amqp.ActionDelete)
	return nil
}

func (s *SessionService) ListPurchases(ctx context.Context, sessionID string) ([]core.StorePurchase, error) {
	if _, err := s.repo.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.repo.ListPurchases(ctx, sessionID)
}

// AddPurchase records a store purchase on a session, creating the store by
// name when the form carries no store id.
func (s *SessionService) AddPurchase(ctx context.Context, sessionID string, form PurchaseForm) (core.StorePurchase, error) {
	if _, err := s.repo.GetSession(ctx, sessionID); err != nil {
		return core.StorePurchase{}, err
	}
	p := core.StorePurchase{ID: core.NewID(), SessionID: sessionID, CreatedAt: s.now()}
	if err := form.apply(&p); err != nil {
		return core.StorePurchase{}, err
	}
	storeID, err := s.resolveStore(ctx, form)
	if err != nil {
		return core.StorePurchase{}, err
	}
	p.StoreID = storeID
	if err := p.Validate(); err != nil {
		return core.StorePurchase{}, err
	}
	if err := s.repo.CreatePurchase(ctx, p); err != nil {
		return core.StorePurchase{}, fmt.Errorf("save purchase: %w", err)
	}
	s.notifier.SessionChanged(ctx, sessionID, amqp.ActionUpsert)
	return p, nil
}

func (s *SessionService) UpdatePurchase(ctx context.Context, id string, form PurchaseForm) (core.StorePurchase, error) {
	p, err := s.repo.GetPurchase(ctx, id)
	if err != nil {
		return core.StorePurchase{}, err
	}
	if err := form.apply(&p); err != nil {
		return core.StorePurchase{}, err
	}
	if form.StoreID != "" || form.StoreName != "" {
		if p.StoreID, err = s.resolveStore(ctx, form); err != nil {
			return core.StorePurchase{}, err
		}
	}
	if err := p.Validate(); err != nil {
		return core.StorePurchase{}, err
	}
	if err := s.repo.UpdatePurchase(ctx, p); err != nil {
		return core.StorePurchase{}, fmt.Errorf("save purchase: %w", err)
	}
	s.notifier.SessionChanged(ctx, p.SessionID, amqp.ActionUpsert)
	return p, nil
}

func (s *SessionService) DeletePurchase(ctx context.Context, id string) error {
	p, err := s.repo.GetPurchase(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeletePurchase(ctx, id); err != nil {
		return err
	}
	s.notifier.SessionChanged(ctx, p.SessionID, amqp.ActionUpsert)
	return nil
}

func (s *SessionService) ListStores(ctx context.Context) ([]core.Store, error) {
	return s.repo.ListStores(ctx)
}

// EnsureStore returns the store with the given name, creating it if needed.
func (s *SessionService) EnsureStore(ctx context.Context, name string) (core.Store, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Store{}, core.ErrEmptyName
	}
	st, err := s.repo.FindStoreByName(ctx, name)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return core.Store{}, err
	}
	st = core.Store{ID: core.NewID(), Name: name, CreatedAt: s.now()}
	if err := s.repo.CreateStore(ctx, st); err != nil {
		return core.Store{}, fmt.Errorf("save store: %w", err)
	}
	slog.InfoContext(ctx, "Store created", "store_id", st.ID, "name", st.Name)
	return st, nil
}

func (s *SessionService) resolveStore(ctx context.Context, form PurchaseForm) (string, error) {
	if id := strings.TrimSpace(form.StoreID); id != "" {
		if _, err := s.repo.GetStore(ctx, id); err != nil {
			return "", fmt.Errorf("store %s: %w", id, err)
		}
		return id, nil
	}
	if strings.TrimSpace(form.StoreName) == "" {
		return "", core.ErrMissingStore
	}
	st, err := s.EnsureStore(ctx, form.StoreName)
	if err != nil {
		return "", err
	}
	return st.ID, nil
}
