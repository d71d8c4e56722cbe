// Package memory is an in-process implementation of the storage ports, used
// by the memory backend and by tests.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"shiire/internal/core"
)

type Store struct {
	mu        sync.RWMutex
	sessions  map[string]core.PurchaseSession
	purchases map[string]core.StorePurchase
	products  map[string]core.Product
	stores    map[string]core.Store
}

func New() *Store {
	return &Store{
		sessions:  map[string]core.PurchaseSession{},
		purchases: map[string]core.StorePurchase{},
		products:  map[string]core.Product{},
		stores:    map[string]core.Store{},
	}
}

// NewFromFiles seeds store names from base/seed_stores.txt, one per line.
// Blank lines and lines starting with # are ignored.
func NewFromFiles(base string) *Store {
	s := New()
	now := time.Now().UTC()
	for _, name := range readLines(filepath.Join(base, "seed_stores.txt")) {
		st := core.Store{ID: core.NewID(), Name: name, CreatedAt: now}
		s.stores[st.ID] = st
	}
	return s
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) ListSessions(_ context.Context, status core.SessionStatus) ([]core.PurchaseSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []core.PurchaseSession{}
	for _, v := range s.sessions {
		if status == "" || v.Status == status {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SessionDate.Equal(out[j].SessionDate) {
			return out[i].SessionDate.After(out[j].SessionDate)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) GetSession(_ context.Context, id string) (core.PurchaseSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.sessions[id]
	if !ok {
		return v, fmt.Errorf("get session: %w", core.ErrNotFound)
	}
	return v, nil
}

func (s *Store) CreateSession(_ context.Context, v core.PurchaseSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[v.ID]; ok {
		return fmt.Errorf("create session: duplicate id %s", v.ID)
	}
	s.sessions[v.ID] = v
	return nil
}

func (s *Store) UpdateSession(_ context.Context, v core.PurchaseSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.sessions[v.ID]
	if !ok {
		return fmt.Errorf("update session: %w", core.ErrNotFound)
	}
	v.CreatedAt = old.CreatedAt
	s.sessions[v.ID] = v
	return nil
}

// DeleteSession cascades to store purchases and unlinks their products,
// matching the SQLite foreign keys.
func (s *Store) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("delete session: %w", core.ErrNotFound)
	}
	delete(s.sessions, id)
	for pid, p := range s.purchases {
		if p.SessionID == id {
			s.deletePurchaseLocked(pid)
		}
	}
	return nil
}

func (s *Store) ListPurchases(_ context.Context, sessionIDs ...string) ([]core.StorePurchase, error) {
	want := set(sessionIDs)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []core.StorePurchase{}
	for _, p := range s.purchases {
		if _, ok := want[p.SessionID]; ok {
			out = append(out, p)
		}
	}
	sortPurchases(out)
	return out, nil
}

func (s *Store) ListPurchasesByID(_ context.Context, ids []string) ([]core.StorePurchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []core.StorePurchase{}
	for _, id := range ids {
		if p, ok := s.purchases[id]; ok {
			out = append(out, p)
		}
	}
	sortPurchases(out)
	return out, nil
}

func (s *Store) GetPurchase(_ context.Context, id string) (core.StorePurchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.purchases[id]
	if !ok {
		return p, fmt.Errorf("get purchase: %w", core.ErrNotFound)
	}
	return p, nil
}

func (s *Store) CreatePurchase(_ context.Context, p core.StorePurchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[p.SessionID]; !ok {
		return fmt.Errorf("create purchase: session %s: %w", p.SessionID, core.ErrNotFound)
	}
	if _, ok := s.stores[p.StoreID]; !ok {
		return fmt.Errorf("create purchase: store %s: %w", p.StoreID, core.ErrNotFound)
	}
	s.purchases[p.ID] = p
	return nil
}

func (s *Store) UpdatePurchase(_ context.Context, p core.StorePurchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.purchases[p.ID]
	if !ok {
		return fmt.Errorf("update purchase: %w", core.ErrNotFound)
	}
	p.SessionID = old.SessionID
	p.CreatedAt = old.CreatedAt
	s.purchases[p.ID] = p
	return nil
}

func (s *Store) DeletePurchase(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.purchases[id]; !ok {
		return fmt.Errorf("delete purchase: %w", core.ErrNotFound)
	}
	s.deletePurchaseLocked(id)
	return nil
}

func (s *Store) deletePurchaseLocked(id string) {
	delete(s.purchases, id)
	for pid, p := range s.products {
		if p.BelongsTo(id) {
			p.StorePurchaseID = nil
			s.products[pid] = p
		}
	}
}

func (s *Store) ListProducts(_ context.Context) ([]core.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sortProducts(out)
	return out, nil
}

func (s *Store) ListProductsByPurchase(_ context.Context, purchaseIDs []string) ([]core.Product, error) {
	want := set(purchaseIDs)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []core.Product{}
	for _, p := range s.products {
		if p.StorePurchaseID == nil {
			continue
		}
		if _, ok := want[*p.StorePurchaseID]; ok {
			out = append(out, p)
		}
	}
	sortProducts(out)
	return out, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (core.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return p, fmt.Errorf("get product: %w", core.ErrNotFound)
	}
	return p, nil
}

func (s *Store) CreateProduct(_ context.Context, p core.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.StorePurchaseID != nil {
		if _, ok := s.purchases[*p.StorePurchaseID]; !ok {
			return fmt.Errorf("create product: purchase %s: %w", *p.StorePurchaseID, core.ErrNotFound)
		}
	}
	s.products[p.ID] = p
	return nil
}

func (s *Store) UpdateProduct(_ context.Context, p core.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.products[p.ID]
	if !ok {
		return fmt.Errorf("update product: %w", core.ErrNotFound)
	}
	p.CreatedAt = old.CreatedAt
	s.products[p.ID] = p
	return nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return fmt.Errorf("delete product: %w", core.ErrNotFound)
	}
	delete(s.products, id)
	return nil
}

func (s *Store) ListStores(_ context.Context) ([]core.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Store, 0, len(s.stores))
	for _, v := range s.stores {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetStore(_ context.Context, id string) (core.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.stores[id]
	if !ok {
		return v, fmt.Errorf("get store: %w", core.ErrNotFound)
	}
	return v, nil
}

func (s *Store) FindStoreByName(_ context.Context, name string) (core.Store, error) {
	name = strings.TrimSpace(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.stores {
		if strings.EqualFold(v.Name, name) {
			return v, nil
		}
	}
	return core.Store{}, fmt.Errorf("find store: %w", core.ErrNotFound)
}

func (s *Store) CreateStore(_ context.Context, v core.Store) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.stores {
		if existing.Name == v.Name {
			return fmt.Errorf("create store: name %q already exists", v.Name)
		}
	}
	s.stores[v.ID] = v
	return nil
}

func set(ids []string) map[string]struct{} {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

func sortPurchases(p []core.StorePurchase) {
	sort.Slice(p, func(i, j int) bool {
		if !p[i].CreatedAt.Equal(p[j].CreatedAt) {
			return p[i].CreatedAt.Before(p[j].CreatedAt)
		}
		return p[i].ID < p[j].ID
	})
}

func sortProducts(p []core.Product) {
	sort.Slice(p, func(i, j int) bool {
		if !p[i].CreatedAt.Equal(p[j].CreatedAt) {
			return p[i].CreatedAt.Before(p[j].CreatedAt)
		}
		return p[i].ID < p[j].ID
	})
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	seen := map[string]struct{}{}
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
