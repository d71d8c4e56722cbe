package view

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"shiire/internal/amqp"
	"shiire/internal/cache"
)

// Registry holds the live view states. Idle views expire after the TTL and
// the least recently used view is dropped once the registry is full.
type Registry struct {
	mu     sync.Mutex
	states *cache.LRUCache[*State]
}

func NewRegistry(maxViews int, ttl time.Duration) *Registry {
	states := cache.NewLRUCache[*State](maxViews, ttl)
	states.OnEvict(func(id string, _ *State) {
		slog.Debug("View state dropped", "view_id", id)
	})
	return &Registry{states: states}
}

// NewViewID returns a fresh identifier for a client view.
func NewViewID() string {
	return uuid.NewString()
}

// Get returns the state for viewID, creating it on first use. Every call
// refreshes the view's TTL.
func (r *Registry) Get(ctx context.Context, viewID string) *State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.states.Get(ctx, viewID); ok {
		r.states.Set(ctx, viewID, st)
		return st
	}
	st := NewState()
	r.states.Set(ctx, viewID, st)
	return st
}

// Invalidate drops the memoised analysis of sessionID in every live view.
// A deleted session is collapsed as well. It matches services.ChangeHook.
func (r *Registry) Invalidate(_ context.Context, sessionID, action string) {
	if sessionID == "" {
		return
	}
	deleted := action == amqp.ActionDelete
	r.states.Each(func(_ string, st *State) {
		st.Invalidate(sessionID, deleted)
	})
}

// Cleaner exposes the underlying cache for periodic expiry sweeps.
func (r *Registry) Cleaner() cache.Cleaner {
	return r.states
}

func (r *Registry) Size(ctx context.Context) int {
	return r.states.Size(ctx)
}
