package cache

import (
	"context"
	"log/slog"
	"time"
)

// Cache is a string-keyed cache of T. Implementations are safe for
// concurrent use. A miss and a backend failure look the same to callers.
type Cache[T any] interface {
	Get(ctx context.Context, key string) (T, bool)
	Set(ctx context.Context, key string, data T)
	Delete(ctx context.Context, key string)
	// Purge drops every entry.
	Purge(ctx context.Context)
	Size(ctx context.Context) int
}

// Cleaner is implemented by caches that need periodic expiry sweeps.
type Cleaner interface {
	CleanExpired() int
}

// Manager runs CleanExpired on registered caches at a fixed interval.
type Manager struct {
	caches      []namedCleaner
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

type namedCleaner struct {
	name string
	c    Cleaner
}

func NewManager() *Manager {
	return &Manager{
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

func (m *Manager) Register(name string, c Cleaner) {
	m.caches = append(m.caches, namedCleaner{name: name, c: c})
}

func (m *Manager) StartCleanup(interval time.Duration) {
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, nc := range m.caches {
				if n := nc.c.CleanExpired(); n > 0 {
					slog.Debug("Expired cache entries removed", "cache", nc.name, "count", n)
				}
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop ends the cleanup loop. It must only be called after StartCleanup.
func (m *Manager) Stop() {
	close(m.stopCleanup)
	<-m.cleanupDone
}
