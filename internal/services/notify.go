package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"shiire/internal/amqp"
)

// Publisher sends session change events to the mirror worker.
type Publisher interface {
	PublishSessionChanged(ctx context.Context, msg *amqp.SessionChangedMessage) error
}

// ChangeHook is called after a session or one of its children changed.
// sessionID is empty when the change touched no session, such as a product
// without a store purchase.
type ChangeHook func(ctx context.Context, sessionID, action string)

// Notifier fans a session change out to in-process hooks and, when
// configured, to AMQP. Publishing is best-effort: the change is already
// stored, so a broker failure is only logged.
type Notifier struct {
	publisher Publisher

	mu    sync.RWMutex
	hooks []ChangeHook
}

// NewNotifier accepts a nil publisher, in which case events stay in process.
func NewNotifier(publisher Publisher) *Notifier {
	return &Notifier{publisher: publisher}
}

func (n *Notifier) OnChange(h ChangeHook) {
	n.mu.Lock()
	n.hooks = append(n.hooks, h)
	n.mu.Unlock()
}

// SessionChanged runs every hook, then publishes. Only the publish is
// skipped for an empty session id; the mirror has nothing to update.
func (n *Notifier) SessionChanged(ctx context.Context, sessionID, action string) {
	if n == nil {
		return
	}
	n.mu.RLock()
	hooks := append([]ChangeHook(nil), n.hooks...)
	n.mu.RUnlock()
	for _, h := range hooks {
		h(ctx, sessionID, action)
	}

	if sessionID == "" {
		return
	}
	if n.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not configured, skipping session change message", "session_id", sessionID)
		return
	}
	msg := amqp.NewSessionChangedMessage(sessionID, action, time.Now().UnixMilli())
	if err := n.publisher.PublishSessionChanged(ctx, msg); err != nil {
		slog.WarnContext(ctx, "Failed to publish session change",
			"session_id", sessionID,
			"action", action,
			"error", err)
	}
}
