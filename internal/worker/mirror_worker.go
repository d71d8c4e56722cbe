// Package worker keeps the session sheet mirror in step with the database.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"shiire/internal/amqp"
	"shiire/internal/core"
	"shiire/internal/services"
	"shiire/internal/sheets"
)

const defaultMirrorTimeout = 30 * time.Second

// Analyzer computes the per-store breakdown of one session.
type Analyzer interface {
	AnalyzeSession(ctx context.Context, sessionID string) (services.SessionAnalysis, error)
}

// SessionLister lists the sessions a full reconcile walks over.
type SessionLister interface {
	ListSessions(ctx context.Context, status core.SessionStatus) ([]core.PurchaseSession, error)
}

// MirrorWorker applies session change messages to a sheets.SessionMirror.
type MirrorWorker struct {
	analyzer Analyzer
	sessions SessionLister
	mirror   sheets.SessionMirror
	timeout  time.Duration

	mu       sync.Mutex
	versions map[string]int64
}

func NewMirrorWorker(analyzer Analyzer, sessions SessionLister, mirror sheets.SessionMirror) *MirrorWorker {
	return &MirrorWorker{
		analyzer: analyzer,
		sessions: sessions,
		mirror:   mirror,
		timeout:  defaultMirrorTimeout,
		versions: map[string]int64{},
	}
}

// HandleSessionChanged processes a single session change message from AMQP.
// Messages older than the last one applied for the same session are dropped.
// A returned error makes the consumer requeue the message.
func (w *MirrorWorker) HandleSessionChanged(ctx context.Context, msg *amqp.SessionChangedMessage) error {
	if msg.SessionID == "" {
		slog.WarnContext(ctx, "Dropping session change without session id")
		return nil
	}
	if w.stale(msg.SessionID, msg.Version) {
		slog.DebugContext(ctx, "Dropping stale session change",
			"session_id", msg.SessionID,
			"version", msg.Version)
		return nil
	}

	slog.InfoContext(ctx, "Processing session change",
		"session_id", msg.SessionID,
		"action", msg.Action,
		"version", msg.Version)

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	var err error
	if msg.Action == amqp.ActionDelete {
		err = w.remove(ctx, msg.SessionID)
	} else {
		err = w.MirrorSession(ctx, msg.SessionID)
	}
	if err != nil {
		return err
	}
	if msg.Action == amqp.ActionDelete {
		// a late upsert finds the session gone and removes rows again
		w.forget(msg.SessionID)
		return nil
	}
	w.applied(msg.SessionID, msg.Version)
	return nil
}

// MirrorSession recomputes one session and replaces its rows. A session
// that no longer exists has its rows removed instead.
func (w *MirrorWorker) MirrorSession(ctx context.Context, sessionID string) error {
	a, err := w.analyzer.AnalyzeSession(ctx, sessionID)
	if errors.Is(err, core.ErrNotFound) {
		slog.InfoContext(ctx, "Session gone, removing mirrored rows", "session_id", sessionID)
		return w.remove(ctx, sessionID)
	}
	if err != nil {
		return fmt.Errorf("analyze session: %w", err)
	}
	if err := w.mirror.ReplaceSession(ctx, a.Session, a.Stores); err != nil {
		return fmt.Errorf("mirror session: %w", err)
	}
	return nil
}

func (w *MirrorWorker) remove(ctx context.Context, sessionID string) error {
	if err := w.mirror.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("delete mirrored session: %w", err)
	}
	return nil
}

// ReconcileAll mirrors every session. It recovers from messages lost while
// the worker or the broker was down. Per-session failures are logged and
// counted; the walk continues.
func (w *MirrorWorker) ReconcileAll(ctx context.Context) (synced, failed int, err error) {
	sessions, err := w.sessions.ListSessions(ctx, "")
	if err != nil {
		return 0, 0, fmt.Errorf("list sessions: %w", err)
	}
	for _, s := range sessions {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}
		sctx, cancel := context.WithTimeout(ctx, w.timeout)
		err := w.MirrorSession(sctx, s.ID)
		cancel()
		if err != nil {
			slog.ErrorContext(ctx, "Failed to reconcile session", "session_id", s.ID, "error", err)
			failed++
			continue
		}
		synced++
	}
	slog.InfoContext(ctx, "Reconcile completed",
		"total", len(sessions),
		"synced", synced,
		"errors", failed)
	return synced, failed, nil
}

func (w *MirrorWorker) stale(sessionID string, version int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	last, ok := w.versions[sessionID]
	return ok && version < last
}

func (w *MirrorWorker) applied(sessionID string, version int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if version > w.versions[sessionID] {
		w.versions[sessionID] = version
	}
}

func (w *MirrorWorker) forget(sessionID string) {
	w.mu.Lock()
	delete(w.versions, sessionID)
	w.mu.Unlock()
}
