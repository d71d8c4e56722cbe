// Package view keeps the per-client dashboard state: which sessions are
// expanded and the analyses already computed for them.
package view

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"shiire/internal/services"
)

// Analyzer computes the expanded view of a session.
type Analyzer interface {
	AnalyzeSession(ctx context.Context, sessionID string) (services.SessionAnalysis, error)
}

// State belongs to one view. Each session is analysed at most once per view
// until it is invalidated; concurrent expands of the same session share one
// computation.
type State struct {
	mu       sync.Mutex
	expanded map[string]struct{}
	memo     map[string]services.SessionAnalysis
	// gen counts invalidations per session; a computation only fills memo
	// when no invalidation happened while it ran.
	gen    map[string]uint64
	flight singleflight.Group
}

func NewState() *State {
	return &State{
		expanded: map[string]struct{}{},
		memo:     map[string]services.SessionAnalysis{},
		gen:      map[string]uint64{},
	}
}

// Expand marks the session expanded and returns its analysis. If the
// analysis fails the state is left as it was.
func (s *State) Expand(ctx context.Context, sessionID string, a Analyzer) (services.SessionAnalysis, error) {
	res, err := s.analysis(ctx, sessionID, a)
	if err != nil {
		slog.ErrorContext(ctx, "Session analysis failed", "session_id", sessionID, "error", err)
		return services.SessionAnalysis{}, err
	}
	s.mu.Lock()
	s.expanded[sessionID] = struct{}{}
	s.mu.Unlock()
	return res, nil
}

// Collapse hides the session but keeps its analysis for the next expand.
func (s *State) Collapse(sessionID string) {
	s.mu.Lock()
	delete(s.expanded, sessionID)
	s.mu.Unlock()
}

// Toggle flips the session and reports whether it is now expanded.
func (s *State) Toggle(ctx context.Context, sessionID string, a Analyzer) (bool, error) {
	if s.IsExpanded(sessionID) {
		s.Collapse(sessionID)
		return false, nil
	}
	if _, err := s.Expand(ctx, sessionID, a); err != nil {
		return false, err
	}
	return true, nil
}

func (s *State) IsExpanded(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.expanded[sessionID]
	return ok
}

// Expanded lists expanded session ids in sorted order.
func (s *State) Expanded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.expanded))
	for id := range s.expanded {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Cached returns the memoised analysis without computing it.
func (s *State) Cached(sessionID string) (services.SessionAnalysis, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.memo[sessionID]
	return res, ok
}

// Invalidate forgets the analysis of a session. A deleted session is also
// collapsed.
func (s *State) Invalidate(sessionID string, deleted bool) {
	s.mu.Lock()
	delete(s.memo, sessionID)
	s.gen[sessionID]++
	if deleted {
		delete(s.expanded, sessionID)
	}
	s.mu.Unlock()
	s.flight.Forget(sessionID)
}

func (s *State) analysis(ctx context.Context, sessionID string, a Analyzer) (services.SessionAnalysis, error) {
	if res, ok := s.Cached(sessionID); ok {
		return res, nil
	}
	v, err, _ := s.flight.Do(sessionID, func() (any, error) {
		if res, ok := s.Cached(sessionID); ok {
			return res, nil
		}
		s.mu.Lock()
		gen := s.gen[sessionID]
		s.mu.Unlock()
		res, err := a.AnalyzeSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		if s.gen[sessionID] == gen {
			s.memo[sessionID] = res
		}
		s.mu.Unlock()
		return res, nil
	})
	if err != nil {
		return services.SessionAnalysis{}, err
	}
	return v.(services.SessionAnalysis), nil
}
