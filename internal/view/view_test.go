package view

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"shiire/internal/amqp"
	"shiire/internal/core"
	"shiire/internal/services"
)

type countingAnalyzer struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (a *countingAnalyzer) AnalyzeSession(_ context.Context, id string) (services.SessionAnalysis, error) {
	a.calls.Add(1)
	time.Sleep(a.delay)
	if a.err != nil {
		return services.SessionAnalysis{}, a.err
	}
	return services.SessionAnalysis{Session: core.PurchaseSession{ID: id}}, nil
}

func TestExpandComputesOncePerView(t *testing.T) {
	ctx := context.Background()
	a := &countingAnalyzer{}
	st := NewState()

	res, err := st.Expand(ctx, "s1", a)
	if err != nil || res.Session.ID != "s1" {
		t.Fatalf("Expand = %+v, %v", res, err)
	}
	st.Collapse("s1")
	if st.IsExpanded("s1") {
		t.Fatal("s1 should be collapsed")
	}
	if _, err := st.Expand(ctx, "s1", a); err != nil {
		t.Fatal(err)
	}
	if n := a.calls.Load(); n != 1 {
		t.Fatalf("analysis ran %d times, want 1", n)
	}

	st.Invalidate("s1", false)
	if _, err := st.Expand(ctx, "s1", a); err != nil {
		t.Fatal(err)
	}
	if n := a.calls.Load(); n != 2 {
		t.Fatalf("analysis ran %d times after invalidation, want 2", n)
	}
}

func TestConcurrentExpandSharesComputation(t *testing.T) {
	a := &countingAnalyzer{delay: 20 * time.Millisecond}
	st := NewState()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := st.Expand(context.Background(), "s1", a); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if n := a.calls.Load(); n != 1 {
		t.Fatalf("analysis ran %d times, want 1", n)
	}
}

func TestExpandFailureLeavesStateUnchanged(t *testing.T) {
	a := &countingAnalyzer{err: errors.New("db down")}
	st := NewState()

	if _, err := st.Expand(context.Background(), "s1", a); err == nil {
		t.Fatal("expected error")
	}
	if st.IsExpanded("s1") {
		t.Fatal("failed expand must not mark the session expanded")
	}
	if _, ok := st.Cached("s1"); ok {
		t.Fatal("failed expand must not be memoised")
	}
}

func TestToggle(t *testing.T) {
	a := &countingAnalyzer{}
	st := NewState()
	ctx := context.Background()

	for i, want := range []bool{true, false, true} {
		got, err := st.Toggle(ctx, "s1", a)
		if err != nil || got != want {
			t.Fatalf("toggle %d = %v, %v", i, got, err)
		}
	}
	if ids := st.Expanded(); len(ids) != 1 || ids[0] != "s1" {
		t.Fatalf("Expanded = %v", ids)
	}
}

func TestRegistryInvalidatesEveryView(t *testing.T) {
	ctx := context.Background()
	a := &countingAnalyzer{}
	r := NewRegistry(10, time.Minute)

	v1, v2 := r.Get(ctx, "v1"), r.Get(ctx, "v2")
	if r.Get(ctx, "v1") != v1 {
		t.Fatal("Get should return the same state for a view id")
	}
	v1.Expand(ctx, "s1", a)
	v2.Expand(ctx, "s1", a)
	if n := a.calls.Load(); n != 2 {
		t.Fatalf("views should not share memo, calls = %d", n)
	}

	r.Invalidate(ctx, "s1", amqp.ActionUpsert)
	if _, ok := v1.Cached("s1"); ok {
		t.Fatal("v1 memo should be gone")
	}
	if !v2.IsExpanded("s1") {
		t.Fatal("an update must not collapse the session")
	}

	r.Invalidate(ctx, "s1", amqp.ActionDelete)
	if v2.IsExpanded("s1") {
		t.Fatal("a deleted session should be collapsed")
	}
	if r.Size(ctx) != 2 {
		t.Fatalf("Size = %d", r.Size(ctx))
	}
}

func TestRegistryEvictsOldViews(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(2, time.Minute)
	first := r.Get(ctx, "a")
	r.Get(ctx, "b")
	r.Get(ctx, "c")
	if r.Get(ctx, "a") == first {
		t.Fatal("least recently used view should have been replaced")
	}
	if NewViewID() == NewViewID() {
		t.Fatal("view ids should be unique")
	}
}

// gatedAnalyzer blocks its first call until release is closed and titles
// each result with the call number.
type gatedAnalyzer struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (a *gatedAnalyzer) AnalyzeSession(_ context.Context, id string) (services.SessionAnalysis, error) {
	n := a.calls.Add(1)
	if n == 1 {
		close(a.started)
		<-a.release
	}
	title := "first"
	if n > 1 {
		title = "second"
	}
	return services.SessionAnalysis{Session: core.PurchaseSession{ID: id, Title: title}}, nil
}

func TestInvalidateDuringComputationDropsResult(t *testing.T) {
	ctx := context.Background()
	a := &gatedAnalyzer{started: make(chan struct{}), release: make(chan struct{})}
	st := NewState()

	done := make(chan error, 1)
	go func() {
		_, err := st.Expand(ctx, "s1", a)
		done <- err
	}()
	<-a.started
	st.Invalidate("s1", false)
	close(a.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	if _, ok := st.Cached("s1"); ok {
		t.Fatal("result computed before invalidation was cached")
	}
	res, err := st.Expand(ctx, "s1", a)
	if err != nil {
		t.Fatal(err)
	}
	if n := a.calls.Load(); n != 2 {
		t.Fatalf("analysis ran %d times, want 2", n)
	}
	if res.Session.Title != "second" {
		t.Errorf("title = %q, want second", res.Session.Title)
	}
}
