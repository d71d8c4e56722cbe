package memory

import (
	"context"
	"sort"
	"sync"

	"shiire/internal/core"
	ports "shiire/internal/sheets"
)

var _ ports.SessionMirror = (*Mirror)(nil)

// Mirror keeps mirrored rows in process. It backs the worker when no
// spreadsheet is configured and doubles as a test fake.
type Mirror struct {
	mu   sync.Mutex
	rows map[string][][]string
}

func New() *Mirror {
	return &Mirror{rows: map[string][][]string{}}
}

func (m *Mirror) ReplaceSession(_ context.Context, session core.PurchaseSession, stores []core.StoreAnalysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[session.ID] = ports.Rows(session, stores)
	return nil
}

func (m *Mirror) DeleteSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, sessionID)
	return nil
}

// Rows returns a copy of the rows mirrored for one session.
func (m *Mirror) Rows(sessionID string) [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	src := m.rows[sessionID]
	out := make([][]string, len(src))
	for i, r := range src {
		out[i] = append([]string(nil), r...)
	}
	return out
}

// Sessions lists the mirrored session ids in sorted order.
func (m *Mirror) Sessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.rows))
	for id := range m.rows {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
