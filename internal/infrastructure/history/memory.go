package history

import (
	"context"
	"sort"
	"sync"

	"github.com/blackms/gradflow/internal/shared"
)

// MemoryStore implements Store in memory. Useful for tests and short-lived
// runs that do not need persistence.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]Record
	order   []string
	closed  bool
}

// NewMemoryStore creates an in-memory history store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]Record)}
}

// Append implements Store.
func (m *MemoryStore) Append(ctx context.Context, record Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	if record.Timestamp == 0 {
		record.Timestamp = shared.Now()
	}
	record.Extra = shared.CloneStringInterfaceMap(record.Extra)

	if _, seen := m.records[record.RunID]; !seen {
		m.order = append(m.order, record.RunID)
	}
	m.records[record.RunID] = append(m.records[record.RunID], record)
	return nil
}

// Records implements Store.
func (m *MemoryStore) Records(ctx context.Context, runID string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	records, ok := m.records[runID]
	if !ok {
		return nil, ErrRunNotFound
	}

	out := make([]Record, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Epoch != out[j].Epoch {
			return out[i].Epoch < out[j].Epoch
		}
		return out[i].IterCnt < out[j].IterCnt
	})
	return out, nil
}

// Runs implements Store.
func (m *MemoryStore) Runs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	out := make([]string, len(m.order))
	for i, runID := range m.order {
		out[len(m.order)-1-i] = runID
	}
	return out, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
