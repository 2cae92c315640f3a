// Package memory is an in-process TransactionMirror for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"carteira/internal/core"
	ports "carteira/internal/sheets"
)

type Mirror struct {
	mu   sync.Mutex
	rows map[string]core.Transaction
	refs map[string]int
	next int
}

var _ ports.TransactionMirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{rows: map[string]core.Transaction{}, refs: map[string]int{}}
}

// Upsert stores the transaction and returns a synthetic row reference that
// stays stable for the same id.
func (m *Mirror) Upsert(_ context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, ok := m.refs[tx.ID]
	if !ok {
		m.next++
		ref = m.next
		m.refs[tx.ID] = ref
	}
	m.rows[tx.ID] = tx
	return fmt.Sprintf("mem:%d", ref), nil
}

func (m *Mirror) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	delete(m.refs, id)
	return nil
}

// Get returns the mirrored copy of id.
func (m *Mirror) Get(id string) (core.Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.rows[id]
	return tx, ok
}

// IDs lists mirrored transaction ids in sorted order.
func (m *Mirror) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.rows))
	for id := range m.rows {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (m *Mirror) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}
