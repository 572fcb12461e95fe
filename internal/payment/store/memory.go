package store

import (
	"context"
	"sort"
	"sync"

	"forexhub/internal/payment"
)

// Memory is a process-local PendingStore. Records, confirmed ones included,
// do not survive restarts, so it only suits tests and local development.
type Memory struct {
	mu      sync.Mutex
	pending map[string]payment.PendingPayment
}

func NewMemory() *Memory {
	return &Memory{pending: make(map[string]payment.PendingPayment)}
}

func (m *Memory) Put(_ context.Context, p *payment.PendingPayment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pending[p.RequestID]; ok {
		return payment.ErrDuplicatePending
	}
	m.pending[p.RequestID] = *p
	return nil
}

func (m *Memory) Get(_ context.Context, requestID string) (*payment.PendingPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[requestID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) CompareAndSwapState(_ context.Context, requestID string, from, to payment.State) (bool, error) {
	if err := payment.CheckTransition(from, to); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[requestID]
	if !ok || p.State != from {
		return false, nil
	}
	p.State = to
	m.pending[requestID] = p
	return true, nil
}

func (m *Memory) Remove(_ context.Context, requestID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, requestID)
	return nil
}

// List returns copies ordered by creation time.
func (m *Memory) List(_ context.Context) ([]*payment.PendingPayment, error) {
	m.mu.Lock()
	out := make([]*payment.PendingPayment, 0, len(m.pending))
	for _, p := range m.pending {
		cp := p
		out = append(out, &cp)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
