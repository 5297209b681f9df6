package connector

import (
	"context"
	"sync"

	"github.com/bustedglowsticks/quantum-yield-empire-sub001/ledger"
)

// Pool rotates across a fixed set of independent connectors so callers can
// spread submissions over several credentials. The connectors are owned by
// the caller; the pool only routes to them.
type Pool struct {
	mu         sync.Mutex
	next       int
	connectors []*Connector
}

// NewPool creates a Pool over the given connectors.
func NewPool(connectors ...*Connector) *Pool {
	return &Pool{connectors: connectors}
}

// Size returns the number of pooled connectors.
func (p *Pool) Size() int {
	return len(p.connectors)
}

// Next returns the next connector in rotation, or nil for an empty pool.
func (p *Pool) Next() *Connector {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.connectors) == 0 {
		return nil
	}
	c := p.connectors[p.next]
	p.next = (p.next + 1) % len(p.connectors)
	return c
}

// Submit routes the payment to the next connector in rotation.
func (p *Pool) Submit(ctx context.Context, payment *ledger.Payment) (*ledger.TxReceipt, error) {
	c := p.Next()
	if c == nil {
		return nil, ErrNotConnected
	}
	return c.Submit(ctx, payment)
}

// Disconnect releases every pooled connector's session.
func (p *Pool) Disconnect() {
	for _, c := range p.connectors {
		c.Disconnect()
	}
}
