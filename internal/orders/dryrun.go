package orders

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// DryRunPlacer acknowledges every order without touching a broker.
// Tickets are sequential; placed orders are kept for inspection.
type DryRunPlacer struct {
	mu     sync.Mutex
	next   int
	placed []ProposedOrder
}

// NewDryRunPlacer creates a new dry-run placer.
func NewDryRunPlacer() *DryRunPlacer {
	return &DryRunPlacer{next: 1}
}

var _ Placer = (*DryRunPlacer)(nil)

// Place logs the order and acknowledges it.
func (p *DryRunPlacer) Place(_ context.Context, order ProposedOrder) (PlacementResult, error) {
	p.mu.Lock()
	ticket := fmt.Sprintf("dry-%d", p.next)
	p.next++
	p.placed = append(p.placed, order)
	p.mu.Unlock()

	log.Printf("[orders] dry-run %s: %s %s size %g sl %g tp %g (%s)",
		ticket, order.Side, order.Symbol, order.Size, order.StopLoss, order.TakeProfit, order.Reason)

	return PlacementResult{Accepted: true, Ticket: ticket, Message: "simulated"}, nil
}

// Placed returns a copy of all orders seen so far.
func (p *DryRunPlacer) Placed() []ProposedOrder {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ProposedOrder, len(p.placed))
	copy(out, p.placed)
	return out
}
