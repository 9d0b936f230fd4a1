// Package orders turns live signals into proposed orders and hands
// them to a placement collaborator.
package orders

import (
	"context"

	"smc-lab/internal/domain"
)

// ProposedOrder is a market order derived from one signal.
type ProposedOrder struct {
	Symbol     string
	Side       domain.Side
	Size       float64
	StopLoss   float64
	TakeProfit float64
	Price      float64 // reference price at signal time
	SignalTime int64
	Reason     string
}

// PlacementResult reports what happened to a proposed order.
type PlacementResult struct {
	Accepted bool
	Ticket   string
	Message  string
}

// Placer executes proposed orders. Implementations decide whether the
// order reaches a broker or is only simulated.
type Placer interface {
	Place(ctx context.Context, order ProposedOrder) (PlacementResult, error)
}
