package application

import (
	"context"
	"time"

	"github.com/orderhub/order-system/order-service/domain"
)

// Processor performs the business work for one order. The work is opaque to
// the saga: it must return within a bounded duration or report an error.
type Processor interface {
	Process(ctx context.Context, order *domain.Order) error
}

// ProcessorFunc adapts a function to the Processor interface
type ProcessorFunc func(ctx context.Context, order *domain.Order) error

func (f ProcessorFunc) Process(ctx context.Context, order *domain.Order) error {
	return f(ctx, order)
}

// SimulatedProcessor stands in for real order fulfilment by blocking for a
// fixed duration. It honors context cancellation so a shutdown does not
// strand a consumer worker mid-sleep.
type SimulatedProcessor struct {
	delay time.Duration
}

// NewSimulatedProcessor creates a processor that sleeps for the given delay
func NewSimulatedProcessor(delay time.Duration) *SimulatedProcessor {
	return &SimulatedProcessor{delay: delay}
}

func (p *SimulatedProcessor) Process(ctx context.Context, _ *domain.Order) error {
	select {
	case <-time.After(p.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
