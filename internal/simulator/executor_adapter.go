package simulator

import (
	"context"

	"github.com/google/uuid"

	"github.com/lumenex/core/internal/domain"
	"github.com/lumenex/core/internal/matching"
)

// EngineExecutor adapts a live matching.Engine into the Executor seam the
// scheduler drives slots through. Every generated slot places a resting
// (GTC, limit) order: the generator's matching_strategy hint describes
// intent, not an order-type override, so alternating-side pairs are
// expected to cross once both legs are admitted.
type EngineExecutor struct {
	engine *matching.Engine
}

// NewEngineExecutor constructs an Executor over engine.
func NewEngineExecutor(engine *matching.Engine) *EngineExecutor {
	return &EngineExecutor{engine: engine}
}

func (e *EngineExecutor) Execute(ctx context.Context, account uuid.UUID, action Action) error {
	order := &domain.Order{
		ID:        uuid.New(),
		WalletID:  account,
		MarketID:  action.MarketID,
		BidAsset:  action.BidAsset,
		AskAsset:  action.AskAsset,
		BidAmount: action.BidAmount,
		AskAmount: action.AskAmount,
		Mode:      domain.GTC,
		OrderType: domain.OrderTypeLimit,
	}
	_, err := e.engine.PlaceOrder(ctx, order)
	return err
}
