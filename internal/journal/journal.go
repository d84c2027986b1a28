// Package journal implements the trade journal: the append-only record of
// matches that enforces placement idempotency (spec §4.3) and drives the
// matched -> settled | failed state machine (spec §7).
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lumenex/core/internal/domain"
	"github.com/lumenex/core/internal/xerrors"
)

// Store is the persistence boundary for trades.
type Store interface {
	// FindMatched looks up an existing matched trade for the unordered
	// (makerID, takerID) pair, used to make a retried placement idempotent.
	FindMatched(ctx context.Context, orderLo, orderHi uuid.UUID) (domain.Trade, bool, error)
	Insert(ctx context.Context, trade domain.Trade) error
	Update(ctx context.Context, trade domain.Trade) error
	Get(ctx context.Context, tradeID uuid.UUID) (domain.Trade, error)
	ListByWindow(ctx context.Context, marketID, assetID uuid.UUID, fromInclusive, toExclusive time.Time) ([]domain.Trade, error)
}

// Journal wraps Store with the uniqueness and state-machine rules.
type Journal struct {
	store Store
}

// New constructs a Journal over store.
func New(store Store) *Journal {
	return &Journal{store: store}
}

// RecordMatch inserts a new matched trade for (makerOrderID, takerOrderID),
// unless one already exists — in which case it returns the prior trade and
// isNew=false so a retried placement reproduces its original result
// instead of double-booking (spec §4.3 idempotency key).
func (j *Journal) RecordMatch(ctx context.Context, trade domain.Trade) (domain.Trade, bool, error) {
	if err := trade.Validate(); err != nil {
		return domain.Trade{}, false, err
	}

	lo, hi := domain.MatchKey(trade.MakerOrderID, trade.TakerOrderID)
	existing, found, err := j.store.FindMatched(ctx, lo, hi)
	if err != nil {
		return domain.Trade{}, false, err
	}
	if found {
		return existing, false, nil
	}

	if trade.ID == uuid.Nil {
		trade.ID = uuid.New()
	}
	trade.SettlementStatus = domain.SettlementMatched
	if err := j.store.Insert(ctx, trade); err != nil {
		return domain.Trade{}, false, err
	}
	return trade, true, nil
}

// MarkSettled transitions trade to settled, recording the settlement
// transaction reference and timestamp.
func (j *Journal) MarkSettled(ctx context.Context, tradeID uuid.UUID, tx string) error {
	trade, err := j.store.Get(ctx, tradeID)
	if err != nil {
		return err
	}
	if trade.SettlementStatus != domain.SettlementMatched {
		return fmt.Errorf("%w: trade %s is %s, not matched", xerrors.ErrSettlementFailed, tradeID, trade.SettlementStatus)
	}
	now := domain.Now()
	trade.SettlementStatus = domain.SettlementSettled
	trade.SettledAt = &now
	txCopy := tx
	trade.SettlementTx = &txCopy
	return j.store.Update(ctx, trade)
}

// MarkFailed transitions trade to failed. Callers (the settlement bridge's
// callback handler) are responsible for the ledger compensation described
// in spec §7 before or after calling this.
func (j *Journal) MarkFailed(ctx context.Context, tradeID uuid.UUID) error {
	trade, err := j.store.Get(ctx, tradeID)
	if err != nil {
		return err
	}
	if trade.SettlementStatus != domain.SettlementMatched {
		return fmt.Errorf("%w: trade %s is %s, not matched", xerrors.ErrSettlementFailed, tradeID, trade.SettlementStatus)
	}
	trade.SettlementStatus = domain.SettlementFailed
	return j.store.Update(ctx, trade)
}

// Get retrieves a trade by id.
func (j *Journal) Get(ctx context.Context, tradeID uuid.UUID) (domain.Trade, error) {
	return j.store.Get(ctx, tradeID)
}

// ListByWindow returns every trade tagged with (marketID, assetID) whose
// created_at falls in [fromInclusive, toExclusive) — the aggregator's
// range-scan primitive (spec §4.5).
func (j *Journal) ListByWindow(ctx context.Context, marketID, assetID uuid.UUID, fromInclusive, toExclusive time.Time) ([]domain.Trade, error) {
	return j.store.ListByWindow(ctx, marketID, assetID, fromInclusive, toExclusive)
}
