package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SettlementStatus is the trade's lifecycle state: matched is the
// off-chain-agreed state, settled/failed are the on-chain hand-off outcomes.
type SettlementStatus int

const (
	SettlementMatched SettlementStatus = iota
	SettlementSettled
	SettlementFailed
)

func (s SettlementStatus) String() string {
	switch s {
	case SettlementMatched:
		return "matched"
	case SettlementSettled:
		return "settled"
	case SettlementFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Trade links a maker and taker order with the quantities each side
// surrendered. MakerFilledAmount/TakerFilledAmount are both denominated in
// their own giver's ask asset — one unit of maker.AskAsset for
// MakerFilledAmount, one unit of taker.AskAsset for TakerFilledAmount.
type Trade struct {
	ID                 uuid.UUID
	MakerOrderID       uuid.UUID
	TakerOrderID       uuid.UUID
	MakerFilledAmount  decimal.Decimal
	TakerFilledAmount  decimal.Decimal
	SettlementStatus   SettlementStatus
	CreatedAt          time.Time
	SettledAt          *time.Time
	SettlementTx       *string
}

// Validate enforces the per-trade invariant from spec §3: both legs of a
// match must be non-zero, otherwise the matching engine produced dust.
func (t *Trade) Validate() error {
	if t.MakerFilledAmount.Sign() <= 0 || t.TakerFilledAmount.Sign() <= 0 {
		return fmt.Errorf("trade %s: maker and taker filled amounts must be positive", t.ID)
	}
	return nil
}

// MatchKey returns the order-pair uniqueness key the trade journal enforces
// while SettlementStatus is matched: the unordered pair of maker/taker IDs.
func MatchKey(makerOrderID, takerOrderID uuid.UUID) (uuid.UUID, uuid.UUID) {
	if makerOrderID.String() <= takerOrderID.String() {
		return makerOrderID, takerOrderID
	}
	return takerOrderID, makerOrderID
}
