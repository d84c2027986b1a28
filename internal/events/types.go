// Package events defines the event-sourcing records for crash replay
// (spec §5, §9). The matching engine appends placement, rejection,
// acceptance, fill and cancellation events. TradeSettledEvent and
// TradeFailedEvent are defined and registered, but nothing appends them:
// settlement outcomes are not logged here.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type identifies the kind of event in the log.
type Type uint8

const (
	TypeOrderPlaced Type = iota + 1
	TypeOrderAccepted
	TypeOrderRejected
	TypeTradeMatched
	TypeTradeSettled
	TypeTradeFailed
	TypeOrderCancelled
)

func (t Type) String() string {
	switch t {
	case TypeOrderPlaced:
		return "ORDER_PLACED"
	case TypeOrderAccepted:
		return "ORDER_ACCEPTED"
	case TypeOrderRejected:
		return "ORDER_REJECTED"
	case TypeTradeMatched:
		return "TRADE_MATCHED"
	case TypeTradeSettled:
		return "TRADE_SETTLED"
	case TypeTradeFailed:
		return "TRADE_FAILED"
	case TypeOrderCancelled:
		return "ORDER_CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Base carries the fields every event shares.
type Base struct {
	SequenceNum uint64
	Timestamp   time.Time
	Type        Type
}

// OrderPlacedEvent records a placement's admission parameters before
// matching runs against it.
type OrderPlacedEvent struct {
	Base
	OrderID   uuid.UUID
	WalletID  uuid.UUID
	MarketID  uuid.UUID
	BidAsset  uuid.UUID
	AskAsset  uuid.UUID
	BidAmount decimal.Decimal
	AskAmount decimal.Decimal
	Mode      string
	OrderType string
}

// OrderAcceptedEvent records the matching walk's terminal disposition of a
// placement.
type OrderAcceptedEvent struct {
	Base
	OrderID        uuid.UUID
	Status         string
	ResidualBid    decimal.Decimal
	RestedInBook   bool
}

// OrderRejectedEvent records a placement that never reached matching.
type OrderRejectedEvent struct {
	Base
	OrderID uuid.UUID
	Reason  string
}

// TradeMatchedEvent records one fill produced by the matching walk.
type TradeMatchedEvent struct {
	Base
	TradeID           uuid.UUID
	MakerOrderID      uuid.UUID
	TakerOrderID      uuid.UUID
	MakerFilledAmount decimal.Decimal
	TakerFilledAmount decimal.Decimal
}

// TradeSettledEvent records a successful on-chain settlement callback.
type TradeSettledEvent struct {
	Base
	TradeID uuid.UUID
	TxRef   string
}

// TradeFailedEvent records a rejected settlement callback, after ledger
// compensation has been applied.
type TradeFailedEvent struct {
	Base
	TradeID uuid.UUID
	Reason  string
}

// OrderCancelledEvent records a cancellation.
type OrderCancelledEvent struct {
	Base
	OrderID        uuid.UUID
	CancelledBid   decimal.Decimal
	Reason         string
}
