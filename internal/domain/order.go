package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lumenex/core/internal/xerrors"
)

// FillMode controls how an order's residual quantity is handled once the
// matching walk stops.
type FillMode int

const (
	// GTC (good-till-cancel) rests the residual in the book.
	GTC FillMode = iota
	// IOC (immediate-or-cancel) keeps whatever filled and cancels the rest.
	IOC
	// FOK (fill-or-kill) rolls back entirely unless fully filled.
	FOK
)

func (m FillMode) String() string {
	switch m {
	case GTC:
		return "GTC"
	case IOC:
		return "IOC"
	case FOK:
		return "FOK"
	default:
		return "UNKNOWN"
	}
}

// OrderType is limit (rests in the book) or market (never rests, behaves
// like IOC regardless of the stated FillMode).
type OrderType int

const (
	OrderTypeLimit OrderType = iota
	OrderTypeMarket
)

func (t OrderType) String() string {
	if t == OrderTypeMarket {
		return "market"
	}
	return "limit"
}

// OrderStatus is the order's lifecycle state.
type OrderStatus int

const (
	OrderOpen OrderStatus = iota
	OrderClosed
	OrderCancelled
)

func (s OrderStatus) String() string {
	switch s {
	case OrderOpen:
		return "open"
	case OrderClosed:
		return "closed"
	case OrderCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Order is a placement to give AskAmount of AskAsset in exchange for
// BidAmount of BidAsset. Price is the giver's unit cost: AskAmount /
// BidAmount (see PriceOf). SequenceNum is assigned by the matching engine on
// admission; equal-price, equal-timestamp orders are tie-broken by the lower
// order ID, not by SequenceNum.
type Order struct {
	ID          uuid.UUID
	WalletID    uuid.UUID
	MarketID    uuid.UUID
	BidAsset    uuid.UUID
	AskAsset    uuid.UUID
	BidAmount   decimal.Decimal
	AskAmount   decimal.Decimal
	FilledBid   decimal.Decimal
	FilledAsk   decimal.Decimal
	Mode        FillMode
	OrderType   OrderType
	Status      OrderStatus
	SequenceNum uint64
	CreatedAt   time.Time
	FilledAt    *time.Time
	CancelledAt *time.Time
	ExpiresAt   *time.Time
}

// Price returns the order's unit cost: AskAmount / BidAmount.
func (o *Order) Price() decimal.Decimal {
	return PriceOf(o.AskAmount, o.BidAmount)
}

// RemainingBid returns the unfilled portion of BidAmount.
func (o *Order) RemainingBid() decimal.Decimal {
	return o.BidAmount.Sub(o.FilledBid)
}

// RemainingAsk returns the unfilled (and still locked) portion of AskAmount.
func (o *Order) RemainingAsk() decimal.Decimal {
	return o.AskAmount.Sub(o.FilledAsk)
}

// IsFilled reports whether the order's bid side has been fully satisfied.
func (o *Order) IsFilled() bool {
	return o.RemainingBid().Sign() <= 0
}

// ApplyFill increments the order's filled amounts and transitions status to
// closed when the residual bid reaches zero. deltaBid/deltaAsk must already
// be truncated to the relevant asset quanta by the caller (the matching
// engine).
func (o *Order) ApplyFill(deltaBid, deltaAsk decimal.Decimal) {
	o.FilledBid = o.FilledBid.Add(deltaBid)
	o.FilledAsk = o.FilledAsk.Add(deltaAsk)
	if o.IsFilled() {
		o.Status = OrderClosed
		now := Now()
		o.FilledAt = &now
	}
}

// Cancel transitions the order to cancelled and timestamps it. Only valid
// from OrderOpen (enforced by the caller — the order book store).
func (o *Order) Cancel() {
	o.Status = OrderCancelled
	now := Now()
	o.CancelledAt = &now
}

// Validate enforces the per-order shape invariants.
func (o *Order) Validate(market Market) error {
	if o.BidAsset == o.AskAsset {
		return fmt.Errorf("%w: order %s: bid_asset equals ask_asset", xerrors.ErrInvalidOrder, o.ID)
	}
	if o.BidAmount.Sign() <= 0 || o.AskAmount.Sign() <= 0 {
		return fmt.Errorf("%w: order %s: bid_amount and ask_amount must be positive", xerrors.ErrInvalidOrder, o.ID)
	}
	if o.FilledBid.GreaterThan(o.BidAmount) || o.FilledAsk.GreaterThan(o.AskAmount) {
		return fmt.Errorf("%w: order %s: filled amount exceeds stated amount", xerrors.ErrInvalidOrder, o.ID)
	}
	if !market.HasAssetPair(o.BidAsset, o.AskAsset) {
		return fmt.Errorf("%w: order %s: asset pair does not match market %s", xerrors.ErrInvalidOrder, o.ID, market.ID)
	}
	return nil
}

// String renders a short human-readable summary, used by logging.
func (o *Order) String() string {
	return fmt.Sprintf("Order{%s ask=%s bid=%s price=%s mode=%s status=%s}",
		o.ID, o.AskAmount, o.BidAmount, o.Price(), o.Mode, o.Status)
}
