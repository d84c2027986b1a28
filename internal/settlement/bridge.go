// Package settlement hands matched trades off to on-chain settlement and
// applies the compensation path when that hand-off rejects.
//
// Unlike a synchronous clearing house, on-chain settlement is asynchronous
// by nature: a submission is accepted into a pending queue and the result
// arrives later as a Result passed to Handler.HandleResult, possibly from a
// different goroutine (a chain indexer, a webhook handler). Bridge models exactly that submit/callback
// shape rather than the T+2 netting cycle a traditional clearing house
// runs (see DESIGN.md for why netting was dropped).
package settlement

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/lumenex/core/internal/domain"
	"github.com/lumenex/core/internal/journal"
	"github.com/lumenex/core/internal/ledger"
)

// Bridge is the async hand-off boundary to on-chain (or otherwise external)
// settlement.
type Bridge interface {
	// Submit hands trade off for settlement. It must not block on the
	// settlement outcome; the outcome arrives later as a Result for
	// Handler.HandleResult.
	Submit(ctx context.Context, trade domain.Trade) error
}

// Outcome is what a settlement attempt resolved to.
type Outcome int

const (
	OutcomeSettled Outcome = iota
	OutcomeFailed
)

// Result is what a Bridge reports back for a previously submitted trade.
type Result struct {
	TradeID uuid.UUID
	Outcome Outcome
	TxRef   string // chain transaction reference, set only when Outcome == OutcomeSettled
	Reason  string // failure detail, set only when Outcome == OutcomeFailed
}

// Handler processes settlement callbacks: updates the trade journal and, on
// failure, compensates the ledger by moving the filled amount back through
// spent -> locked -> available on each leg. Residual capacity on the
// original orders is not re-opened.
type Handler struct {
	log     zerolog.Logger
	journal *journal.Journal
	ledger  *ledger.Ledger
	orders  OrderLookup
}

// OrderLookup resolves the maker/taker orders referenced by a trade, so the
// handler knows which (wallet, asset) pairs to compensate.
type OrderLookup interface {
	Get(ctx context.Context, orderID uuid.UUID) (domain.Order, error)
}

// NewHandler constructs a settlement callback handler.
func NewHandler(log zerolog.Logger, j *journal.Journal, l *ledger.Ledger, orders OrderLookup) *Handler {
	return &Handler{log: log.With().Str("component", "settlement").Logger(), journal: j, ledger: l, orders: orders}
}

// HandleResult applies a settlement outcome to the trade journal and, on
// failure, compensates the ledger.
func (h *Handler) HandleResult(ctx context.Context, result Result) error {
	trade, err := h.journal.Get(ctx, result.TradeID)
	if err != nil {
		return fmt.Errorf("settlement callback for unknown trade %s: %w", result.TradeID, err)
	}

	switch result.Outcome {
	case OutcomeSettled:
		if err := h.journal.MarkSettled(ctx, result.TradeID, result.TxRef); err != nil {
			return err
		}
		h.log.Info().Str("trade_id", trade.ID.String()).Str("tx", result.TxRef).Msg("trade settled")
		return nil

	case OutcomeFailed:
		if err := h.compensate(ctx, trade); err != nil {
			return fmt.Errorf("compensating failed trade %s: %w", trade.ID, err)
		}
		if err := h.journal.MarkFailed(ctx, result.TradeID); err != nil {
			return err
		}
		h.log.Warn().Str("trade_id", trade.ID.String()).Str("reason", result.Reason).Msg("trade settlement failed, compensated")
		return nil

	default:
		return fmt.Errorf("unknown settlement outcome %d for trade %s", result.Outcome, trade.ID)
	}
}

// compensate reverses the ledger spend() on both legs of trade, refunding
// the filled amount all the way back to available. Residual capacity is
// not re-inserted into the original orders; the handler only restores
// ledger state.
func (h *Handler) compensate(ctx context.Context, trade domain.Trade) error {
	maker, err := h.orders.Get(ctx, trade.MakerOrderID)
	if err != nil {
		return err
	}
	taker, err := h.orders.Get(ctx, trade.TakerOrderID)
	if err != nil {
		return err
	}

	if err := h.refund(ctx, maker.WalletID, maker.AskAsset, trade.MakerFilledAmount); err != nil {
		return err
	}
	if err := h.refund(ctx, taker.WalletID, taker.AskAsset, trade.TakerFilledAmount); err != nil {
		return err
	}
	return nil
}

// refund moves amount all the way back to the original wallet: spent ->
// locked, then locked -> available.
func (h *Handler) refund(ctx context.Context, walletID, assetID uuid.UUID, amount decimal.Decimal) error {
	if err := h.ledger.UnspendToLocked(ctx, walletID, assetID, amount); err != nil {
		return err
	}
	return h.ledger.Unlock(ctx, walletID, assetID, amount)
}

// NoopBridge reports every trade as settled: Submit enqueues a settled
// Result on the Results channel, and the trade is marked settled only when
// a caller drains that channel into a Handler. Used in tests and
// single-process simulation runs where there is no real chain to hand off
// to.
type NoopBridge struct {
	mu      sync.Mutex
	results chan Result
	seq     uint64
}

// NewNoopBridge constructs a bridge that enqueues a settled result on
// every submit.
func NewNoopBridge() *NoopBridge {
	return &NoopBridge{results: make(chan Result, 256)}
}

// Submit immediately enqueues a settled result for trade.
func (b *NoopBridge) Submit(ctx context.Context, trade domain.Trade) error {
	b.mu.Lock()
	b.seq++
	txRef := fmt.Sprintf("noop-tx-%d", b.seq)
	b.mu.Unlock()

	select {
	case b.results <- Result{TradeID: trade.ID, Outcome: OutcomeSettled, TxRef: txRef}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Results returns the channel of settlement outcomes for a caller to drain
// into a Handler.
func (b *NoopBridge) Results() <-chan Result {
	return b.results
}
