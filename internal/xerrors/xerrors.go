// Package xerrors defines the typed error kinds surfaced by the trading
// core (spec §7). Callers should compare with errors.Is; wrapped variants
// add context with fmt.Errorf("...: %w", ...).
package xerrors

import "errors"

var (
	// Admission errors — reported synchronously, no state change.
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrPriceOutOfBand    = errors.New("price out of band")
	ErrInvalidOrder      = errors.New("invalid order")

	// Matching-walk outcomes.
	ErrNoLiquidity       = errors.New("no liquidity: cannot fully fill")
	ErrDuplicatePlacement = errors.New("duplicate placement")

	// Settlement.
	ErrSettlementFailed = errors.New("settlement failed")

	// Aggregator.
	ErrCheckpointContention = errors.New("checkpoint owned by another aggregator instance")

	// Simulator.
	ErrInsufficientBudget = errors.New("insufficient budget")

	// Ledger.
	ErrUnknownEntry       = errors.New("unknown ledger entry")
	ErrInvariantViolation = errors.New("ledger invariant violation")
	ErrOverflow           = errors.New("ledger overflow")

	// Order book / market catalog.
	ErrMarketNotTradable = errors.New("market not tradable")
	ErrOrderNotOpen      = errors.New("order not open")
	ErrOrderNotFound     = errors.New("order not found")
)
