package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceEntry is the ledger's per-(wallet, asset) row. The conservation law
// (spec §3) requires available + locked + spent to only ever move via
// set_budget, the three mutating ledger operations, or settlement
// compensation — never via direct mutation of this struct outside
// internal/ledger.
type BalanceEntry struct {
	WalletID  uuid.UUID
	AssetID   uuid.UUID
	Available decimal.Decimal
	Locked    decimal.Decimal
	Spent     decimal.Decimal
}

// Total returns available + locked + spent.
func (b BalanceEntry) Total() decimal.Decimal {
	return b.Available.Add(b.Locked).Add(b.Spent)
}
