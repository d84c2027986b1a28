// Package domain defines the core trading types shared by every component:
// assets, wallets, markets, orders, balances, trades and bars. All monetary
// quantities are arbitrary-precision decimals; nothing here uses float64.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Now returns the current wall-clock time truncated to microsecond
// precision, matching the timestamp resolution the data model promises.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// TruncateToQuantum truncates amount toward zero to the asset's decimal
// precision. The matching engine never creates dust: every quantity it emits
// has passed through this function.
func TruncateToQuantum(amount decimal.Decimal, decimals int32) decimal.Decimal {
	return amount.Truncate(decimals)
}

// PriceOf returns the giver's unit cost per unit received: ask_amount /
// bid_amount. Callers must guard against a zero bid_amount before calling.
func PriceOf(askAmount, bidAmount decimal.Decimal) decimal.Decimal {
	return askAmount.Div(bidAmount)
}
