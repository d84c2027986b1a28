// Package risk implements market discipline (spec §4.4): price-band
// enforcement for regulated markets plus a fat-finger order-size guard.
// Checks run before a placement reaches the matching engine and mutate no
// ledger or book state — only the checker's own reference-price cache.
package risk

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lumenex/core/internal/domain"
	"github.com/lumenex/core/internal/xerrors"
)

// PriceOracle supplies an externally-sourced reference price for a market
// when no trade has occurred yet to seed the checker's own cache (spec §6,
// §9 — resolves the "what seeds the very first band" open question).
type PriceOracle interface {
	ReferencePrice(marketID uuid.UUID) (decimal.Decimal, bool)
}

// NoopOracle never supplies a price; regulated markets with no recorded
// trade and no oracle price skip the band check and accept any price until
// RecordTrade sets a reference.
type NoopOracle struct{}

// ReferencePrice always reports no known price.
func (NoopOracle) ReferencePrice(uuid.UUID) (decimal.Decimal, bool) {
	return decimal.Zero, false
}

// Config configures the checker.
type Config struct {
	// PriceBandPercent is the default maximum fractional deviation from the
	// reference price a regulated market's orders may carry, e.g. 0.10 for
	// a ±10% band. MarketBandPercent overrides this per market.
	PriceBandPercent decimal.Decimal
	// MarketBandPercent overrides PriceBandPercent for specific markets.
	MarketBandPercent map[uuid.UUID]decimal.Decimal
	// MaxBidAmount, if set for a market, rejects any order whose BidAmount
	// exceeds it — a blunt fat-finger guard independent of price banding.
	MaxBidAmount map[uuid.UUID]decimal.Decimal
}

// DefaultConfig returns a ±10% band with no per-market size caps.
func DefaultConfig() Config {
	return Config{
		PriceBandPercent:  decimal.NewFromFloat(0.10),
		MarketBandPercent: make(map[uuid.UUID]decimal.Decimal),
		MaxBidAmount:      make(map[uuid.UUID]decimal.Decimal),
	}
}

// Checker performs pre-trade market discipline checks.
type Checker struct {
	config Config
	oracle PriceOracle

	mu          sync.RWMutex
	lastTraded  map[uuid.UUID]decimal.Decimal // marketID -> last traded price
}

// NewChecker creates a checker. A nil oracle is replaced with NoopOracle.
func NewChecker(config Config, oracle PriceOracle) *Checker {
	if oracle == nil {
		oracle = NoopOracle{}
	}
	return &Checker{
		config:     config,
		oracle:     oracle,
		lastTraded: make(map[uuid.UUID]decimal.Decimal),
	}
}

// Check validates order against market's discipline rules. It must run
// before any ledger mutation for the placement (spec §4.4).
func (c *Checker) Check(order *domain.Order, market domain.Market) error {
	if fatFingerLimit, ok := c.config.MaxBidAmount[market.ID]; ok {
		if order.BidAmount.GreaterThan(fatFingerLimit) {
			return fmt.Errorf("%w: bid amount %s exceeds fat-finger limit %s for market %s",
				xerrors.ErrInvalidOrder, order.BidAmount, fatFingerLimit, market.ID)
		}
	}

	if market.Regulation != domain.Regulated {
		return nil
	}

	ref, ok := c.referencePrice(market.ID)
	if !ok {
		// No recorded trade and no oracle price: the band check is skipped.
		return nil
	}

	bandPercent := c.config.PriceBandPercent
	if override, ok := c.config.MarketBandPercent[market.ID]; ok {
		bandPercent = override
	}

	band := ref.Mul(bandPercent)
	low := ref.Sub(band)
	high := ref.Add(band)

	price := order.Price()
	if price.LessThan(low) || price.GreaterThan(high) {
		return fmt.Errorf("%w: price %s outside band [%s, %s] (ref %s, ±%s%%)",
			xerrors.ErrPriceOutOfBand, price, low, high, ref, bandPercent.Mul(decimal.NewFromInt(100)))
	}
	return nil
}

// referencePrice prefers the checker's own last-traded cache and falls
// back to the oracle.
func (c *Checker) referencePrice(marketID uuid.UUID) (decimal.Decimal, bool) {
	c.mu.RLock()
	price, ok := c.lastTraded[marketID]
	c.mu.RUnlock()
	if ok {
		return price, true
	}
	return c.oracle.ReferencePrice(marketID)
}

// RecordTrade updates the reference price for market after a trade
// executes at price, so subsequent placements band against it.
func (c *Checker) RecordTrade(marketID uuid.UUID, price decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastTraded[marketID] = price
}

// ReferencePriceFor exposes the checker's current reference price for
// reporting/tests.
func (c *Checker) ReferencePriceFor(marketID uuid.UUID) (decimal.Decimal, bool) {
	return c.referencePrice(marketID)
}
