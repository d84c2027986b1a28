package risk_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lumenex/core/internal/domain"
	"github.com/lumenex/core/internal/risk"
	"github.com/lumenex/core/internal/xerrors"
)

func order(bid, ask decimal.Decimal) *domain.Order {
	return &domain.Order{ID: uuid.New(), BidAmount: bid, AskAmount: ask}
}

func TestCheckerUnregulatedMarketAcceptsAnyPrice(t *testing.T) {
	c := risk.NewChecker(risk.DefaultConfig(), nil)
	market := domain.Market{ID: uuid.New(), Regulation: domain.Unregulated}

	err := c.Check(order(decimal.NewFromInt(1), decimal.NewFromInt(1000)), market)
	require.NoError(t, err)
}

func TestCheckerRegulatedMarketAcceptsAnyPriceBeforeFirstTrade(t *testing.T) {
	c := risk.NewChecker(risk.DefaultConfig(), risk.NoopOracle{})
	market := domain.Market{ID: uuid.New(), Regulation: domain.Regulated}

	err := c.Check(order(decimal.NewFromInt(1), decimal.NewFromInt(1000)), market)
	require.NoError(t, err, "no reference price yet: any price is accepted")
}

func TestCheckerRegulatedMarketRejectsOutOfBandAfterTrade(t *testing.T) {
	c := risk.NewChecker(risk.DefaultConfig(), risk.NoopOracle{})
	market := domain.Market{ID: uuid.New(), Regulation: domain.Regulated}

	c.RecordTrade(market.ID, decimal.NewFromInt(100))

	// default band is ±10%: price of 150 is far outside [90, 110].
	err := c.Check(order(decimal.NewFromInt(1), decimal.NewFromInt(150)), market)
	require.ErrorIs(t, err, xerrors.ErrPriceOutOfBand)

	// price of 105 is inside the band.
	err = c.Check(order(decimal.NewFromInt(1), decimal.NewFromInt(105)), market)
	require.NoError(t, err)
}

func TestCheckerPerMarketBandOverride(t *testing.T) {
	cfg := risk.DefaultConfig()
	marketA := uuid.New()
	marketB := uuid.New()
	cfg.MarketBandPercent[marketA] = decimal.NewFromFloat(0.01) // tight ±1%
	cfg.MarketBandPercent[marketB] = decimal.NewFromFloat(0.50) // loose ±50%

	c := risk.NewChecker(cfg, risk.NoopOracle{})
	c.RecordTrade(marketA, decimal.NewFromInt(100))
	c.RecordTrade(marketB, decimal.NewFromInt(100))

	mA := domain.Market{ID: marketA, Regulation: domain.Regulated}
	mB := domain.Market{ID: marketB, Regulation: domain.Regulated}

	// 105 is within B's ±50% band but outside A's ±1% band.
	require.ErrorIs(t, c.Check(order(decimal.NewFromInt(1), decimal.NewFromInt(105)), mA), xerrors.ErrPriceOutOfBand)
	require.NoError(t, c.Check(order(decimal.NewFromInt(1), decimal.NewFromInt(105)), mB))
}

func TestCheckerFatFingerLimit(t *testing.T) {
	cfg := risk.DefaultConfig()
	marketID := uuid.New()
	cfg.MaxBidAmount[marketID] = decimal.NewFromInt(50)

	c := risk.NewChecker(cfg, nil)
	market := domain.Market{ID: marketID, Regulation: domain.Unregulated}

	err := c.Check(order(decimal.NewFromInt(51), decimal.NewFromInt(51)), market)
	require.ErrorIs(t, err, xerrors.ErrInvalidOrder)

	err = c.Check(order(decimal.NewFromInt(50), decimal.NewFromInt(50)), market)
	require.NoError(t, err)
}

func TestCheckerOracleFallback(t *testing.T) {
	oracle := stubOracle{price: decimal.NewFromInt(200), ok: true}
	c := risk.NewChecker(risk.DefaultConfig(), oracle)
	market := domain.Market{ID: uuid.New(), Regulation: domain.Regulated}

	// No trade recorded yet: falls back to the oracle's 200, ±10% band.
	err := c.Check(order(decimal.NewFromInt(1), decimal.NewFromInt(250)), market)
	require.ErrorIs(t, err, xerrors.ErrPriceOutOfBand)
}

type stubOracle struct {
	price decimal.Decimal
	ok    bool
}

func (s stubOracle) ReferencePrice(uuid.UUID) (decimal.Decimal, bool) {
	return s.price, s.ok
}
