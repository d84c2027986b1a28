package simulator_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lumenex/core/internal/domain"
	"github.com/lumenex/core/internal/simulator"
)

type fakeMarkets struct {
	markets map[uuid.UUID]domain.Market
}

func (f fakeMarkets) Get(marketID uuid.UUID) (domain.Market, bool) {
	m, ok := f.markets[marketID]
	return m, ok
}

type fakePrices struct {
	price decimal.Decimal
}

func (f fakePrices) ReferencePriceFor(uuid.UUID) (decimal.Decimal, bool) {
	return f.price, true
}

func TestGeneratorProducesTradesPerAccountSlots(t *testing.T) {
	marketID := uuid.New()
	market := domain.Market{ID: marketID, AssetOne: uuid.New(), AssetTwo: uuid.New(), MarketType: domain.MarketSpot, Status: domain.MarketActive}
	g := simulator.NewGenerator(fakeMarkets{markets: map[uuid.UUID]domain.Market{marketID: market}}, fakePrices{price: decimal.NewFromInt(10)}, 42)

	accounts := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	config := simulator.SchedulerConfig{
		Markets:          []uuid.UUID{marketID},
		MinAmount:        decimal.NewFromInt(1),
		MaxAmount:        decimal.NewFromInt(5),
		TradesPerAccount: 4,
		MaxRetries:       3,
		BaseRetryDelay:   time.Second,
	}

	slots, err := g.Generate(config, accounts)
	require.NoError(t, err)
	require.Len(t, slots, len(accounts)*config.TradesPerAccount)

	for i, slot := range slots {
		require.Equal(t, i, slot.Sequence)
		require.Equal(t, simulator.SlotPending, slot.State)
		require.Equal(t, marketID, slot.Action.MarketID)
		require.True(t, slot.Action.BidAmount.GreaterThanOrEqual(config.MinAmount))
		require.True(t, slot.Action.BidAmount.LessThanOrEqual(config.MaxAmount))
	}
}

func TestGeneratorIsReproducibleGivenSameSeed(t *testing.T) {
	marketID := uuid.New()
	market := domain.Market{ID: marketID, AssetOne: uuid.New(), AssetTwo: uuid.New()}
	markets := fakeMarkets{markets: map[uuid.UUID]domain.Market{marketID: market}}
	prices := fakePrices{price: decimal.NewFromInt(10)}

	accounts := []uuid.UUID{uuid.New(), uuid.New()}
	config := simulator.SchedulerConfig{
		Markets:          []uuid.UUID{marketID},
		MinAmount:        decimal.NewFromInt(1),
		MaxAmount:        decimal.NewFromInt(100),
		TradesPerAccount: 5,
	}

	slotsA, err := simulator.NewGenerator(markets, prices, 7).Generate(config, accounts)
	require.NoError(t, err)
	slotsB, err := simulator.NewGenerator(markets, prices, 7).Generate(config, accounts)
	require.NoError(t, err)

	require.Equal(t, len(slotsA), len(slotsB))
	for i := range slotsA {
		require.True(t, slotsA[i].Action.BidAmount.Equal(slotsB[i].Action.BidAmount))
		require.True(t, slotsA[i].Action.AskAmount.Equal(slotsB[i].Action.AskAmount))
	}
}

func TestGeneratorAlternateSidesPairsAdjacentAccounts(t *testing.T) {
	marketID := uuid.New()
	market := domain.Market{ID: marketID, AssetOne: uuid.New(), AssetTwo: uuid.New()}
	g := simulator.NewGenerator(fakeMarkets{markets: map[uuid.UUID]domain.Market{marketID: market}}, fakePrices{price: decimal.NewFromInt(10)}, 1)

	accountA, accountB := uuid.New(), uuid.New()
	config := simulator.SchedulerConfig{
		Markets:            []uuid.UUID{marketID},
		MinAmount:          decimal.NewFromInt(1),
		MaxAmount:          decimal.NewFromInt(1),
		TradesPerAccount:   1,
		AlternateSides:     true,
		MarketDistribution: simulator.SameMarket,
	}

	slots, err := g.Generate(config, []uuid.UUID{accountA, accountB})
	require.NoError(t, err)
	require.Len(t, slots, 2)

	require.Equal(t, simulator.SideBid, slots[0].Action.Side)
	require.Equal(t, simulator.SideAsk, slots[1].Action.Side)
	require.Equal(t, simulator.MatchWithAccount, slots[0].Action.Strategy.Kind)
	require.Equal(t, accountB, slots[0].Action.Strategy.WithAccountID)
	require.Equal(t, simulator.MatchWithAccount, slots[1].Action.Strategy.Kind)
	require.Equal(t, accountA, slots[1].Action.Strategy.WithAccountID)
}

func TestGeneratorRejectsEmptyMarketsOrAccounts(t *testing.T) {
	g := simulator.NewGenerator(fakeMarkets{markets: map[uuid.UUID]domain.Market{}}, fakePrices{price: decimal.NewFromInt(1)}, 1)

	_, err := g.Generate(simulator.SchedulerConfig{}, []uuid.UUID{uuid.New()})
	require.Error(t, err)

	_, err = g.Generate(simulator.SchedulerConfig{Markets: []uuid.UUID{uuid.New()}}, nil)
	require.Error(t, err)
}
