package simulator

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lumenex/core/internal/domain"
)

// MarketLookup resolves a market's asset pair for slot generation.
type MarketLookup interface {
	Get(marketID uuid.UUID) (domain.Market, bool)
}

// ReferencePrice resolves the current reference price for a market, used to
// derive a slot's ask_amount from its randomised bid_amount.
type ReferencePrice interface {
	ReferencePriceFor(marketID uuid.UUID) (decimal.Decimal, bool)
}

// Generator builds the ordered slot list a Scheduler will execute.
type Generator struct {
	markets MarketLookup
	prices  ReferencePrice
	rand    *rand.Rand
}

// NewGenerator constructs a Generator. seed is exposed (rather than using
// the global source) so a simulation run's slot list is reproducible given
// the same config and seed.
func NewGenerator(markets MarketLookup, prices ReferencePrice, seed int64) *Generator {
	return &Generator{markets: markets, prices: prices, rand: rand.New(rand.NewSource(seed))}
}

// Generate produces config.TradesPerAccount slots per account, per spec
// §4.6's generation rules.
func (g *Generator) Generate(config SchedulerConfig, accounts []uuid.UUID) ([]ActionSlot, error) {
	if len(config.Markets) == 0 {
		return nil, fmt.Errorf("simulator: no markets configured for generation")
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("simulator: no accounts configured for generation")
	}

	totalSlots := len(accounts) * config.TradesPerAccount
	slots := make([]ActionSlot, 0, totalSlots)

	globalIndex := 0
	for accountIdx, account := range accounts {
		for i := 0; i < config.TradesPerAccount; i++ {
			marketID := g.pickMarket(config, globalIndex, totalSlots)
			market, ok := g.markets.Get(marketID)
			if !ok {
				return nil, fmt.Errorf("simulator: unknown market %s", marketID)
			}

			side := SideBid
			if config.AlternateSides && accountIdx%2 == 1 {
				side = SideAsk
			}

			action, err := g.buildAction(config, market, side)
			if err != nil {
				return nil, err
			}

			strategy := MatchingStrategy{Kind: MatchAny}
			if config.AlternateSides && len(slots) > 0 {
				prev := &slots[len(slots)-1]
				if prev.Action.MarketID == market.ID && prev.Action.Side != side {
					strategy = MatchingStrategy{Kind: MatchWithAccount, WithAccountID: prev.Account}
					prev.Action.Strategy = MatchingStrategy{Kind: MatchWithAccount, WithAccountID: account}
				}
			}
			action.Strategy = strategy

			slots = append(slots, ActionSlot{
				Sequence:   globalIndex,
				Account:    account,
				Action:     action,
				State:      SlotPending,
				MaxRetries: config.MaxRetries,
			})
			globalIndex++
		}
	}
	return slots, nil
}

func (g *Generator) pickMarket(config SchedulerConfig, globalIndex, totalSlots int) uuid.UUID {
	markets := config.Markets
	switch config.MarketDistribution {
	case SameMarket:
		return markets[0]
	case Sequential:
		perMarket := totalSlots / len(markets)
		if perMarket == 0 {
			perMarket = 1
		}
		idx := globalIndex / perMarket
		if idx >= len(markets) {
			idx = len(markets) - 1
		}
		return markets[idx]
	default: // RoundRobin
		return markets[globalIndex%len(markets)]
	}
}

func (g *Generator) buildAction(config SchedulerConfig, market domain.Market, side Side) (Action, error) {
	spread := config.MaxAmount.Sub(config.MinAmount)
	bidAmount := config.MinAmount
	if spread.Sign() > 0 {
		bidAmount = config.MinAmount.Add(spread.Mul(decimal.NewFromFloat(g.rand.Float64())))
	}

	referencePrice, ok := g.prices.ReferencePriceFor(market.ID)
	if !ok {
		referencePrice = decimal.NewFromInt(1)
	}

	offset := config.BidPriceOffset
	bidAsset, askAsset := market.AssetOne, market.AssetTwo
	if side == SideAsk {
		offset = config.AskPriceOffset
		bidAsset, askAsset = market.AssetTwo, market.AssetOne
	}

	effectivePrice := referencePrice.Add(referencePrice.Mul(offset))
	if effectivePrice.Sign() <= 0 {
		effectivePrice = referencePrice
	}
	askAmount := bidAmount.Mul(effectivePrice)

	return Action{
		MarketID:  market.ID,
		BidAsset:  bidAsset,
		AskAsset:  askAsset,
		BidAmount: bidAmount,
		AskAmount: askAmount,
		Price:     effectivePrice,
		Side:      side,
	}, nil
}
