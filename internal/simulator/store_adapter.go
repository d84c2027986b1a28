package simulator

import (
	"context"

	"github.com/google/uuid"

	"github.com/lumenex/core/internal/domain"
	"github.com/lumenex/core/internal/store"
)

// StoreMarkets snapshots the market catalog once at startup into an
// in-memory map, satisfying MarketLookup for slot generation without
// round-tripping to the store on every slot.
type StoreMarkets struct {
	markets map[uuid.UUID]domain.Market
}

// NewStoreMarkets loads every market from markets into the lookup.
func NewStoreMarkets(ctx context.Context, markets *store.MarketStore) (*StoreMarkets, error) {
	all, err := markets.All(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]domain.Market, len(all))
	for _, m := range all {
		byID[m.ID] = m
	}
	return &StoreMarkets{markets: byID}, nil
}

func (s *StoreMarkets) Get(marketID uuid.UUID) (domain.Market, bool) {
	m, ok := s.markets[marketID]
	return m, ok
}
