package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// MarketStatus gates whether a market accepts placements.
type MarketStatus int

const (
	MarketActive MarketStatus = iota
	MarketInactive
	MarketSuspended
)

func (s MarketStatus) String() string {
	switch s {
	case MarketActive:
		return "active"
	case MarketInactive:
		return "inactive"
	case MarketSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// Regulation determines whether the market's price-band discipline (spec
// §4.4) applies to a placement.
type Regulation int

const (
	Unregulated Regulation = iota
	Regulated
)

func (r Regulation) String() string {
	if r == Regulated {
		return "regulated"
	}
	return "unregulated"
}

// MarketType narrows which markets the matching engine will cross. Only
// Spot markets match in this engine; Derivative/Futures exist as catalog
// entries for forward-compatibility with out-of-scope subsystems.
type MarketType int

const (
	MarketSpot MarketType = iota
	MarketDerivative
	MarketFutures
)

func (t MarketType) String() string {
	switch t {
	case MarketSpot:
		return "spot"
	case MarketDerivative:
		return "derivative"
	case MarketFutures:
		return "futures"
	default:
		return "unknown"
	}
}

// Market pairs two distinct assets for trading. AssetOne/AssetTwo are
// unordered: an order's {BidAsset, AskAsset} must equal this pair in either
// direction.
type Market struct {
	ID         uuid.UUID
	AssetOne   uuid.UUID
	AssetTwo   uuid.UUID
	Status     MarketStatus
	Regulation Regulation
	MarketType MarketType
}

// Tradable reports whether the engine may match orders on this market: only
// spot markets in active status participate.
func (m Market) Tradable() bool {
	return m.MarketType == MarketSpot && m.Status == MarketActive
}

// HasAssetPair reports whether {bidAsset, askAsset} is the market's asset
// pair, in either direction.
func (m Market) HasAssetPair(bidAsset, askAsset uuid.UUID) bool {
	return (m.AssetOne == bidAsset && m.AssetTwo == askAsset) ||
		(m.AssetOne == askAsset && m.AssetTwo == bidAsset)
}

// Validate enforces the market-level invariant from spec §3.
func (m Market) Validate() error {
	if m.AssetOne == m.AssetTwo {
		return fmt.Errorf("market %s: asset_one equals asset_two", m.ID)
	}
	return nil
}
