package domain

import "github.com/google/uuid"

// AssetType classifies an asset for downstream risk and settlement logic.
type AssetType int

const (
	AssetNative AssetType = iota
	AssetBridged
	AssetStablecoin
	AssetYieldBearing
	AssetVolatile
	AssetChainNative
)

func (t AssetType) String() string {
	switch t {
	case AssetNative:
		return "native"
	case AssetBridged:
		return "bridged"
	case AssetStablecoin:
		return "stablecoin"
	case AssetYieldBearing:
		return "yield_bearing"
	case AssetVolatile:
		return "volatile"
	case AssetChainNative:
		return "chain_native"
	default:
		return "unknown"
	}
}

// Asset is a tradable unit of account. Decimals constrains the smallest
// representable quantum of the asset; every amount of this asset is
// truncated to this precision before it is persisted or matched.
type Asset struct {
	ID       uuid.UUID
	Symbol   string
	Decimals int32
	Type     AssetType
}
