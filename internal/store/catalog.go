package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumenex/core/internal/domain"
)

// AssetStore is the asset catalog: symbol, decimal precision, type.
type AssetStore struct {
	db *gorm.DB
}

func (s *AssetStore) Create(ctx context.Context, asset domain.Asset) error {
	return s.db.WithContext(ctx).Create(assetToRow(asset)).Error
}

func (s *AssetStore) Get(ctx context.Context, assetID uuid.UUID) (domain.Asset, error) {
	var row assetRow
	if err := s.db.WithContext(ctx).Where("id = ?", assetID).First(&row).Error; err != nil {
		return domain.Asset{}, fmt.Errorf("asset %s: %w", assetID, err)
	}
	return row.toDomain(), nil
}

func (s *AssetStore) All(ctx context.Context) ([]domain.Asset, error) {
	var rows []assetRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Asset, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// Decimals implements internal/matching.AssetLookup directly against the
// catalog, so a deployment with many assets doesn't need to keep a
// hand-maintained in-memory map in sync with the asset table.
func (s *AssetStore) Decimals(assetID uuid.UUID) int32 {
	asset, err := s.Get(context.Background(), assetID)
	if err != nil {
		return 8
	}
	return asset.Decimals
}

// WalletStore is the wallet catalog.
type WalletStore struct {
	db *gorm.DB
}

func (s *WalletStore) Create(ctx context.Context, wallet domain.Wallet) error {
	return s.db.WithContext(ctx).Create(walletToRow(wallet)).Error
}

func (s *WalletStore) Get(ctx context.Context, walletID uuid.UUID) (domain.Wallet, error) {
	var row walletRow
	if err := s.db.WithContext(ctx).Where("id = ?", walletID).First(&row).Error; err != nil {
		return domain.Wallet{}, fmt.Errorf("wallet %s: %w", walletID, err)
	}
	return row.toDomain(), nil
}

// All lists every wallet in the catalog — used by the simulator CLI to
// resolve its pool of accounts (optionally narrowed by --account-filter).
func (s *WalletStore) All(ctx context.Context) ([]domain.Wallet, error) {
	var rows []walletRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Wallet, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// MarketStore is the market catalog.
type MarketStore struct {
	db *gorm.DB
}

func (s *MarketStore) Create(ctx context.Context, market domain.Market) error {
	return s.db.WithContext(ctx).Create(marketToRow(market)).Error
}

func (s *MarketStore) Get(ctx context.Context, marketID uuid.UUID) (domain.Market, error) {
	var row marketRow
	if err := s.db.WithContext(ctx).Where("id = ?", marketID).First(&row).Error; err != nil {
		return domain.Market{}, fmt.Errorf("market %s: %w", marketID, err)
	}
	return row.toDomain(), nil
}

func (s *MarketStore) All(ctx context.Context) ([]domain.Market, error) {
	var rows []marketRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Market, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *MarketStore) Update(ctx context.Context, market domain.Market) error {
	return s.db.WithContext(ctx).Save(marketToRow(market)).Error
}
