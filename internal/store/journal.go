package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumenex/core/internal/domain"
)

// TradeStore implements internal/journal.Store over the trades table. The
// row also carries the taker order's market/asset so ListByWindow can
// answer the aggregator's historical-bar query without a join.
type TradeStore struct {
	db *gorm.DB
}

func (s *TradeStore) FindMatched(ctx context.Context, orderLo, orderHi uuid.UUID) (domain.Trade, bool, error) {
	var row tradeRow
	err := s.db.WithContext(ctx).
		Where("settlement_status = ? AND ((maker_order_id = ? AND taker_order_id = ?) OR (maker_order_id = ? AND taker_order_id = ?))",
			int(domain.SettlementMatched), orderLo, orderHi, orderHi, orderLo).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Trade{}, false, nil
	}
	if err != nil {
		return domain.Trade{}, false, err
	}
	return row.toDomain(), true, nil
}

func (s *TradeStore) Insert(ctx context.Context, trade domain.Trade) error {
	var taker orderRow
	if err := s.db.WithContext(ctx).Where("id = ?", trade.TakerOrderID).First(&taker).Error; err != nil {
		return fmt.Errorf("resolve taker order %s for trade insert: %w", trade.TakerOrderID, err)
	}
	return s.db.WithContext(ctx).Create(tradeToRow(trade, taker.MarketID, taker.AskAsset)).Error
}

func (s *TradeStore) Update(ctx context.Context, trade domain.Trade) error {
	var existing tradeRow
	if err := s.db.WithContext(ctx).Where("id = ?", trade.ID).First(&existing).Error; err != nil {
		return err
	}
	updated := tradeToRow(trade, existing.MarketID, existing.AssetID)
	return s.db.WithContext(ctx).Save(&updated).Error
}

func (s *TradeStore) Get(ctx context.Context, tradeID uuid.UUID) (domain.Trade, error) {
	var row tradeRow
	if err := s.db.WithContext(ctx).Where("id = ?", tradeID).First(&row).Error; err != nil {
		return domain.Trade{}, fmt.Errorf("trade %s: %w", tradeID, err)
	}
	return row.toDomain(), nil
}

func (s *TradeStore) ListByWindow(ctx context.Context, marketID, assetID uuid.UUID, fromInclusive, toExclusive time.Time) ([]domain.Trade, error) {
	var rows []tradeRow
	err := s.db.WithContext(ctx).
		Where("market_id = ? AND asset_id = ? AND created_at >= ? AND created_at < ?", marketID, assetID, fromInclusive, toExclusive).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Trade, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}
