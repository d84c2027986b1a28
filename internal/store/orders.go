package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumenex/core/internal/domain"
)

// OrderStore is the order catalog: every placement, open or closed, so the
// settlement bridge's callback handler can resolve a trade's maker/taker
// orders (it implements internal/settlement.OrderLookup) and so the engine
// can rebuild its in-memory book on restart by replaying open orders.
type OrderStore struct {
	db *gorm.DB
}

// Create persists a newly-admitted order.
func (s *OrderStore) Create(ctx context.Context, order domain.Order) error {
	return s.db.WithContext(ctx).Create(orderToRow(order)).Error
}

// Update persists an order's mutated fields (fills, cancellation).
func (s *OrderStore) Update(ctx context.Context, order domain.Order) error {
	return s.db.WithContext(ctx).Save(orderToRow(order)).Error
}

// Get resolves a single order by id. Satisfies settlement.OrderLookup.
func (s *OrderStore) Get(ctx context.Context, orderID uuid.UUID) (domain.Order, error) {
	var row orderRow
	if err := s.db.WithContext(ctx).Where("id = ?", orderID).First(&row).Error; err != nil {
		return domain.Order{}, fmt.Errorf("order %s: %w", orderID, err)
	}
	return row.toDomain(), nil
}

// ListOpenByMarket returns every resting (open) order for a market, in
// admission order, used to rebuild the order book after a restart.
func (s *OrderStore) ListOpenByMarket(ctx context.Context, marketID uuid.UUID) ([]domain.Order, error) {
	var rows []orderRow
	err := s.db.WithContext(ctx).
		Where("market_id = ? AND status = ?", marketID, int(domain.OrderOpen)).
		Order("sequence_num ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// ListByWallet returns a wallet's orders, most recent first, for reporting.
func (s *OrderStore) ListByWallet(ctx context.Context, walletID uuid.UUID, limit int) ([]domain.Order, error) {
	var rows []orderRow
	q := s.db.WithContext(ctx).Where("wallet_id = ?", walletID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}
