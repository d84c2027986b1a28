package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumenex/core/internal/domain"
)

// LedgerStore implements internal/ledger.Store over the balance_entries
// table. The ledger package itself serializes access per (wallet, asset)
// key, so this repository does no locking of its own — only straight
// row reads/writes inside whatever transaction gorm's default session uses.
type LedgerStore struct {
	db *gorm.DB
}

func (s *LedgerStore) GetEntry(ctx context.Context, walletID, assetID uuid.UUID) (domain.BalanceEntry, error) {
	var row balanceEntryRow
	err := s.db.WithContext(ctx).
		Where("wallet_id = ? AND asset_id = ?", walletID, assetID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.BalanceEntry{}, fmt.Errorf("balance entry for wallet %s asset %s: %w", walletID, assetID, err)
	}
	if err != nil {
		return domain.BalanceEntry{}, err
	}
	return row.toDomain(), nil
}

func (s *LedgerStore) CreateEntry(ctx context.Context, entry domain.BalanceEntry) error {
	return s.db.WithContext(ctx).Create(balanceEntryToRow(entry)).Error
}

func (s *LedgerStore) UpdateEntry(ctx context.Context, entry domain.BalanceEntry) error {
	return s.db.WithContext(ctx).Save(balanceEntryToRow(entry)).Error
}

func (s *LedgerStore) AllEntries(ctx context.Context) ([]domain.BalanceEntry, error) {
	var rows []balanceEntryRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.BalanceEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}
