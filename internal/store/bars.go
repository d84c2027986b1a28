package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lumenex/core/internal/domain"
	"github.com/lumenex/core/internal/xerrors"
)

// BarStore persists OHLCV bars, keyed (market, asset, interval, start_time).
// Upsert is idempotent so the aggregator can safely re-emit the in-progress
// bar on every tick and the final bar again on resume after a crash.
type BarStore struct {
	db *gorm.DB
}

// Upsert writes bar, overwriting any existing row with the same key.
func (s *BarStore) Upsert(ctx context.Context, bar domain.Bar) error {
	row := barToRow(bar)
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "market_id"}, {Name: "asset_id"}, {Name: "interval"}, {Name: "start_time"}},
			DoUpdates: clause.AssignmentColumns([]string{"end_time", "open", "high", "low", "close", "volume", "data_provider_type"}),
		}).
		Create(&row).Error
}

// ListRange returns bars for (marketID, assetID, interval) with
// start_time in [from, to), ascending.
func (s *BarStore) ListRange(ctx context.Context, marketID, assetID uuid.UUID, interval domain.Interval, from, to time.Time) ([]domain.Bar, error) {
	var rows []barRow
	err := s.db.WithContext(ctx).
		Where("market_id = ? AND asset_id = ? AND interval = ? AND start_time >= ? AND start_time < ?",
			marketID, assetID, int(interval), from, to).
		Order("start_time ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Bar, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// CheckpointStore persists the aggregator's per-(market, asset, interval)
// progress marker. Concurrent aggregator runs on the same key are forbidden,
// enforced by the checkpoint row acting as a lock: Advance takes a
// row-level lock before comparing versions, via SELECT ... FOR UPDATE on
// postgres or, since sqlite has no row locking, via locks instead.
type CheckpointStore struct {
	db      *gorm.DB
	dialect string
	locks   *checkpointLocks
}

// checkpointLocks is the sqlite fallback for SELECT ... FOR UPDATE: one
// mutex per (market, asset, interval), shared across every CheckpointStore
// derived from the same Open call so a transaction boundary doesn't lose
// the lock.
type checkpointLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func newCheckpointLocks() *checkpointLocks {
	return &checkpointLocks{m: make(map[string]*sync.Mutex)}
}

func (l *checkpointLocks) get(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.m[key]
	if !ok {
		m = &sync.Mutex{}
		l.m[key] = m
	}
	return m
}

func checkpointKey(marketID, assetID uuid.UUID, interval domain.Interval) string {
	return marketID.String() + "/" + assetID.String() + "/" + interval.String()
}

// Get returns the checkpoint, or ok=false if none has been written yet.
func (s *CheckpointStore) Get(ctx context.Context, marketID, assetID uuid.UUID, interval domain.Interval) (domain.Checkpoint, bool, error) {
	var row checkpointRow
	err := s.db.WithContext(ctx).
		Where("market_id = ? AND asset_id = ? AND interval = ?", marketID, assetID, int(interval)).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Checkpoint{}, false, nil
	}
	if err != nil {
		return domain.Checkpoint{}, false, err
	}
	return row.toDomain(), true, nil
}

// Advance moves the checkpoint to checkpoint.LastProcessedEnd, provided
// checkpoint.Version still matches the version currently stored (0 for a
// row that doesn't exist yet). It fails with xerrors.ErrCheckpointContention
// if another writer has already advanced the row, and otherwise bumps the
// stored version by one. Callers advance this in the same transaction as
// the bar write it corresponds to (see internal/aggregator) so a crash
// between the two never leaves the checkpoint ahead of what was actually
// written.
func (s *CheckpointStore) Advance(ctx context.Context, checkpoint domain.Checkpoint) error {
	key := checkpointKey(checkpoint.MarketID, checkpoint.AssetID, checkpoint.Interval)
	if s.dialect != "postgres" {
		lock := s.locks.get(key)
		lock.Lock()
		defer lock.Unlock()
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if s.dialect == "postgres" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var existing checkpointRow
		err := q.Where("market_id = ? AND asset_id = ? AND interval = ?",
			checkpoint.MarketID, checkpoint.AssetID, int(checkpoint.Interval)).
			First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if checkpoint.Version != 0 {
				return xerrors.ErrCheckpointContention
			}
			row := checkpointToRow(checkpoint)
			row.Version = 1
			return tx.Create(&row).Error
		case err != nil:
			return err
		}

		if existing.Version != checkpoint.Version {
			return xerrors.ErrCheckpointContention
		}
		existing.LastProcessedEnd = checkpoint.LastProcessedEnd
		existing.Version++
		return tx.Save(&existing).Error
	})
}

// WithTx runs fn inside a database transaction, used by the aggregator to
// make a bar upsert and its checkpoint advance atomic.
func (d *DB) WithTx(ctx context.Context, fn func(tx *DB) error) error {
	return d.gorm.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&DB{gorm: gtx, dialect: d.dialect, locks: d.locks})
	})
}
