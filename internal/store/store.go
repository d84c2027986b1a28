// Package store is the gorm-backed persistence layer: one database, one set
// of tables, behind the repository interfaces internal/ledger,
// internal/journal and internal/matching depend on. Driver selection
// follows the teacher's database package: a postgres:// DSN opens Postgres,
// anything else is treated as a sqlite file path.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB wraps the gorm handle every repository in this package shares. dialect
// and locks back CheckpointStore's row-lock-vs-mutex fallback (see bars.go):
// sqlite does not honour SELECT ... FOR UPDATE, so checkpoint contention is
// instead serialized through locks, shared across every *DB derived from the
// same Open call (including the ones WithTx hands to its callback).
type DB struct {
	gorm    *gorm.DB
	dialect string
	locks   *checkpointLocks
}

// Open opens dsn (a postgres:// URL or a sqlite file path) and migrates
// every model this repo persists.
func Open(dsn string) (*DB, error) {
	var gdb *gorm.DB
	var err error
	dialect := "sqlite"

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialect = "postgres"
		gdb, err = gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	} else {
		if dir := filepath.Dir(dsn); dir != "." && dir != "" {
			if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
				return nil, fmt.Errorf("create sqlite directory: %w", mkErr)
			}
		}
		gdb, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := gdb.AutoMigrate(
		&assetRow{}, &walletRow{}, &marketRow{},
		&balanceEntryRow{}, &orderRow{}, &tradeRow{},
		&barRow{}, &checkpointRow{},
	); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	return &DB{gorm: gdb, dialect: dialect, locks: newCheckpointLocks()}, nil
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ledger returns the internal/ledger.Store implementation over this DB.
func (d *DB) Ledger() *LedgerStore { return &LedgerStore{db: d.gorm} }

// Journal returns the internal/journal.Store implementation over this DB.
func (d *DB) Journal() *TradeStore { return &TradeStore{db: d.gorm} }

// Orders returns the order catalog repository.
func (d *DB) Orders() *OrderStore { return &OrderStore{db: d.gorm} }

// Markets returns the market catalog repository.
func (d *DB) Markets() *MarketStore { return &MarketStore{db: d.gorm} }

// Assets returns the asset catalog repository.
func (d *DB) Assets() *AssetStore { return &AssetStore{db: d.gorm} }

// Wallets returns the wallet catalog repository.
func (d *DB) Wallets() *WalletStore { return &WalletStore{db: d.gorm} }

// Bars returns the OHLCV bar repository.
func (d *DB) Bars() *BarStore { return &BarStore{db: d.gorm} }

// Checkpoints returns the aggregator checkpoint repository.
func (d *DB) Checkpoints() *CheckpointStore {
	return &CheckpointStore{db: d.gorm, dialect: d.dialect, locks: d.locks}
}
