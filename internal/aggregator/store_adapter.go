package aggregator

import (
	"context"

	"github.com/lumenex/core/internal/store"
)

// StoreAtomic adapts *store.DB's transaction primitive into the Atomic seam
// Aggregator writes through.
type StoreAtomic struct {
	db *store.DB
}

// NewStoreAtomic wraps db for use as an Aggregator's Atomic dependency.
func NewStoreAtomic(db *store.DB) StoreAtomic {
	return StoreAtomic{db: db}
}

func (s StoreAtomic) WithAtomicWrite(ctx context.Context, fn func(BarWriter, CheckpointStore) error) error {
	return s.db.WithTx(ctx, func(tx *store.DB) error {
		return fn(tx.Bars(), tx.Checkpoints())
	})
}

func (s StoreAtomic) Checkpoints() CheckpointStore {
	return s.db.Checkpoints()
}
