package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lumenex/core/internal/domain"
	"github.com/lumenex/core/internal/store"
	"github.com/lumenex/core/internal/xerrors"
)

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestLedgerStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	wallet, asset := uuid.New(), uuid.New()
	entry := domain.BalanceEntry{WalletID: wallet, AssetID: asset, Available: decimal.NewFromInt(100), Locked: decimal.Zero, Spent: decimal.Zero}
	require.NoError(t, db.Ledger().CreateEntry(ctx, entry))

	got, err := db.Ledger().GetEntry(ctx, wallet, asset)
	require.NoError(t, err)
	require.True(t, got.Available.Equal(decimal.NewFromInt(100)))

	got.Locked = decimal.NewFromInt(10)
	got.Available = decimal.NewFromInt(90)
	require.NoError(t, db.Ledger().UpdateEntry(ctx, got))

	all, err := db.Ledger().AllEntries(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.True(t, all[0].Locked.Equal(decimal.NewFromInt(10)))
}

func TestCatalogRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	asset := domain.Asset{ID: uuid.New(), Symbol: "BTC", Decimals: 8, Type: domain.AssetNative}
	require.NoError(t, db.Assets().Create(ctx, asset))
	gotAsset, err := db.Assets().Get(ctx, asset.ID)
	require.NoError(t, err)
	require.Equal(t, asset.Symbol, gotAsset.Symbol)
	require.Equal(t, int32(8), db.Assets().Decimals(asset.ID))
	require.Equal(t, int32(8), db.Assets().Decimals(uuid.New()), "unknown asset falls back to the default 8")

	wallet := domain.Wallet{ID: uuid.New(), OwnerAccountID: uuid.New(), Status: domain.WalletActive}
	require.NoError(t, db.Wallets().Create(ctx, wallet))
	gotWallet, err := db.Wallets().Get(ctx, wallet.ID)
	require.NoError(t, err)
	require.Equal(t, wallet.OwnerAccountID, gotWallet.OwnerAccountID)

	all, err := db.Wallets().All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	market := domain.Market{ID: uuid.New(), AssetOne: uuid.New(), AssetTwo: uuid.New(), Status: domain.MarketActive, Regulation: domain.Unregulated, MarketType: domain.MarketSpot}
	require.NoError(t, db.Markets().Create(ctx, market))
	gotMarket, err := db.Markets().Get(ctx, market.ID)
	require.NoError(t, err)
	require.Equal(t, market.AssetOne, gotMarket.AssetOne)

	markets, err := db.Markets().All(ctx)
	require.NoError(t, err)
	require.Len(t, markets, 1)

	market.Status = domain.MarketSuspended
	require.NoError(t, db.Markets().Update(ctx, market))
	gotMarket, err = db.Markets().Get(ctx, market.ID)
	require.NoError(t, err)
	require.Equal(t, domain.MarketSuspended, gotMarket.Status)
}

func TestOrderStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	market := uuid.New()
	order := domain.Order{
		ID: uuid.New(), WalletID: uuid.New(), MarketID: market,
		BidAsset: uuid.New(), AskAsset: uuid.New(),
		BidAmount: decimal.NewFromInt(10), AskAmount: decimal.NewFromInt(100),
		Status: domain.OrderOpen, SequenceNum: 1, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, db.Orders().Create(ctx, order))

	got, err := db.Orders().Get(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, got.BidAmount.Equal(decimal.NewFromInt(10)))

	open, err := db.Orders().ListOpenByMarket(ctx, market)
	require.NoError(t, err)
	require.Len(t, open, 1)

	order.Status = domain.OrderFilled
	require.NoError(t, db.Orders().Update(ctx, order))
	open, err = db.Orders().ListOpenByMarket(ctx, market)
	require.NoError(t, err)
	require.Len(t, open, 0)
}

func TestTradeStoreDenormalizesTakerAsset(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	market := uuid.New()
	assetA, assetB := uuid.New(), uuid.New()
	maker := domain.Order{ID: uuid.New(), MarketID: market, BidAsset: assetA, AskAsset: assetB, BidAmount: decimal.NewFromInt(10), AskAmount: decimal.NewFromInt(100), CreatedAt: time.Now().UTC()}
	taker := domain.Order{ID: uuid.New(), MarketID: market, BidAsset: assetB, AskAsset: assetA, BidAmount: decimal.NewFromInt(100), AskAmount: decimal.NewFromInt(10), CreatedAt: time.Now().UTC()}
	require.NoError(t, db.Orders().Create(ctx, maker))
	require.NoError(t, db.Orders().Create(ctx, taker))

	trade := domain.Trade{
		ID: uuid.New(), MakerOrderID: maker.ID, TakerOrderID: taker.ID,
		MakerFilledAmount: decimal.NewFromInt(10), TakerFilledAmount: decimal.NewFromInt(10),
		SettlementStatus: domain.SettlementMatched, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, db.Journal().Insert(ctx, trade))

	// The trade is tagged with the taker's ask asset (assetA), so a
	// ListByWindow scan for assetA finds it but one for assetB does not.
	found, err := db.Journal().ListByWindow(ctx, market, assetA, trade.CreatedAt.Add(-time.Minute), trade.CreatedAt.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, found, 1)

	notFound, err := db.Journal().ListByWindow(ctx, market, assetB, trade.CreatedAt.Add(-time.Minute), trade.CreatedAt.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, notFound, 0)

	got, err := db.Journal().Get(ctx, trade.ID)
	require.NoError(t, err)
	require.True(t, got.TakerFilledAmount.Equal(decimal.NewFromInt(10)))

	got.SettlementStatus = domain.SettlementSettled
	require.NoError(t, db.Journal().Update(ctx, got))

	stillFound, err := db.Journal().ListByWindow(ctx, market, assetA, trade.CreatedAt.Add(-time.Minute), trade.CreatedAt.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, stillFound, 1, "update must preserve the denormalized market/asset tag")
}

func TestBarAndCheckpointStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	market, asset := uuid.New(), uuid.New()
	interval, ok := domain.ParseInterval("1min")
	require.True(t, ok)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bar := domain.Bar{
		MarketID: market, AssetID: asset, Interval: interval,
		StartTime: start, EndTime: start.Add(time.Minute),
		Open: decimal.NewFromInt(1), High: decimal.NewFromInt(2), Low: decimal.NewFromInt(1), Close: decimal.NewFromInt(2),
		Volume: decimal.NewFromInt(5),
	}
	require.NoError(t, db.Bars().Upsert(ctx, bar))

	// idempotent overwrite at the same (market, asset, interval, start_time).
	bar.Close = decimal.NewFromInt(3)
	require.NoError(t, db.Bars().Upsert(ctx, bar))

	bars, err := db.Bars().ListRange(ctx, market, asset, interval, start, start.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	require.True(t, bars[0].Close.Equal(decimal.NewFromInt(3)))

	_, ok, err = db.Checkpoints().Get(ctx, market, asset, interval)
	require.NoError(t, err)
	require.False(t, ok)

	checkpoint := domain.Checkpoint{MarketID: market, AssetID: asset, Interval: interval, LastProcessedEnd: start.Add(time.Minute)}
	require.NoError(t, db.Checkpoints().Advance(ctx, checkpoint))

	got, ok, err := db.Checkpoints().Get(ctx, market, asset, interval)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.LastProcessedEnd.Equal(checkpoint.LastProcessedEnd))
	require.Equal(t, int64(1), got.Version)
}

func TestCheckpointAdvanceDetectsContention(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	market, asset := uuid.New(), uuid.New()
	interval, ok := domain.ParseInterval("1min")
	require.True(t, ok)

	first := domain.Checkpoint{MarketID: market, AssetID: asset, Interval: interval, LastProcessedEnd: time.Now().UTC()}
	require.NoError(t, db.Checkpoints().Advance(ctx, first))

	// A second writer racing off the same stale (pre-advance) read must be
	// rejected rather than silently clobbering the first writer's advance.
	stale := domain.Checkpoint{MarketID: market, AssetID: asset, Interval: interval, LastProcessedEnd: time.Now().UTC(), Version: 0}
	err := db.Checkpoints().Advance(ctx, stale)
	require.ErrorIs(t, err, xerrors.ErrCheckpointContention)

	got, ok, err := db.Checkpoints().Get(ctx, market, asset, interval)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), got.Version)

	current := domain.Checkpoint{MarketID: market, AssetID: asset, Interval: interval, LastProcessedEnd: time.Now().UTC(), Version: got.Version}
	require.NoError(t, db.Checkpoints().Advance(ctx, current))
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	asset := domain.Asset{ID: uuid.New(), Symbol: "ETH", Decimals: 18}
	err := db.WithTx(ctx, func(tx *store.DB) error {
		if txErr := tx.Assets().Create(ctx, asset); txErr != nil {
			return txErr
		}
		return context.DeadlineExceeded // force rollback
	})
	require.Error(t, err)

	_, err = db.Assets().Get(ctx, asset.ID)
	require.Error(t, err, "the transaction must have rolled back the insert")
}
