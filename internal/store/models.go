package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lumenex/core/internal/domain"
)

// assetRow is the gorm row for domain.Asset.
type assetRow struct {
	ID       uuid.UUID `gorm:"primaryKey"`
	Symbol   string    `gorm:"uniqueIndex"`
	Decimals int32
	Type     int
}

func (assetRow) TableName() string { return "assets" }

func assetToRow(a domain.Asset) assetRow {
	return assetRow{ID: a.ID, Symbol: a.Symbol, Decimals: a.Decimals, Type: int(a.Type)}
}

func (r assetRow) toDomain() domain.Asset {
	return domain.Asset{ID: r.ID, Symbol: r.Symbol, Decimals: r.Decimals, Type: domain.AssetType(r.Type)}
}

// walletRow is the gorm row for domain.Wallet.
type walletRow struct {
	ID             uuid.UUID `gorm:"primaryKey"`
	OwnerAccountID uuid.UUID `gorm:"index"`
	Status         int
}

func (walletRow) TableName() string { return "wallets" }

func walletToRow(w domain.Wallet) walletRow {
	return walletRow{ID: w.ID, OwnerAccountID: w.OwnerAccountID, Status: int(w.Status)}
}

func (r walletRow) toDomain() domain.Wallet {
	return domain.Wallet{ID: r.ID, OwnerAccountID: r.OwnerAccountID, Status: domain.WalletStatus(r.Status)}
}

// marketRow is the gorm row for domain.Market.
type marketRow struct {
	ID         uuid.UUID `gorm:"primaryKey"`
	AssetOne   uuid.UUID `gorm:"index"`
	AssetTwo   uuid.UUID `gorm:"index"`
	Status     int
	Regulation int
	MarketType int
}

func (marketRow) TableName() string { return "markets" }

func marketToRow(m domain.Market) marketRow {
	return marketRow{
		ID: m.ID, AssetOne: m.AssetOne, AssetTwo: m.AssetTwo,
		Status: int(m.Status), Regulation: int(m.Regulation), MarketType: int(m.MarketType),
	}
}

func (r marketRow) toDomain() domain.Market {
	return domain.Market{
		ID: r.ID, AssetOne: r.AssetOne, AssetTwo: r.AssetTwo,
		Status: domain.MarketStatus(r.Status), Regulation: domain.Regulation(r.Regulation),
		MarketType: domain.MarketType(r.MarketType),
	}
}

// balanceEntryRow is the gorm row for domain.BalanceEntry, keyed by the
// composite (wallet_id, asset_id) the ledger addresses every entry by.
type balanceEntryRow struct {
	WalletID  uuid.UUID `gorm:"primaryKey"`
	AssetID   uuid.UUID `gorm:"primaryKey"`
	Available decimal.Decimal `gorm:"type:decimal(38,18)"`
	Locked    decimal.Decimal `gorm:"type:decimal(38,18)"`
	Spent     decimal.Decimal `gorm:"type:decimal(38,18)"`
}

func (balanceEntryRow) TableName() string { return "balance_entries" }

func balanceEntryToRow(e domain.BalanceEntry) balanceEntryRow {
	return balanceEntryRow{WalletID: e.WalletID, AssetID: e.AssetID, Available: e.Available, Locked: e.Locked, Spent: e.Spent}
}

func (r balanceEntryRow) toDomain() domain.BalanceEntry {
	return domain.BalanceEntry{WalletID: r.WalletID, AssetID: r.AssetID, Available: r.Available, Locked: r.Locked, Spent: r.Spent}
}

// orderRow is the gorm row for domain.Order.
type orderRow struct {
	ID          uuid.UUID `gorm:"primaryKey"`
	WalletID    uuid.UUID `gorm:"index"`
	MarketID    uuid.UUID `gorm:"index"`
	BidAsset    uuid.UUID `gorm:"index:idx_orders_bid_ask"`
	AskAsset    uuid.UUID `gorm:"index:idx_orders_bid_ask"`
	BidAmount   decimal.Decimal `gorm:"type:decimal(38,18)"`
	AskAmount   decimal.Decimal `gorm:"type:decimal(38,18)"`
	FilledBid   decimal.Decimal `gorm:"type:decimal(38,18)"`
	FilledAsk   decimal.Decimal `gorm:"type:decimal(38,18)"`
	Mode        int
	OrderType   int
	Status      int `gorm:"index"`
	SequenceNum uint64
	CreatedAt   time.Time
	FilledAt    *time.Time
	CancelledAt *time.Time
	ExpiresAt   *time.Time
}

func (orderRow) TableName() string { return "orders" }

func orderToRow(o domain.Order) orderRow {
	return orderRow{
		ID: o.ID, WalletID: o.WalletID, MarketID: o.MarketID,
		BidAsset: o.BidAsset, AskAsset: o.AskAsset,
		BidAmount: o.BidAmount, AskAmount: o.AskAmount,
		FilledBid: o.FilledBid, FilledAsk: o.FilledAsk,
		Mode: int(o.Mode), OrderType: int(o.OrderType), Status: int(o.Status),
		SequenceNum: o.SequenceNum, CreatedAt: o.CreatedAt,
		FilledAt: o.FilledAt, CancelledAt: o.CancelledAt, ExpiresAt: o.ExpiresAt,
	}
}

func (r orderRow) toDomain() domain.Order {
	return domain.Order{
		ID: r.ID, WalletID: r.WalletID, MarketID: r.MarketID,
		BidAsset: r.BidAsset, AskAsset: r.AskAsset,
		BidAmount: r.BidAmount, AskAmount: r.AskAmount,
		FilledBid: r.FilledBid, FilledAsk: r.FilledAsk,
		Mode: domain.FillMode(r.Mode), OrderType: domain.OrderType(r.OrderType), Status: domain.OrderStatus(r.Status),
		SequenceNum: r.SequenceNum, CreatedAt: r.CreatedAt,
		FilledAt: r.FilledAt, CancelledAt: r.CancelledAt, ExpiresAt: r.ExpiresAt,
	}
}

// tradeRow is the gorm row for domain.Trade.
type tradeRow struct {
	ID                uuid.UUID `gorm:"primaryKey"`
	MakerOrderID      uuid.UUID `gorm:"index"`
	TakerOrderID      uuid.UUID `gorm:"index"`
	MakerFilledAmount decimal.Decimal `gorm:"type:decimal(38,18)"`
	TakerFilledAmount decimal.Decimal `gorm:"type:decimal(38,18)"`
	SettlementStatus  int             `gorm:"index"`
	CreatedAt         time.Time       `gorm:"index"`
	SettledAt         *time.Time
	SettlementTx      *string
	// MarketID/AssetID are denormalized from the taker order at insert time
	// so ListByWindow can answer the aggregator's historical-bar query
	// without a join back through orders.
	MarketID uuid.UUID `gorm:"index"`
	AssetID  uuid.UUID `gorm:"index"`
}

func (tradeRow) TableName() string { return "trades" }

func tradeToRow(t domain.Trade, marketID, assetID uuid.UUID) tradeRow {
	return tradeRow{
		ID: t.ID, MakerOrderID: t.MakerOrderID, TakerOrderID: t.TakerOrderID,
		MakerFilledAmount: t.MakerFilledAmount, TakerFilledAmount: t.TakerFilledAmount,
		SettlementStatus: int(t.SettlementStatus), CreatedAt: t.CreatedAt,
		SettledAt: t.SettledAt, SettlementTx: t.SettlementTx,
		MarketID: marketID, AssetID: assetID,
	}
}

func (r tradeRow) toDomain() domain.Trade {
	return domain.Trade{
		ID: r.ID, MakerOrderID: r.MakerOrderID, TakerOrderID: r.TakerOrderID,
		MakerFilledAmount: r.MakerFilledAmount, TakerFilledAmount: r.TakerFilledAmount,
		SettlementStatus: domain.SettlementStatus(r.SettlementStatus), CreatedAt: r.CreatedAt,
		SettledAt: r.SettledAt, SettlementTx: r.SettlementTx,
	}
}

// barRow is the gorm row for domain.Bar.
type barRow struct {
	ID               uint `gorm:"primaryKey;autoIncrement"`
	MarketID         uuid.UUID       `gorm:"uniqueIndex:bar_key"`
	AssetID          uuid.UUID       `gorm:"uniqueIndex:bar_key"`
	Interval         int             `gorm:"uniqueIndex:bar_key"`
	StartTime        time.Time       `gorm:"uniqueIndex:bar_key"`
	EndTime          time.Time
	Open             decimal.Decimal `gorm:"type:decimal(38,18)"`
	High             decimal.Decimal `gorm:"type:decimal(38,18)"`
	Low              decimal.Decimal `gorm:"type:decimal(38,18)"`
	Close            decimal.Decimal `gorm:"type:decimal(38,18)"`
	Volume           decimal.Decimal `gorm:"type:decimal(38,18)"`
	DataProviderType string
}

func (barRow) TableName() string { return "bars" }

func barToRow(b domain.Bar) barRow {
	return barRow{
		MarketID: b.MarketID, AssetID: b.AssetID, Interval: int(b.Interval),
		StartTime: b.StartTime, EndTime: b.EndTime,
		Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume,
		DataProviderType: b.DataProviderType,
	}
}

func (r barRow) toDomain() domain.Bar {
	return domain.Bar{
		MarketID: r.MarketID, AssetID: r.AssetID, Interval: domain.Interval(r.Interval),
		StartTime: r.StartTime, EndTime: r.EndTime,
		Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume,
		DataProviderType: r.DataProviderType,
	}
}

// checkpointRow is the gorm row for domain.Checkpoint. Version is bumped on
// every Advance and used as the optimistic-concurrency guard (see
// CheckpointStore.Advance in bars.go).
type checkpointRow struct {
	MarketID         uuid.UUID `gorm:"primaryKey"`
	AssetID          uuid.UUID `gorm:"primaryKey"`
	Interval         int       `gorm:"primaryKey"`
	LastProcessedEnd time.Time
	Version          int64
}

func (checkpointRow) TableName() string { return "checkpoints" }

func checkpointToRow(c domain.Checkpoint) checkpointRow {
	return checkpointRow{MarketID: c.MarketID, AssetID: c.AssetID, Interval: int(c.Interval), LastProcessedEnd: c.LastProcessedEnd, Version: c.Version}
}

func (r checkpointRow) toDomain() domain.Checkpoint {
	return domain.Checkpoint{MarketID: r.MarketID, AssetID: r.AssetID, Interval: domain.Interval(r.Interval), LastProcessedEnd: r.LastProcessedEnd, Version: r.Version}
}
