package settlement_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lumenex/core/internal/domain"
	"github.com/lumenex/core/internal/journal"
	"github.com/lumenex/core/internal/ledger"
	"github.com/lumenex/core/internal/settlement"
)

type memLedgerStore struct {
	mu      sync.Mutex
	entries map[string]domain.BalanceEntry
}

func newMemLedgerStore() *memLedgerStore {
	return &memLedgerStore{entries: make(map[string]domain.BalanceEntry)}
}

func lkey(walletID, assetID uuid.UUID) string { return walletID.String() + ":" + assetID.String() }

func (s *memLedgerStore) GetEntry(_ context.Context, walletID, assetID uuid.UUID) (domain.BalanceEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[lkey(walletID, assetID)], nil
}

func (s *memLedgerStore) CreateEntry(_ context.Context, entry domain.BalanceEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[lkey(entry.WalletID, entry.AssetID)] = entry
	return nil
}

func (s *memLedgerStore) UpdateEntry(_ context.Context, entry domain.BalanceEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[lkey(entry.WalletID, entry.AssetID)] = entry
	return nil
}

func (s *memLedgerStore) AllEntries(_ context.Context) ([]domain.BalanceEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.BalanceEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	return out, nil
}

type memJournalStore struct {
	mu     sync.Mutex
	trades map[uuid.UUID]domain.Trade
	pairs  map[string]uuid.UUID
}

func newMemJournalStore() *memJournalStore {
	return &memJournalStore{trades: make(map[uuid.UUID]domain.Trade), pairs: make(map[string]uuid.UUID)}
}

func (s *memJournalStore) FindMatched(_ context.Context, lo, hi uuid.UUID) (domain.Trade, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.pairs[lo.String()+":"+hi.String()]
	if !ok {
		return domain.Trade{}, false, nil
	}
	return s.trades[id], true, nil
}

func (s *memJournalStore) Insert(_ context.Context, trade domain.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades[trade.ID] = trade
	lo, hi := domain.MatchKey(trade.MakerOrderID, trade.TakerOrderID)
	s.pairs[lo.String()+":"+hi.String()] = trade.ID
	return nil
}

func (s *memJournalStore) Update(_ context.Context, trade domain.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades[trade.ID] = trade
	return nil
}

func (s *memJournalStore) Get(_ context.Context, tradeID uuid.UUID) (domain.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trades[tradeID], nil
}

func (s *memJournalStore) ListByWindow(context.Context, uuid.UUID, uuid.UUID, time.Time, time.Time) ([]domain.Trade, error) {
	return nil, nil
}

type fakeOrders struct {
	orders map[uuid.UUID]domain.Order
}

func (f fakeOrders) Get(_ context.Context, orderID uuid.UUID) (domain.Order, error) {
	return f.orders[orderID], nil
}

func TestHandlerMarksSettledOnSuccess(t *testing.T) {
	ctx := context.Background()
	jStore := newMemJournalStore()
	j := journal.New(jStore)
	led := ledger.New(newMemLedgerStore())

	trade, _, err := j.RecordMatch(ctx, domain.Trade{MakerOrderID: uuid.New(), TakerOrderID: uuid.New(), MakerFilledAmount: decimal.NewFromInt(1), TakerFilledAmount: decimal.NewFromInt(1)})
	require.NoError(t, err)

	handler := settlement.NewHandler(zerolog.Nop(), j, led, fakeOrders{})
	require.NoError(t, handler.HandleResult(ctx, settlement.Result{TradeID: trade.ID, Outcome: settlement.OutcomeSettled, TxRef: "0x1"}))

	got, err := j.Get(ctx, trade.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SettlementSettled, got.SettlementStatus)
}

func TestHandlerCompensatesLedgerOnFailure(t *testing.T) {
	ctx := context.Background()
	j := journal.New(newMemJournalStore())
	led := ledger.New(newMemLedgerStore())

	makerWallet, takerWallet := uuid.New(), uuid.New()
	assetX, assetY := uuid.New(), uuid.New()
	maker := domain.Order{ID: uuid.New(), WalletID: makerWallet, AskAsset: assetY}
	taker := domain.Order{ID: uuid.New(), WalletID: takerWallet, AskAsset: assetX}

	// simulate the spend the matching engine already performed for this trade.
	require.NoError(t, led.SetBudget(ctx, makerWallet, assetY, decimal.NewFromInt(10)))
	require.NoError(t, led.Lock(ctx, makerWallet, assetY, decimal.NewFromInt(10)))
	require.NoError(t, led.Spend(ctx, makerWallet, assetY, decimal.NewFromInt(10)))
	require.NoError(t, led.SetBudget(ctx, takerWallet, assetX, decimal.NewFromInt(5)))
	require.NoError(t, led.Lock(ctx, takerWallet, assetX, decimal.NewFromInt(5)))
	require.NoError(t, led.Spend(ctx, takerWallet, assetX, decimal.NewFromInt(5)))

	trade, _, err := j.RecordMatch(ctx, domain.Trade{MakerOrderID: maker.ID, TakerOrderID: taker.ID, MakerFilledAmount: decimal.NewFromInt(10), TakerFilledAmount: decimal.NewFromInt(5)})
	require.NoError(t, err)

	handler := settlement.NewHandler(zerolog.Nop(), j, led, fakeOrders{orders: map[uuid.UUID]domain.Order{maker.ID: maker, taker.ID: taker}})
	require.NoError(t, handler.HandleResult(ctx, settlement.Result{TradeID: trade.ID, Outcome: settlement.OutcomeFailed, Reason: "chain rejected"}))

	got, err := j.Get(ctx, trade.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SettlementFailed, got.SettlementStatus)

	makerTotal, err := led.Total(ctx, makerWallet, assetY)
	require.NoError(t, err)
	require.True(t, makerTotal.Equal(decimal.NewFromInt(10)))
	makerAvailable, err := led.Available(ctx, makerWallet, assetY)
	require.NoError(t, err)
	require.True(t, makerAvailable.Equal(decimal.NewFromInt(10)), "compensation must refund all the way to available, not stop at locked")

	takerTotal, err := led.Total(ctx, takerWallet, assetX)
	require.NoError(t, err)
	require.True(t, takerTotal.Equal(decimal.NewFromInt(5)))
	takerAvailable, err := led.Available(ctx, takerWallet, assetX)
	require.NoError(t, err)
	require.True(t, takerAvailable.Equal(decimal.NewFromInt(5)), "compensation must refund all the way to available, not stop at locked")
}

func TestHandlerRejectsUnknownTrade(t *testing.T) {
	ctx := context.Background()
	j := journal.New(newMemJournalStore())
	led := ledger.New(newMemLedgerStore())
	handler := settlement.NewHandler(zerolog.Nop(), j, led, fakeOrders{})

	err := handler.HandleResult(ctx, settlement.Result{TradeID: uuid.New(), Outcome: settlement.OutcomeSettled})
	require.Error(t, err)
}

func TestNoopBridgeSettlesOnSubmit(t *testing.T) {
	ctx := context.Background()
	bridge := settlement.NewNoopBridge()
	trade := domain.Trade{ID: uuid.New()}

	require.NoError(t, bridge.Submit(ctx, trade))

	select {
	case result := <-bridge.Results():
		require.Equal(t, trade.ID, result.TradeID)
		require.Equal(t, settlement.OutcomeSettled, result.Outcome)
	default:
		t.Fatal("expected a settlement result to be enqueued")
	}
}
