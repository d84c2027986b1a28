package orderbook_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lumenex/core/internal/domain"
	"github.com/lumenex/core/internal/orderbook"
	"github.com/lumenex/core/internal/xerrors"
)

func newOrder(bidAsset, askAsset uuid.UUID, bid, ask int64, createdAt time.Time) *domain.Order {
	return &domain.Order{
		ID: uuid.New(), BidAsset: bidAsset, AskAsset: askAsset,
		BidAmount: decimal.NewFromInt(bid), AskAmount: decimal.NewFromInt(ask),
		Status: domain.OrderOpen, CreatedAt: createdAt,
	}
}

func TestBookInsertAndComplementaryLookup(t *testing.T) {
	assetX, assetY := uuid.New(), uuid.New()
	book := orderbook.NewBook(uuid.New())

	now := time.Now().UTC()
	// resting order wants X, offers Y: bid_asset=X, ask_asset=Y, price = ask/bid = 2/1 = 2
	resting := newOrder(assetX, assetY, 1, 2, now)
	require.NoError(t, book.Insert(resting))
	require.Equal(t, 1, book.TotalOrders())

	// a taker wanting Y and offering X has bid_asset=Y, ask_asset=X; its
	// complementary resting orders have bid_asset=X, ask_asset=Y -- exactly
	// what we inserted.
	matches := book.Complementary(assetY, assetX, nil)
	require.Len(t, matches, 1)
	require.Equal(t, resting.ID, matches[0].ID)

	price, ok := book.BestComplementaryPrice(assetY, assetX)
	require.True(t, ok)
	require.True(t, price.Equal(decimal.NewFromInt(2)))
}

func TestBookInsertRejectsDuplicateOrNonOpen(t *testing.T) {
	assetX, assetY := uuid.New(), uuid.New()
	book := orderbook.NewBook(uuid.New())
	order := newOrder(assetX, assetY, 1, 2, time.Now().UTC())

	require.NoError(t, book.Insert(order))
	require.ErrorIs(t, book.Insert(order), xerrors.ErrDuplicatePlacement)

	closed := newOrder(assetX, assetY, 1, 2, time.Now().UTC())
	closed.Status = domain.OrderClosed
	err := book.Insert(closed)
	require.ErrorIs(t, err, xerrors.ErrOrderNotOpen)
}

func TestBookCancelRemovesOrderAndEmptiesLevel(t *testing.T) {
	assetX, assetY := uuid.New(), uuid.New()
	book := orderbook.NewBook(uuid.New())
	order := newOrder(assetX, assetY, 1, 2, time.Now().UTC())
	require.NoError(t, book.Insert(order))

	cancelled, err := book.Cancel(order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderCancelled, cancelled.Status)
	require.Equal(t, 0, book.TotalOrders())
	require.Nil(t, book.Get(order.ID))

	_, err = book.Cancel(order.ID)
	require.ErrorIs(t, err, xerrors.ErrOrderNotFound)
}

func TestBookUpdateFillsEvictsFilledOrder(t *testing.T) {
	assetX, assetY := uuid.New(), uuid.New()
	book := orderbook.NewBook(uuid.New())
	order := newOrder(assetX, assetY, 10, 20, time.Now().UTC())
	require.NoError(t, book.Insert(order))

	require.NoError(t, book.UpdateFills(order.ID, decimal.NewFromInt(4), decimal.NewFromInt(8)))
	require.NotNil(t, book.Get(order.ID))
	require.Equal(t, 1, book.TotalOrders())

	require.NoError(t, book.UpdateFills(order.ID, decimal.NewFromInt(6), decimal.NewFromInt(12)))
	require.True(t, order.IsFilled())
	require.Nil(t, book.Get(order.ID))
	require.Equal(t, 0, book.TotalOrders())
}

func TestBookComplementaryOrdersBestPriceFirst(t *testing.T) {
	assetX, assetY := uuid.New(), uuid.New()
	book := orderbook.NewBook(uuid.New())
	now := time.Now().UTC()

	cheap := newOrder(assetX, assetY, 1, 1, now)  // price 1
	mid := newOrder(assetX, assetY, 1, 2, now)     // price 2
	expensive := newOrder(assetX, assetY, 1, 3, now.Add(time.Second)) // price 3
	require.NoError(t, book.Insert(mid))
	require.NoError(t, book.Insert(expensive))
	require.NoError(t, book.Insert(cheap))

	matches := book.Complementary(assetY, assetX, nil)
	require.Len(t, matches, 3)
	require.Equal(t, cheap.ID, matches[0].ID)
	require.Equal(t, mid.ID, matches[1].ID)
	require.Equal(t, expensive.ID, matches[2].ID)
}

func TestBookComplementaryRespectsPredicate(t *testing.T) {
	assetX, assetY := uuid.New(), uuid.New()
	book := orderbook.NewBook(uuid.New())
	now := time.Now().UTC()

	low := newOrder(assetX, assetY, 1, 1, now)
	high := newOrder(assetX, assetY, 1, 10, now)
	require.NoError(t, book.Insert(low))
	require.NoError(t, book.Insert(high))

	matches := book.Complementary(assetY, assetX, func(price decimal.Decimal) bool {
		return price.LessThanOrEqual(decimal.NewFromInt(5))
	})
	require.Len(t, matches, 1)
	require.Equal(t, low.ID, matches[0].ID)
}

func TestBookDepthRespectsMaxLevels(t *testing.T) {
	assetX, assetY := uuid.New(), uuid.New()
	book := orderbook.NewBook(uuid.New())
	now := time.Now().UTC()

	for _, price := range []int64{1, 2, 3, 4} {
		require.NoError(t, book.Insert(newOrder(assetX, assetY, 1, price, now)))
	}

	levels := book.Depth(assetX, assetY, 2)
	require.Len(t, levels, 2)
	require.True(t, levels[0].Price.LessThan(levels[1].Price))

	all := book.Depth(assetX, assetY, 0)
	require.Len(t, all, 4)
}
