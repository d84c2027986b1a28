// Package orderbook implements the in-memory order index a matching.Engine
// walks for one market: two ascending red-black trees, one per trading
// direction, each a stack of FIFO price levels.
//
// Architecture:
//
//	                      Book (one per market)
//	                            │
//	       ┌────────────────────┴────────────────────┐
//	       │                                          │
//	  direction "X:Y"                            direction "Y:X"
//	  (bid_asset=X, ask_asset=Y)                 (bid_asset=Y, ask_asset=X)
//	       │                                          │
//	   RBTree (ascending price)                  RBTree (ascending price)
//	       │                                          │
//	   PriceLevel (FIFO queue)                   PriceLevel (FIFO queue)
//
// An order with (bid_asset=X, ask_asset=Y) matches against resting orders
// in the opposite direction "Y:X": those orders want Y and are offering X,
// which is exactly what the taker needs. Within the opposite direction's
// tree, the lowest price (ask_amount/bid_amount, i.e. X given per Y
// received) is the best deal for the taker, so trees are always walked
// ascending from Best().
package orderbook

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lumenex/core/internal/domain"
	"github.com/lumenex/core/internal/xerrors"
)

func directionKey(bidAsset, askAsset uuid.UUID) string {
	return bidAsset.String() + ":" + askAsset.String()
}

// Book is the order index for a single market.
type Book struct {
	marketID   uuid.UUID
	directions map[string]*RBTree
	orders     map[uuid.UUID]*OrderNode
}

// NewBook creates an empty book for marketID.
func NewBook(marketID uuid.UUID) *Book {
	return &Book{
		marketID:   marketID,
		directions: make(map[string]*RBTree),
		orders:     make(map[uuid.UUID]*OrderNode),
	}
}

// MarketID returns the market this book indexes.
func (b *Book) MarketID() uuid.UUID {
	return b.marketID
}

func (b *Book) tree(bidAsset, askAsset uuid.UUID) *RBTree {
	key := directionKey(bidAsset, askAsset)
	t, ok := b.directions[key]
	if !ok {
		t = NewRBTree()
		b.directions[key] = t
	}
	return t
}

// Insert rests order in the book. Returns an error if the order is already
// resting or is not open. Time complexity: O(log P).
func (b *Book) Insert(order *domain.Order) error {
	if _, exists := b.orders[order.ID]; exists {
		return fmt.Errorf("%w: order %s already rests in book", xerrors.ErrDuplicatePlacement, order.ID)
	}
	if order.Status != domain.OrderOpen {
		return fmt.Errorf("%w: order %s is %s", xerrors.ErrOrderNotOpen, order.ID, order.Status)
	}

	tree := b.tree(order.BidAsset, order.AskAsset)
	price := order.Price()
	level := tree.Get(price)
	if level == nil {
		level = NewPriceLevel(price)
		tree.Insert(level)
	}

	node := level.Append(order)
	b.orders[order.ID] = node
	return nil
}

// Cancel removes orderID from the book and marks it cancelled. Returns
// xerrors.ErrOrderNotFound if it isn't resting.
func (b *Book) Cancel(orderID uuid.UUID) (*domain.Order, error) {
	node, exists := b.orders[orderID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", xerrors.ErrOrderNotFound, orderID)
	}

	order := node.Order
	level := node.level
	tree := b.tree(order.BidAsset, order.AskAsset)

	level.Remove(node)
	delete(b.orders, orderID)
	if level.IsEmpty() {
		tree.Delete(level.Price)
	}

	order.Cancel()
	return order, nil
}

// Get retrieves a resting order by id.
func (b *Book) Get(orderID uuid.UUID) *domain.Order {
	node, exists := b.orders[orderID]
	if !exists {
		return nil
	}
	return node.Order
}

// UpdateFills applies a fill delta to a resting maker order, adjusting its
// price level's cached totals, and evicts it from the book if it closes.
func (b *Book) UpdateFills(orderID uuid.UUID, deltaBid, deltaAsk decimal.Decimal) error {
	node, exists := b.orders[orderID]
	if !exists {
		return fmt.Errorf("%w: %s", xerrors.ErrOrderNotFound, orderID)
	}

	node.Order.ApplyFill(deltaBid, deltaAsk)
	node.level.AdjustRemaining(deltaAsk.Neg())

	if node.Order.IsFilled() {
		level := node.level
		tree := b.tree(node.Order.BidAsset, node.Order.AskAsset)
		level.Remove(node)
		delete(b.orders, orderID)
		if level.IsEmpty() {
			tree.Delete(level.Price)
		}
	}
	return nil
}

// Complementary returns resting open orders that are the mirror direction
// of (bidAsset, askAsset) — i.e. orders with bid_asset=askAsset,
// ask_asset=bidAsset — filtered by predicate(price) and ordered by
// price-time priority (best price first, then earliest created_at, then
// lowest order id).
func (b *Book) Complementary(bidAsset, askAsset uuid.UUID, predicate func(price decimal.Decimal) bool) []*domain.Order {
	tree := b.tree(askAsset, bidAsset)
	var result []*domain.Order

	tree.ForEach(func(level *PriceLevel) bool {
		if predicate != nil && !predicate(level.Price) {
			return false // ascending tree: once a price fails the predicate, none further will pass
		}
		ordersAtLevel := level.Orders()
		sortByTimeThenID(ordersAtLevel)
		result = append(result, ordersAtLevel...)
		return true
	})

	return result
}

// sortByTimeThenID enforces the tie-break rule within a price level:
// earlier created_at wins; on equal timestamps, lower order UUID wins. The
// FIFO queue already reflects arrival order, so in practice this is a
// defensive no-op except when two orders share a timestamp.
func sortByTimeThenID(orders []*domain.Order) {
	for i := 1; i < len(orders); i++ {
		j := i
		for j > 0 && less(orders[j], orders[j-1]) {
			orders[j], orders[j-1] = orders[j-1], orders[j]
			j--
		}
	}
}

func less(a, b *domain.Order) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}

// BestComplementaryPrice returns the best (lowest) resting price on the
// mirror direction of (bidAsset, askAsset), or the zero value and false if
// that side is empty.
func (b *Book) BestComplementaryPrice(bidAsset, askAsset uuid.UUID) (decimal.Decimal, bool) {
	tree := b.tree(askAsset, bidAsset)
	level := tree.Best()
	if level == nil {
		return decimal.Zero, false
	}
	return level.Price, true
}

// Depth returns up to maxLevels price levels of a direction, best price
// first. maxLevels <= 0 returns every level.
func (b *Book) Depth(bidAsset, askAsset uuid.UUID, maxLevels int) []*PriceLevel {
	tree := b.tree(bidAsset, askAsset)
	result := make([]*PriceLevel, 0)
	count := 0
	tree.ForEach(func(level *PriceLevel) bool {
		result = append(result, level)
		count++
		return maxLevels <= 0 || count < maxLevels
	})
	return result
}

// TotalOrders returns the number of resting orders across both directions.
func (b *Book) TotalOrders() int {
	return len(b.orders)
}
