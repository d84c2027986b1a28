package orderbook

import (
	"github.com/shopspring/decimal"

	"github.com/lumenex/core/internal/domain"
)

// OrderNode is a node in the doubly-linked list of orders at a price level.
// A doubly-linked list gives O(1) removal from anywhere in the queue, which
// matters for cancellation.
type OrderNode struct {
	Order *domain.Order
	prev  *OrderNode
	next  *OrderNode
	level *PriceLevel
}

// Next returns the next node in the queue.
func (n *OrderNode) Next() *OrderNode {
	return n.next
}

// PriceLevel holds every resting order at one price, in arrival (FIFO) order.
type PriceLevel struct {
	Price          decimal.Decimal
	head           *OrderNode
	tail           *OrderNode
	count          int
	TotalRemaining decimal.Decimal // sum of RemainingAsk() across all orders at this level
}

// NewPriceLevel creates an empty price level.
func NewPriceLevel(price decimal.Decimal) *PriceLevel {
	return &PriceLevel{Price: price, TotalRemaining: decimal.Zero}
}

// Count returns the number of orders at this level.
func (pl *PriceLevel) Count() int {
	return pl.count
}

// IsEmpty reports whether the level has no orders.
func (pl *PriceLevel) IsEmpty() bool {
	return pl.count == 0
}

// Head returns the first (highest-priority) node.
func (pl *PriceLevel) Head() *OrderNode {
	return pl.head
}

// Append adds order to the tail of the queue. Time complexity: O(1).
func (pl *PriceLevel) Append(order *domain.Order) *OrderNode {
	node := &OrderNode{Order: order, level: pl}

	if pl.tail == nil {
		pl.head = node
		pl.tail = node
	} else {
		node.prev = pl.tail
		pl.tail.next = node
		pl.tail = node
	}

	pl.count++
	pl.TotalRemaining = pl.TotalRemaining.Add(order.RemainingAsk())
	return node
}

// Remove removes node from the queue. Time complexity: O(1).
func (pl *PriceLevel) Remove(node *OrderNode) {
	if node == nil {
		return
	}

	pl.TotalRemaining = pl.TotalRemaining.Sub(node.Order.RemainingAsk())
	pl.count--

	if node.prev != nil {
		node.prev.next = node.next
	} else {
		pl.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		pl.tail = node.prev
	}

	node.prev = nil
	node.next = nil
	node.level = nil
}

// AdjustRemaining updates the level's cached total after a fill is applied
// to one of its resident orders; delta is negative for a reduction.
func (pl *PriceLevel) AdjustRemaining(delta decimal.Decimal) {
	pl.TotalRemaining = pl.TotalRemaining.Add(delta)
}

// Orders returns every order at this level in priority order. Allocates;
// intended for depth queries and tests, not the matching hot path.
func (pl *PriceLevel) Orders() []*domain.Order {
	result := make([]*domain.Order, 0, pl.count)
	for node := pl.head; node != nil; node = node.next {
		result = append(result, node.Order)
	}
	return result
}
