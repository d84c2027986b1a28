// Package marketdata fans out executed trades to in-process subscribers; the
// matching engine publishes one report per fill. Nothing in this repository
// subscribes: the aggregator's realtime mode (spec §4.5) reads the trade
// journal once per interval instead.
//
// Distribution is in-process only (Go channels): this repo has no
// WebSocket/FIX transport (see non-goals), so there is no wire fan-out
// here, only the same non-blocking, symbol/market-keyed pub-sub shape the
// teacher used for its L1/L2/trade streams.
package marketdata

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradeReport is a published trade execution.
type TradeReport struct {
	TradeID      uuid.UUID
	MarketID     uuid.UUID
	AskAsset     uuid.UUID
	Price        decimal.Decimal
	AskAmount    decimal.Decimal // quantity of AskAsset that changed hands
	MakerOrderID uuid.UUID
	TakerOrderID uuid.UUID
	Timestamp    time.Time
}

// Publisher distributes trade reports to subscribers, non-blocking: a slow
// subscriber drops updates rather than stalling the matching engine.
type Publisher struct {
	mu         sync.RWMutex
	marketSubs map[uuid.UUID][]chan TradeReport
	allSubs    []chan TradeReport
	bufferSize int
}

// NewPublisher creates a publisher whose subscriber channels are buffered
// to bufferSize (100 if <= 0).
func NewPublisher(bufferSize int) *Publisher {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Publisher{
		marketSubs: make(map[uuid.UUID][]chan TradeReport),
		bufferSize: bufferSize,
	}
}

// Subscribe returns a channel of trade reports for one market.
func (p *Publisher) Subscribe(marketID uuid.UUID) <-chan TradeReport {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan TradeReport, p.bufferSize)
	p.marketSubs[marketID] = append(p.marketSubs[marketID], ch)
	return ch
}

// SubscribeAll returns a channel of trade reports across every market.
func (p *Publisher) SubscribeAll() <-chan TradeReport {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan TradeReport, p.bufferSize)
	p.allSubs = append(p.allSubs, ch)
	return ch
}

// Publish sends a trade report to every matching subscriber. Non-blocking:
// a full subscriber channel drops the update.
func (p *Publisher) Publish(trade TradeReport) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, ch := range p.marketSubs[trade.MarketID] {
		select {
		case ch <- trade:
		default:
		}
	}
	for _, ch := range p.allSubs {
		select {
		case ch <- trade:
		default:
		}
	}
}

// Close closes every subscription channel.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, subs := range p.marketSubs {
		for _, ch := range subs {
			close(ch)
		}
	}
	for _, ch := range p.allSubs {
		close(ch)
	}
}
