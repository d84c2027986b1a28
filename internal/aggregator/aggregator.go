// Package aggregator builds OHLCV bars from the trade journal (spec §4.5):
// backfill, resume, single-window and realtime modes over the same bar
// computation, checkpointed so a crash never double-counts or skips a
// window.
//
// No teacher package buckets trades into candles; the interval table and
// checkpoint-as-lock idiom below are original within the teacher's
// enum-with-String()/table-driven style (see internal/domain.Interval), and
// the realtime loop borrows internal/marketdata's subscription shape.
package aggregator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/lumenex/core/internal/domain"
)

// Mode selects how Run catches up a (market, asset, interval) target.
type Mode int

const (
	ModeBackfill Mode = iota
	ModeResume
	ModeSingle
	ModeRealtime
)

func (m Mode) String() string {
	switch m {
	case ModeBackfill:
		return "backfill"
	case ModeResume:
		return "resume"
	case ModeSingle:
		return "single"
	case ModeRealtime:
		return "realtime"
	default:
		return "unknown"
	}
}

// Target identifies the (market, asset, interval) bar series to aggregate.
// AssetID is the trade journal's denormalized "asset given by the taker"
// tag (see internal/store.TradeStore.Insert): a market with two assets
// needs one Run per asset to get both legs' candles.
type Target struct {
	MarketID uuid.UUID
	AssetID  uuid.UUID
	Interval domain.Interval
}

// TradeSource is the range-scan primitive the aggregator reads from —
// satisfied directly by internal/journal.Store / internal/store.TradeStore.
type TradeSource interface {
	ListByWindow(ctx context.Context, marketID, assetID uuid.UUID, fromInclusive, toExclusive time.Time) ([]domain.Trade, error)
}

// BarWriter is the bar-upsert primitive.
type BarWriter interface {
	Upsert(ctx context.Context, bar domain.Bar) error
}

// CheckpointStore is the checkpoint read/advance primitive.
type CheckpointStore interface {
	Get(ctx context.Context, marketID, assetID uuid.UUID, interval domain.Interval) (domain.Checkpoint, bool, error)
	Advance(ctx context.Context, checkpoint domain.Checkpoint) error
}

// Atomic runs fn with a BarWriter/CheckpointStore pair that commit together,
// so a crash between the two never leaves the checkpoint ahead of the bar
// it supposedly covers. Checkpoints returns a plain (non-transactional)
// view for the resume-mode read that precedes any write.
type Atomic interface {
	WithAtomicWrite(ctx context.Context, fn func(BarWriter, CheckpointStore) error) error
	Checkpoints() CheckpointStore
}

// Aggregator computes and persists OHLCV bars.
type Aggregator struct {
	log    zerolog.Logger
	trades TradeSource
	writes Atomic
	now    func() time.Time
}

// New constructs an Aggregator.
func New(log zerolog.Logger, trades TradeSource, writes Atomic) *Aggregator {
	return &Aggregator{
		log:    log.With().Str("component", "aggregator").Logger(),
		trades: trades,
		writes: writes,
		now:    domain.Now,
	}
}

// Run aggregates target across mode's window semantics (spec §4.5).
// start/end are used by backfill and single. Resume runs from the checkpoint
// up to end, falling back to start only when no checkpoint exists. Realtime
// ignores both and runs until ctx is cancelled.
func (a *Aggregator) Run(ctx context.Context, target Target, mode Mode, start, end time.Time) error {
	switch mode {
	case ModeBackfill:
		version, err := a.clearCheckpoint(ctx, target)
		if err != nil {
			return err
		}
		_, err = a.catchUp(ctx, target, start, end, version)
		return err

	case ModeResume:
		from := start
		checkpoint, ok, err := a.checkpointOf(ctx, target)
		if err != nil {
			return err
		}
		var version int64
		if ok {
			from = checkpoint.LastProcessedEnd
			version = checkpoint.Version
		}
		_, err = a.catchUp(ctx, target, from, end, version)
		return err

	case ModeSingle:
		_, err := a.emitRange(ctx, target, start, end, false, 0)
		return err

	case ModeRealtime:
		return a.runRealtime(ctx, target)

	default:
		return fmt.Errorf("aggregator: unknown mode %d", mode)
	}
}

// catchUp iterates whole intervals from start to end, advancing the
// checkpoint after each write, and returns the checkpoint version after the
// last successful advance.
func (a *Aggregator) catchUp(ctx context.Context, target Target, start, end time.Time, version int64) (int64, error) {
	return a.emitRange(ctx, target, start, end, true, version)
}

func (a *Aggregator) emitRange(ctx context.Context, target Target, start, end time.Time, advanceCheckpoint bool, version int64) (int64, error) {
	duration := target.Interval.Duration()
	if duration <= 0 {
		return version, fmt.Errorf("aggregator: interval %s has no fixed duration", target.Interval)
	}

	windowStart := target.Interval.AlignWindowStart(start)
	for windowStart.Before(end) {
		select {
		case <-ctx.Done():
			return version, ctx.Err()
		default:
		}

		windowEnd := windowStart.Add(duration)
		newVersion, err := a.emitOne(ctx, target, windowStart, windowEnd, advanceCheckpoint, version)
		if err != nil {
			return version, err
		}
		version = newVersion
		windowStart = windowEnd
	}
	return version, nil
}

// emitOne computes and writes one bar window, optionally advancing the
// checkpoint to windowEnd in the same atomic write. version is the
// checkpoint version this call expects to find still current; the returned
// version reflects the advance that just happened (or version, unchanged,
// when advanceCheckpoint is false). An empty window writes no bar but still
// advances the checkpoint when advanceCheckpoint is true.
func (a *Aggregator) emitOne(ctx context.Context, target Target, windowStart, windowEnd time.Time, advanceCheckpoint bool, version int64) (int64, error) {
	bar, ok, err := a.computeBar(ctx, target, windowStart, windowEnd)
	if err != nil {
		return version, err
	}
	if !ok {
		a.log.Debug().
			Str("market_id", target.MarketID.String()).
			Time("window_start", windowStart).
			Msg("empty window, skipping bar")
		if advanceCheckpoint {
			return a.advanceCheckpoint(ctx, target, windowEnd, version)
		}
		return version, nil
	}

	newVersion := version
	err = a.writes.WithAtomicWrite(ctx, func(bars BarWriter, checkpoints CheckpointStore) error {
		if err := bars.Upsert(ctx, bar); err != nil {
			return fmt.Errorf("upsert bar %s %s: %w", target.MarketID, windowStart, err)
		}
		if advanceCheckpoint {
			checkpoint := domain.Checkpoint{MarketID: target.MarketID, AssetID: target.AssetID, Interval: target.Interval, LastProcessedEnd: windowEnd, Version: version}
			if err := checkpoints.Advance(ctx, checkpoint); err != nil {
				return fmt.Errorf("advance checkpoint %s: %w", target.MarketID, err)
			}
			newVersion = version + 1
		}
		return nil
	})
	return newVersion, err
}

// computeBar reads every trade in [windowStart, windowEnd) for target and
// folds it into one candle. ok is false when the window has no trades
// (spec §4.5: no synthetic zero-volume bar in v1).
func (a *Aggregator) computeBar(ctx context.Context, target Target, windowStart, windowEnd time.Time) (domain.Bar, bool, error) {
	trades, err := a.trades.ListByWindow(ctx, target.MarketID, target.AssetID, windowStart, windowEnd)
	if err != nil {
		return domain.Bar{}, false, err
	}
	if len(trades) == 0 {
		return domain.Bar{}, false, nil
	}

	bar := domain.Bar{
		MarketID:  target.MarketID,
		AssetID:   target.AssetID,
		Interval:  target.Interval,
		StartTime: windowStart,
		EndTime:   windowEnd,
		Volume:    decimal.Zero,
	}

	for i, trade := range trades {
		price := domain.PriceOf(trade.TakerFilledAmount, trade.MakerFilledAmount)
		if i == 0 {
			bar.Open = price
			bar.High = price
			bar.Low = price
		}
		if price.GreaterThan(bar.High) {
			bar.High = price
		}
		if price.LessThan(bar.Low) {
			bar.Low = price
		}
		bar.Close = price
		bar.Volume = bar.Volume.Add(trade.TakerFilledAmount)
	}
	return bar, true, nil
}

func (a *Aggregator) checkpointOf(ctx context.Context, target Target) (domain.Checkpoint, bool, error) {
	return a.writes.Checkpoints().Get(ctx, target.MarketID, target.AssetID, target.Interval)
}

// clearCheckpoint resets target's checkpoint to the zero value for a fresh
// backfill, and returns the version to advance from next.
func (a *Aggregator) clearCheckpoint(ctx context.Context, target Target) (int64, error) {
	checkpoint, ok, err := a.checkpointOf(ctx, target)
	if err != nil {
		return 0, err
	}
	var version int64
	if ok {
		version = checkpoint.Version
	}
	newVersion := version
	err = a.writes.WithAtomicWrite(ctx, func(_ BarWriter, checkpoints CheckpointStore) error {
		cp := domain.Checkpoint{MarketID: target.MarketID, AssetID: target.AssetID, Interval: target.Interval, Version: version}
		if err := checkpoints.Advance(ctx, cp); err != nil {
			return err
		}
		newVersion = version + 1
		return nil
	})
	return newVersion, err
}

func (a *Aggregator) advanceCheckpoint(ctx context.Context, target Target, windowEnd time.Time, version int64) (int64, error) {
	newVersion := version
	err := a.writes.WithAtomicWrite(ctx, func(_ BarWriter, checkpoints CheckpointStore) error {
		cp := domain.Checkpoint{MarketID: target.MarketID, AssetID: target.AssetID, Interval: target.Interval, LastProcessedEnd: windowEnd, Version: version}
		if err := checkpoints.Advance(ctx, cp); err != nil {
			return err
		}
		newVersion = version + 1
		return nil
	})
	return newVersion, err
}

// runRealtime catches up to now-interval, then emits one bar per interval
// boundary until ctx is cancelled (spec §4.5, §5: "honours cancellation at
// the inter-interval sleep boundary").
func (a *Aggregator) runRealtime(ctx context.Context, target Target) error {
	duration := target.Interval.Duration()
	if duration <= 0 {
		return fmt.Errorf("aggregator: interval %s has no fixed duration", target.Interval)
	}

	checkpoint, ok, err := a.checkpointOf(ctx, target)
	if err != nil {
		return err
	}
	from := target.Interval.AlignWindowStart(a.now().Add(-duration))
	var version int64
	if ok {
		from = checkpoint.LastProcessedEnd
		version = checkpoint.Version
	}

	catchUpEnd := target.Interval.AlignWindowStart(a.now())
	if from.Before(catchUpEnd) {
		version, err = a.catchUp(ctx, target, from, catchUpEnd, version)
		if err != nil {
			return err
		}
	}

	ticker := time.NewTicker(duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			windowEnd := target.Interval.AlignWindowStart(a.now())
			windowStart := windowEnd.Add(-duration)
			newVersion, err := a.emitOne(ctx, target, windowStart, windowEnd, true, version)
			if err != nil {
				a.log.Error().Err(err).Msg("realtime bar emit failed")
				if checkpoint, ok, refreshErr := a.checkpointOf(ctx, target); refreshErr == nil && ok {
					version = checkpoint.Version
				}
				continue
			}
			version = newVersion
		}
	}
}
