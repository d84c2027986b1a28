package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Interval is a bar bucket width. The constants are declared in ascending
// order of width; window widths and alignment come from Duration and
// AlignWindowStart below, not from the enum's numeric value.
type Interval int

const (
	Interval15s Interval = iota
	Interval30s
	Interval45s
	Interval1m
	Interval5m
	Interval15m
	Interval30m
	Interval1h
	Interval4h
	Interval1d
	Interval1w
)

func (i Interval) String() string {
	switch i {
	case Interval15s:
		return "15s"
	case Interval30s:
		return "30s"
	case Interval45s:
		return "45s"
	case Interval1m:
		return "1min"
	case Interval5m:
		return "5min"
	case Interval15m:
		return "15min"
	case Interval30m:
		return "30min"
	case Interval1h:
		return "1hr"
	case Interval4h:
		return "4hr"
	case Interval1d:
		return "1day"
	case Interval1w:
		return "1week"
	default:
		return "unknown"
	}
}

// ParseInterval parses the string form used by the aggregator CLI.
func ParseInterval(s string) (Interval, bool) {
	for _, i := range []Interval{Interval15s, Interval30s, Interval45s, Interval1m,
		Interval5m, Interval15m, Interval30m, Interval1h, Interval4h, Interval1d, Interval1w} {
		if i.String() == s {
			return i, true
		}
	}
	return 0, false
}

// Duration returns the interval's fixed width. 1week is the only interval
// whose natural epoch alignment (Monday 00:00 UTC) is not simply "any
// multiple of Duration() since the Unix epoch" — callers needing the
// aligned window start must use AlignWindowStart, not this value alone.
func (i Interval) Duration() time.Duration {
	switch i {
	case Interval15s:
		return 15 * time.Second
	case Interval30s:
		return 30 * time.Second
	case Interval45s:
		return 45 * time.Second
	case Interval1m:
		return time.Minute
	case Interval5m:
		return 5 * time.Minute
	case Interval15m:
		return 15 * time.Minute
	case Interval30m:
		return 30 * time.Minute
	case Interval1h:
		return time.Hour
	case Interval4h:
		return 4 * time.Hour
	case Interval1d:
		return 24 * time.Hour
	case Interval1w:
		return 7 * 24 * time.Hour
	default:
		return 0
	}
}

// AlignWindowStart returns the start of the bar window containing t, aligned
// to the interval's natural epoch: sub-day intervals align to the Unix
// epoch, 1day aligns to UTC midnight (same thing), and 1week aligns to the
// most recent Monday 00:00 UTC.
func (i Interval) AlignWindowStart(t time.Time) time.Time {
	t = t.UTC()
	if i == Interval1w {
		midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		// time.Monday == 1; Sunday == 0 needs 6 days back, not -1.
		offset := (int(midnight.Weekday()) + 6) % 7
		return midnight.AddDate(0, 0, -offset)
	}
	d := i.Duration()
	return time.Unix(0, (t.UnixNano()/int64(d))*int64(d)).UTC()
}

// Bar is one OHLCV candle for a (market, asset, interval, window). Bars are
// immutable once written; the aggregator may overwrite the same
// (market, asset, interval, start_time) key idempotently.
type Bar struct {
	MarketID         uuid.UUID
	AssetID          uuid.UUID
	Interval         Interval
	StartTime        time.Time
	EndTime          time.Time
	Open             decimal.Decimal
	High             decimal.Decimal
	Low              decimal.Decimal
	Close            decimal.Decimal
	Volume           decimal.Decimal
	DataProviderType string
}

// Checkpoint is the single-row key/value progress marker the aggregator
// advances atomically with each bar write in backfill/resume mode. Version
// is the optimistic-concurrency guard: Advance must be called with the
// Version last observed via Get, and fails with xerrors.ErrCheckpointContention
// if another writer has advanced the row since.
type Checkpoint struct {
	MarketID         uuid.UUID
	AssetID          uuid.UUID
	Interval         Interval
	LastProcessedEnd time.Time
	Version          int64
}
