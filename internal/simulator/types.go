// Package simulator implements the simulation scheduler (spec §4.6): it
// pre-generates an ordered list of action slots against one or more
// markets, executes them sequentially against a live engine, retries
// failures with backoff, and checkpoints progress to a crash-safe JSON
// file so a run can resume exactly where it left off.
//
// No teacher package runs a sequential execution loop with retry/backoff
// and an operator prompt; the backoff/jitter shape is original within the
// teacher's idiom, and the crash-safe state file is adapted from
// 0xtitan6-polymarket-mm's atomic-rename position store.
package simulator

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side is which leg of a market's asset pair an account plays in a slot.
type Side int

const (
	SideBid Side = iota
	SideAsk
)

func (s Side) String() string {
	if s == SideAsk {
		return "ask"
	}
	return "bid"
}

// MarketDistribution controls how generated slots are spread across the
// configured market list.
type MarketDistribution int

const (
	// RoundRobin cycles through the market list slot by slot.
	RoundRobin MarketDistribution = iota
	// SameMarket always uses the first configured market.
	SameMarket
	// Sequential exhausts each market's share of slots in order before
	// moving to the next.
	Sequential
)

func (d MarketDistribution) String() string {
	switch d {
	case RoundRobin:
		return "round_robin"
	case SameMarket:
		return "same_market"
	case Sequential:
		return "sequential"
	default:
		return "unknown"
	}
}

// StrategyKind is the generator's hint for how a slot is meant to cross.
type StrategyKind int

const (
	// MatchAny lets the live book decide what the slot crosses against.
	MatchAny StrategyKind = iota
	// MatchSequentialNext is intended to cross the immediately preceding
	// slot in generation order.
	MatchSequentialNext
	// MatchWithAccount is intended to cross a specific paired account's
	// slot (set by AlternateSides pairing).
	MatchWithAccount
)

func (k StrategyKind) String() string {
	switch k {
	case MatchAny:
		return "any"
	case MatchSequentialNext:
		return "sequential_next"
	case MatchWithAccount:
		return "match_with"
	default:
		return "unknown"
	}
}

// MatchingStrategy records how the generator intended a slot to cross.
type MatchingStrategy struct {
	Kind          StrategyKind
	WithAccountID uuid.UUID // set only when Kind == MatchWithAccount
}

// Action is the order placement a slot will submit.
type Action struct {
	MarketID  uuid.UUID
	BidAsset  uuid.UUID
	AskAsset  uuid.UUID
	BidAmount decimal.Decimal
	AskAmount decimal.Decimal
	Price     decimal.Decimal
	Side      Side
	Strategy  MatchingStrategy
}

// SlotState is an action slot's lifecycle state.
type SlotState string

const (
	SlotPending    SlotState = "pending"
	SlotInProgress SlotState = "in_progress"
	SlotCompleted  SlotState = "completed"
	SlotFailed     SlotState = "failed"
	SlotSkipped    SlotState = "skipped"
)

// ActionSlot is one scheduled placement in a simulation run.
type ActionSlot struct {
	Sequence   int
	Account    uuid.UUID
	Action     Action
	State      SlotState
	Attempts   int
	MaxRetries int
	LastError  string
}

// Stats accumulates run-wide outcomes.
type Stats struct {
	Completed int
	Failed    int
	Skipped   int
}

// SimulationState is the persisted snapshot of a run, written after every
// completed or skipped slot so a restart resumes from CurrentSlotIndex.
type SimulationState struct {
	SimulationID     uuid.UUID
	Slots            []ActionSlot
	CurrentSlotIndex int
	Stats            Stats
	StartedAt        time.Time
	UpdatedAt        time.Time
}

// SchedulerConfig parameterizes slot generation.
type SchedulerConfig struct {
	Markets          []uuid.UUID // AssetOne/AssetTwo resolved per market by the caller
	MinAmount        decimal.Decimal
	MaxAmount        decimal.Decimal
	TradesPerAccount int
	BidPriceOffset   decimal.Decimal // fractional offset applied to the reference price for bid-side slots
	AskPriceOffset   decimal.Decimal // fractional offset applied to the reference price for ask-side slots
	AlternateSides   bool
	MarketDistribution MarketDistribution
	MaxRetries       int
	BaseRetryDelay   time.Duration
}
