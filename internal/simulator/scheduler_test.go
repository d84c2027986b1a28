package simulator_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lumenex/core/internal/simulator"
)

type fakeBudget struct {
	available decimal.Decimal
}

func (f fakeBudget) Available(context.Context, uuid.UUID, uuid.UUID) (decimal.Decimal, error) {
	return f.available, nil
}

type countingExecutor struct {
	failUntilAttempt int // fails on calls 1..failUntilAttempt, succeeds after
	calls            int
}

func (e *countingExecutor) Execute(context.Context, uuid.UUID, simulator.Action) error {
	e.calls++
	if e.calls <= e.failUntilAttempt {
		return errors.New("simulated placement failure")
	}
	return nil
}

func newSlot(seq int, maxRetries int) simulator.ActionSlot {
	return simulator.ActionSlot{
		Sequence:   seq,
		Account:    uuid.New(),
		Action:     simulator.Action{AskAmount: decimal.NewFromInt(10)},
		State:      simulator.SlotPending,
		MaxRetries: maxRetries,
	}
}

func TestSchedulerCompletesSlotOnFirstTry(t *testing.T) {
	ctx := context.Background()
	executor := &countingExecutor{}
	states, err := simulator.NewStateStore(t.TempDir())
	require.NoError(t, err)

	scheduler := simulator.NewScheduler(zerolog.Nop(), executor, fakeBudget{available: decimal.NewFromInt(100)}, simulator.AutoPolicy{}, states)
	state := simulator.NewRun([]simulator.ActionSlot{newSlot(0, 3)})

	require.NoError(t, scheduler.Run(ctx, &state))
	require.Equal(t, 1, state.Stats.Completed)
	require.Equal(t, 0, state.Stats.Failed)
	require.Equal(t, simulator.SlotCompleted, state.Slots[0].State)
}

func TestSchedulerRetriesThenSucceeds(t *testing.T) {
	ctx := context.Background()
	executor := &countingExecutor{failUntilAttempt: 1}
	states, err := simulator.NewStateStore(t.TempDir())
	require.NoError(t, err)

	scheduler := simulator.NewScheduler(zerolog.Nop(), executor, fakeBudget{available: decimal.NewFromInt(100)}, simulator.AutoPolicy{}, states)
	state := simulator.NewRun([]simulator.ActionSlot{newSlot(0, 3)})

	require.NoError(t, scheduler.Run(ctx, &state))
	require.Equal(t, 1, state.Stats.Completed)
	require.Equal(t, 2, executor.calls)
}

func TestSchedulerAutoPolicyContinuesAfterExhaustingRetries(t *testing.T) {
	ctx := context.Background()
	executor := &countingExecutor{failUntilAttempt: 1000}
	states, err := simulator.NewStateStore(t.TempDir())
	require.NoError(t, err)

	// MaxRetries=1 means the very first failure already meets the retry
	// ceiling, so the operator prompt fires immediately (no backoff sleep).
	scheduler := simulator.NewScheduler(zerolog.Nop(), executor, fakeBudget{available: decimal.NewFromInt(100)}, simulator.AutoPolicy{}, states)
	state := simulator.NewRun([]simulator.ActionSlot{newSlot(0, 1)})

	require.NoError(t, scheduler.Run(ctx, &state))
	require.Equal(t, 1, state.Stats.Failed)
	require.Equal(t, 0, state.Stats.Completed)
}

func TestSchedulerInsufficientBudgetBlocksExecution(t *testing.T) {
	ctx := context.Background()
	executor := &countingExecutor{}
	states, err := simulator.NewStateStore(t.TempDir())
	require.NoError(t, err)

	scheduler := simulator.NewScheduler(zerolog.Nop(), executor, fakeBudget{available: decimal.Zero}, simulator.AutoPolicy{}, states)
	state := simulator.NewRun([]simulator.ActionSlot{newSlot(0, 1)})

	require.NoError(t, scheduler.Run(ctx, &state))
	require.Equal(t, 0, executor.calls, "executor must never run when the budget interlock fails")
	require.Equal(t, 1, state.Stats.Failed)
}

type quitPrompt struct{}

func (quitPrompt) Decide(simulator.ActionSlot) simulator.Decision { return simulator.DecisionQuit }

func TestSchedulerOperatorQuitHaltsRun(t *testing.T) {
	ctx := context.Background()
	executor := &countingExecutor{failUntilAttempt: 1000}
	states, err := simulator.NewStateStore(t.TempDir())
	require.NoError(t, err)

	scheduler := simulator.NewScheduler(zerolog.Nop(), executor, fakeBudget{available: decimal.NewFromInt(100)}, quitPrompt{}, states)
	state := simulator.NewRun([]simulator.ActionSlot{newSlot(0, 1), newSlot(1, 1)})

	err = scheduler.Run(ctx, &state)
	require.ErrorIs(t, err, simulator.ErrQuit)
	require.Equal(t, 0, state.Stats.Completed)
}

func TestStateStoreSaveLoadRoundTrip(t *testing.T) {
	states, err := simulator.NewStateStore(t.TempDir())
	require.NoError(t, err)

	state := simulator.NewRun([]simulator.ActionSlot{newSlot(0, 1)})
	require.NoError(t, states.Save(state))

	loaded, ok, err := states.Load(state.SimulationID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, state.SimulationID, loaded.SimulationID)
	require.Len(t, loaded.Slots, 1)
}

func TestStateStoreLoadMissingReturnsNotOK(t *testing.T) {
	states, err := simulator.NewStateStore(t.TempDir())
	require.NoError(t, err)

	_, ok, err := states.Load(uuid.New())
	require.NoError(t, err)
	require.False(t, ok)
}
