package simulator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/lumenex/core/internal/xerrors"
)

// Executor runs one slot's action, on behalf of account, against a live
// matching engine.
type Executor interface {
	Execute(ctx context.Context, account uuid.UUID, action Action) error
}

// BudgetSource answers the pre-execution budget interlock (spec §4.6):
// available(account, ask_asset) >= ask_amount. Satisfied directly by
// internal/ledger.Ledger.Available.
type BudgetSource interface {
	Available(ctx context.Context, walletID, assetID uuid.UUID) (decimal.Decimal, error)
}

const maxBackoff = 30 * time.Second

// ErrQuit is returned by Run when the operator chose to halt the run.
var ErrQuit = errors.New("simulation run halted by operator")

// Scheduler executes a generated slot list sequentially, with retry,
// backoff, an operator escape hatch, and a budget interlock ahead of every
// execution attempt.
type Scheduler struct {
	log      zerolog.Logger
	executor Executor
	budget   BudgetSource
	prompt   PromptHandler
	states   *StateStore
	rand     *rand.Rand
}

// NewScheduler constructs a Scheduler.
func NewScheduler(log zerolog.Logger, executor Executor, budget BudgetSource, prompt PromptHandler, states *StateStore) *Scheduler {
	return &Scheduler{
		log:      log.With().Str("component", "simulator").Logger(),
		executor: executor,
		budget:   budget,
		prompt:   prompt,
		states:   states,
		rand:     rand.New(rand.NewSource(1)),
	}
}

// Run executes state's slots starting at state.CurrentSlotIndex, persisting
// state after every completed or skipped slot. Returns ErrQuit if the
// operator halted the run (caller should exit with code 2 per spec §6).
func (s *Scheduler) Run(ctx context.Context, state *SimulationState) error {
	for state.CurrentSlotIndex < len(state.Slots) {
		select {
		case <-ctx.Done():
			if err := s.states.Save(*state); err != nil {
				s.log.Error().Err(err).Msg("checkpoint save failed on cancellation")
			}
			return ctx.Err()
		default:
		}

		slot := &state.Slots[state.CurrentSlotIndex]
		quit, err := s.runSlot(ctx, slot, state)
		if quit {
			if saveErr := s.states.Save(*state); saveErr != nil {
				s.log.Error().Err(saveErr).Msg("checkpoint save failed on quit")
			}
			return ErrQuit
		}
		if err != nil {
			return err
		}

		state.CurrentSlotIndex++
		state.UpdatedAt = time.Now().UTC()
		if err := s.states.Save(*state); err != nil {
			return fmt.Errorf("checkpoint save: %w", err)
		}
	}
	return nil
}

// runSlot drives one slot through pending -> in_progress -> a terminal
// state, including the retry/backoff loop and, on exhaustion, the operator
// prompt. quit=true means the caller should stop the whole run.
func (s *Scheduler) runSlot(ctx context.Context, slot *ActionSlot, state *SimulationState) (quit bool, err error) {
	slot.State = SlotInProgress

	for {
		if execErr := s.attempt(ctx, slot); execErr == nil {
			slot.State = SlotCompleted
			state.Stats.Completed++
			return false, nil
		} else {
			slot.Attempts++
			slot.LastError = execErr.Error()
			slot.State = SlotFailed

			if slot.Attempts < slot.MaxRetries {
				if err := s.sleepBackoff(ctx, slot.Attempts); err != nil {
					return false, err
				}
				continue
			}

			switch s.prompt.Decide(*slot) {
			case DecisionRetry:
				slot.Attempts = 0
				continue
			case DecisionSkip:
				slot.State = SlotSkipped
				state.Stats.Skipped++
				return false, nil
			case DecisionContinue:
				state.Stats.Failed++
				return false, nil
			case DecisionQuit:
				return true, nil
			default:
				state.Stats.Failed++
				return false, nil
			}
		}
	}
}

// attempt runs the budget interlock then the executor for one try.
func (s *Scheduler) attempt(ctx context.Context, slot *ActionSlot) error {
	available, err := s.budget.Available(ctx, slot.Account, slot.Action.AskAsset)
	if err != nil {
		return fmt.Errorf("budget check: %w", err)
	}
	if available.LessThan(slot.Action.AskAmount) {
		return fmt.Errorf("%w: account %s has %s available of asset %s, need %s",
			xerrors.ErrInsufficientBudget, slot.Account, available, slot.Action.AskAsset, slot.Action.AskAmount)
	}
	return s.executor.Execute(ctx, slot.Account, slot.Action)
}

// sleepBackoff sleeps 500ms * 2^(attempts-1), capped at 30s, with ±10%
// jitter, honoring ctx cancellation. The base delay is fixed at 500ms;
// SchedulerConfig.BaseRetryDelay is not consulted.
func (s *Scheduler) sleepBackoff(ctx context.Context, attempts int) error {
	base := 500 * time.Millisecond
	delay := base << uint(attempts-1)
	if delay > maxBackoff || delay <= 0 {
		delay = maxBackoff
	}

	jitterRange := float64(delay) * 0.10
	jitter := time.Duration((s.rand.Float64()*2 - 1) * jitterRange)
	delay += jitter
	if delay < 0 {
		delay = 0
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NewRun constructs a fresh SimulationState for a generated slot list.
func NewRun(slots []ActionSlot) SimulationState {
	now := time.Now().UTC()
	return SimulationState{
		SimulationID:     uuid.New(),
		Slots:            slots,
		CurrentSlotIndex: 0,
		StartedAt:        now,
		UpdatedAt:        now,
	}
}
