// simulator-cli generates and executes a batch of cross-orders against a
// live matching engine (spec §6's CLI surface): one or more iterations of
// slot generation followed by sequential, checkpointed execution with
// retry/backoff and an operator escape hatch on repeated failure.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/lumenex/core/internal/app"
	"github.com/lumenex/core/internal/config"
	"github.com/lumenex/core/internal/domain"
	"github.com/lumenex/core/internal/simulator"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to config file")
	tradesPerAccount := flag.Int("trades-per-account", 0, "slots to generate per account (0 = use config default)")
	minAmount := flag.String("min-amount", "", "minimum bid amount (decimal string; empty = use config default)")
	maxAmount := flag.String("max-amount", "", "maximum bid amount (decimal string; empty = use config default)")
	initialBudget := flag.String("initial-budget", "", "budget credited to every account/asset before running (empty = use config default)")
	accountFilter := flag.String("account-filter", "", "only include wallets whose id starts with this prefix")
	bidPriceOffset := flag.String("bid-price-offset", "", "fractional offset applied to the reference price for bid slots")
	askPriceOffset := flag.String("ask-price-offset", "", "fractional offset applied to the reference price for ask slots")
	stateDir := flag.String("state-dir", "", "directory for crash-safe run state (empty = use config default)")
	noAutoContinue := flag.Bool("no-auto-continue", false, "prompt the operator on repeated slot failure instead of auto-continuing")
	iterations := flag.Int("iterations", 1, "number of independent simulation batches to run")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error().Err(err).Msg("load config")
		return 1
	}
	applyOverrides(cfg, *tradesPerAccount, *minAmount, *maxAmount, *initialBudget, *bidPriceOffset, *askPriceOffset, *stateDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("received interrupt, cancelling")
		cancel()
	}()

	a, err := app.Bootstrap(ctx, cfg, log, "simulator-events.log")
	if err != nil {
		log.Error().Err(err).Msg("bootstrap")
		return 1
	}
	defer a.Close()

	markets, err := resolveMarkets(cfg)
	if err != nil {
		log.Error().Err(err).Msg("resolve markets")
		return 1
	}
	accounts, err := resolveAccounts(ctx, a, *accountFilter)
	if err != nil {
		log.Error().Err(err).Msg("resolve accounts")
		return 1
	}
	if len(accounts) == 0 {
		log.Error().Str("account_filter", *accountFilter).Msg("no accounts matched")
		return 1
	}

	if err := creditBudgets(ctx, a, markets, accounts, cfg.Simulator.InitialBudget); err != nil {
		log.Error().Err(err).Msg("credit initial budgets")
		return 1
	}

	states, err := simulator.NewStateStore(cfg.Simulator.StateDir)
	if err != nil {
		log.Error().Err(err).Msg("open state store")
		return 1
	}

	var prompt simulator.PromptHandler = simulator.AutoPolicy{}
	if *noAutoContinue {
		prompt = simulator.NewStdioPrompt(os.Stdin, os.Stdout)
	}

	storeMarkets, err := simulator.NewStoreMarkets(ctx, a.Store.Markets())
	if err != nil {
		log.Error().Err(err).Msg("load market catalog")
		return 1
	}
	generator := simulator.NewGenerator(storeMarkets, a.Risk, time.Now().UnixNano())
	executor := simulator.NewEngineExecutor(a.Engine)
	scheduler := simulator.NewScheduler(log, executor, a.Ledger, prompt, states)

	schedulerConfig := simulator.SchedulerConfig{
		Markets:            markets,
		MinAmount:          cfg.Simulator.MinAmount,
		MaxAmount:          cfg.Simulator.MaxAmount,
		TradesPerAccount:   cfg.Simulator.TradesPerAccount,
		BidPriceOffset:     cfg.Simulator.BidPriceOffset,
		AskPriceOffset:     cfg.Simulator.AskPriceOffset,
		AlternateSides:     true,
		MarketDistribution: simulator.RoundRobin,
		MaxRetries:         cfg.Simulator.MaxRetries,
		BaseRetryDelay:     cfg.Simulator.BaseRetryDelay,
	}

	for i := 0; i < *iterations; i++ {
		slots, err := generator.Generate(schedulerConfig, accounts)
		if err != nil {
			log.Error().Err(err).Int("iteration", i).Msg("generate slots")
			return 1
		}
		state := simulator.NewRun(slots)

		log.Info().Int("iteration", i).Str("simulation_id", state.SimulationID.String()).Int("slots", len(slots)).Msg("running simulation batch")
		if err := scheduler.Run(ctx, &state); err != nil {
			if err == simulator.ErrQuit {
				log.Warn().Str("simulation_id", state.SimulationID.String()).Msg("operator halted run")
				return 2
			}
			if ctx.Err() != nil {
				log.Warn().Msg("run interrupted")
				return 2
			}
			log.Error().Err(err).Msg("scheduler run failed")
			return 1
		}
		log.Info().
			Str("simulation_id", state.SimulationID.String()).
			Int("completed", state.Stats.Completed).
			Int("failed", state.Stats.Failed).
			Int("skipped", state.Stats.Skipped).
			Msg("simulation batch finished")
	}
	return 0
}

func applyOverrides(cfg *config.Config, tradesPerAccount int, minAmount, maxAmount, initialBudget, bidOffset, askOffset, stateDir string) {
	if tradesPerAccount > 0 {
		cfg.Simulator.TradesPerAccount = tradesPerAccount
	}
	if v, ok := parseDecimal(minAmount); ok {
		cfg.Simulator.MinAmount = v
	}
	if v, ok := parseDecimal(maxAmount); ok {
		cfg.Simulator.MaxAmount = v
	}
	if v, ok := parseDecimal(initialBudget); ok {
		cfg.Simulator.InitialBudget = v
	}
	if v, ok := parseDecimal(bidOffset); ok {
		cfg.Simulator.BidPriceOffset = v
	}
	if v, ok := parseDecimal(askOffset); ok {
		cfg.Simulator.AskPriceOffset = v
	}
	if stateDir != "" {
		cfg.Simulator.StateDir = stateDir
	}
}

func parseDecimal(s string) (decimal.Decimal, bool) {
	if s == "" {
		return decimal.Decimal{}, false
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return v, true
}

func resolveMarkets(cfg *config.Config) ([]uuid.UUID, error) {
	if len(cfg.Markets) == 0 {
		return nil, fmt.Errorf("no markets configured")
	}
	ids := make([]uuid.UUID, 0, len(cfg.Markets))
	for _, m := range cfg.Markets {
		id, err := uuid.Parse(m.MarketID)
		if err != nil {
			return nil, fmt.Errorf("parse market_id %q: %w", m.MarketID, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func resolveAccounts(ctx context.Context, a *app.App, prefix string) ([]uuid.UUID, error) {
	wallets, err := a.Store.Wallets().All(ctx)
	if err != nil {
		return nil, err
	}
	accounts := make([]uuid.UUID, 0, len(wallets))
	for _, w := range wallets {
		if w.Status != domain.WalletActive {
			continue
		}
		if prefix != "" && !strings.HasPrefix(w.ID.String(), prefix) {
			continue
		}
		accounts = append(accounts, w.ID)
	}
	return accounts, nil
}

// creditBudgets sets every account's available budget for every asset
// traded across markets to amount, satisfying the scheduler's pre-execution
// budget interlock (spec §4.6) from a clean start.
func creditBudgets(ctx context.Context, a *app.App, markets []uuid.UUID, accounts []uuid.UUID, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return nil
	}
	assets := make(map[uuid.UUID]struct{})
	for _, marketID := range markets {
		market, err := a.Store.Markets().Get(ctx, marketID)
		if err != nil {
			return err
		}
		assets[market.AssetOne] = struct{}{}
		assets[market.AssetTwo] = struct{}{}
	}
	for _, account := range accounts {
		for assetID := range assets {
			if err := a.Ledger.SetBudget(ctx, account, assetID, amount); err != nil {
				return fmt.Errorf("set budget for %s/%s: %w", account, assetID, err)
			}
		}
	}
	return nil
}

