// timeseries-aggregator runs the OHLCV bar aggregator over one or more
// (market, asset, interval) targets (spec §6's CLI surface), in whichever
// mode the operator selects: backfill, resume, single or realtime, plus a
// list mode that only reports checkpoint state without writing anything.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lumenex/core/internal/aggregator"
	"github.com/lumenex/core/internal/app"
	"github.com/lumenex/core/internal/config"
	"github.com/lumenex/core/internal/domain"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to config file")
	marketFlag := flag.String("market", "", "market UUID (required unless --scope=all)")
	assetFlag := flag.String("asset", "", "asset UUID (required when --scope=single)")
	scope := flag.String("scope", "single", "single | market-all | all")
	intervalFlag := flag.String("interval", "1min", "bar interval (15s,30s,45s,1min,5min,15min,30min,1hr,4hr,1day,1week)")
	modeFlag := flag.String("mode", "backfill", "backfill | resume | single | realtime | list")
	startFlag := flag.String("start", "", "RFC3339 window start (backfill/single)")
	endFlag := flag.String("end", "", "RFC3339 window end (backfill/single)")
	durationFlag := flag.String("duration", "", "24h | 7d | 30d | 90d | all (alternative to --start/--end)")
	confirm := flag.Bool("confirm", false, "required for any scope other than single (not needed in realtime or list mode)")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error().Err(err).Msg("load config")
		return 1
	}

	interval, ok := domain.ParseInterval(*intervalFlag)
	if !ok {
		log.Error().Str("interval", *intervalFlag).Msg("unrecognized interval")
		return 1
	}

	mode, err := parseMode(*modeFlag)
	if err != nil {
		log.Error().Err(err).Msg("parse mode")
		return 1
	}

	if *scope != "single" && !*confirm && mode != aggregator.ModeRealtime && *modeFlag != "list" {
		log.Error().Str("scope", *scope).Msg("scope beyond single requires --confirm")
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("received interrupt, cancelling")
		cancel()
	}()

	a, err := app.Bootstrap(ctx, cfg, log, "aggregator-events.log")
	if err != nil {
		log.Error().Err(err).Msg("bootstrap")
		return 1
	}
	defer a.Close()

	targets, err := resolveTargets(ctx, a, *scope, *marketFlag, *assetFlag, interval)
	if err != nil {
		log.Error().Err(err).Msg("resolve targets")
		return 1
	}

	start, end, err := resolveWindow(*startFlag, *endFlag, *durationFlag)
	if err != nil {
		log.Error().Err(err).Msg("resolve window")
		return 1
	}

	trades := a.Journal
	writes := aggregator.NewStoreAtomic(a.Store)
	agg := aggregator.New(log, trades, writes)

	if *modeFlag == "list" {
		return listTargets(ctx, writes, targets)
	}

	for _, t := range targets {
		if err := agg.Run(ctx, t, mode, start, end); err != nil {
			if ctx.Err() != nil {
				log.Warn().Msg("run interrupted by operator")
				return 2
			}
			log.Error().Err(err).
				Str("market_id", t.MarketID.String()).
				Str("asset_id", t.AssetID.String()).
				Msg("aggregator run failed")
			return 1
		}
	}
	return 0
}

func parseMode(s string) (aggregator.Mode, error) {
	switch s {
	case "backfill":
		return aggregator.ModeBackfill, nil
	case "resume":
		return aggregator.ModeResume, nil
	case "single":
		return aggregator.ModeSingle, nil
	case "realtime":
		return aggregator.ModeRealtime, nil
	case "list":
		return aggregator.ModeResume, nil // list never calls Run; mode is unused
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}

// resolveTargets expands --scope into the (market, asset, interval) list Run
// iterates over. market-all expands both legs of one market; all expands
// both legs of every catalog market.
func resolveTargets(ctx context.Context, a *app.App, scope, marketStr, assetStr string, interval domain.Interval) ([]aggregator.Target, error) {
	switch scope {
	case "single":
		marketID, err := uuid.Parse(marketStr)
		if err != nil {
			return nil, fmt.Errorf("--market is required and must be a UUID for scope=single: %w", err)
		}
		assetID, err := uuid.Parse(assetStr)
		if err != nil {
			return nil, fmt.Errorf("--asset is required and must be a UUID for scope=single: %w", err)
		}
		return []aggregator.Target{{MarketID: marketID, AssetID: assetID, Interval: interval}}, nil

	case "market-all":
		marketID, err := uuid.Parse(marketStr)
		if err != nil {
			return nil, fmt.Errorf("--market is required and must be a UUID for scope=market-all: %w", err)
		}
		market, err := a.Store.Markets().Get(ctx, marketID)
		if err != nil {
			return nil, err
		}
		return []aggregator.Target{
			{MarketID: market.ID, AssetID: market.AssetOne, Interval: interval},
			{MarketID: market.ID, AssetID: market.AssetTwo, Interval: interval},
		}, nil

	case "all":
		markets, err := a.Store.Markets().All(ctx)
		if err != nil {
			return nil, err
		}
		targets := make([]aggregator.Target, 0, len(markets)*2)
		for _, m := range markets {
			targets = append(targets,
				aggregator.Target{MarketID: m.ID, AssetID: m.AssetOne, Interval: interval},
				aggregator.Target{MarketID: m.ID, AssetID: m.AssetTwo, Interval: interval},
			)
		}
		return targets, nil

	default:
		return nil, fmt.Errorf("unknown scope %q", scope)
	}
}

func resolveWindow(startStr, endStr, duration string) (time.Time, time.Time, error) {
	end := domain.Now()
	if endStr != "" {
		parsed, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse --end: %w", err)
		}
		end = parsed
	}

	if startStr != "" {
		start, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse --start: %w", err)
		}
		return start, end, nil
	}

	switch duration {
	case "", "24h":
		return end.Add(-24 * time.Hour), end, nil
	case "7d":
		return end.Add(-7 * 24 * time.Hour), end, nil
	case "30d":
		return end.Add(-30 * 24 * time.Hour), end, nil
	case "90d":
		return end.Add(-90 * 24 * time.Hour), end, nil
	case "all":
		return time.Unix(0, 0).UTC(), end, nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown --duration %q", duration)
	}
}

// listTargets reports each target's current checkpoint without mutating
// anything — the aggregator CLI's read-only "mode=list".
func listTargets(ctx context.Context, writes aggregator.StoreAtomic, targets []aggregator.Target) int {
	checkpoints := writes.Checkpoints()
	for _, t := range targets {
		checkpoint, ok, err := checkpoints.Get(ctx, t.MarketID, t.AssetID, t.Interval)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s/%s/%s: error: %v\n", t.MarketID, t.AssetID, t.Interval, err)
			return 1
		}
		if !ok {
			fmt.Printf("%s/%s/%s: no checkpoint\n", t.MarketID, t.AssetID, t.Interval)
			continue
		}
		fmt.Printf("%s/%s/%s: last_processed_end=%s\n", t.MarketID, t.AssetID, t.Interval, checkpoint.LastProcessedEnd.Format(time.RFC3339))
	}
	return 0
}
