// Package app wires the trading core's components together (store ->
// ledger/journal -> risk -> market data/settlement -> event log -> matching
// engine), with no net/http transport layer: both
// CLIs (timeseries-aggregator, simulator-cli) call Bootstrap to get a ready
// App rather than duplicating construction order.
package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lumenex/core/internal/config"
	"github.com/lumenex/core/internal/events"
	"github.com/lumenex/core/internal/journal"
	"github.com/lumenex/core/internal/ledger"
	"github.com/lumenex/core/internal/marketdata"
	"github.com/lumenex/core/internal/matching"
	"github.com/lumenex/core/internal/risk"
	"github.com/lumenex/core/internal/settlement"
	"github.com/lumenex/core/internal/store"
)

// App holds every wired component a CLI entry point needs.
type App struct {
	Config    *config.Config
	Log       zerolog.Logger
	Store     *store.DB
	Ledger    *ledger.Ledger
	Risk      *risk.Checker
	Journal   *journal.Journal
	Bridge    settlement.Bridge
	Settler   *settlement.Handler
	Publisher *marketdata.Publisher
	Events    *events.Log
	Engine    *matching.Engine
}

// Bootstrap constructs and wires every component, registering every market
// found in the catalog with the matching engine. Callers own App.Close.
func Bootstrap(ctx context.Context, cfg *config.Config, log zerolog.Logger, eventLogPath string) (*App, error) {
	db, err := store.Open(cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	led := ledger.New(db.Ledger())
	jrn := journal.New(db.Journal())
	riskConfig := risk.DefaultConfig()
	for _, m := range cfg.Markets {
		if m.PriceBandPercent.Sign() <= 0 {
			continue
		}
		marketID, err := uuid.Parse(m.MarketID)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("parse market_id %q in config: %w", m.MarketID, err)
		}
		riskConfig.MarketBandPercent[marketID] = m.PriceBandPercent
	}
	riskChecker := risk.NewChecker(riskConfig, risk.NoopOracle{})

	publisher := marketdata.NewPublisher(1000)
	bridge := settlement.NewNoopBridge()
	settler := settlement.NewHandler(log, jrn, led, db.Orders())

	eventLog, err := events.Open(events.Config{Path: eventLogPath, SyncMode: false})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open event log: %w", err)
	}

	engine := matching.NewEngine(matching.Config{
		Log:       log,
		Ledger:    led,
		Journal:   jrn,
		Risk:      riskChecker,
		Bridge:    bridge,
		Publisher: publisher,
		EventLog:  eventLog,
		Assets:    db.Assets(),
	})

	markets, err := db.Markets().All(ctx)
	if err != nil {
		eventLog.Close()
		db.Close()
		return nil, fmt.Errorf("load markets: %w", err)
	}
	for _, m := range markets {
		engine.RegisterMarket(m)
	}

	go drainSettlements(ctx, log, bridge, settler)

	return &App{
		Config:    cfg,
		Log:       log,
		Store:     db,
		Ledger:    led,
		Risk:      riskChecker,
		Journal:   jrn,
		Bridge:    bridge,
		Settler:   settler,
		Publisher: publisher,
		Events:    eventLog,
		Engine:    engine,
	}, nil
}

// drainSettlements feeds the noop bridge's immediate settlement outcomes
// into the callback handler, standing in for a real chain indexer/webhook.
func drainSettlements(ctx context.Context, log zerolog.Logger, bridge *settlement.NoopBridge, settler *settlement.Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case result, ok := <-bridge.Results():
			if !ok {
				return
			}
			if err := settler.HandleResult(ctx, result); err != nil {
				log.Error().Err(err).Str("trade_id", result.TradeID.String()).Msg("settlement callback handling failed")
			}
		}
	}
}

// Close releases every resource Bootstrap opened.
func (a *App) Close() error {
	a.Publisher.Close()
	if err := a.Events.Close(); err != nil {
		return err
	}
	return a.Store.Close()
}
