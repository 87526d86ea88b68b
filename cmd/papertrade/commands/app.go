package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/whaleforce/earnings-signals/internal/adapters"
	"github.com/whaleforce/earnings-signals/internal/artifacts"
	"github.com/whaleforce/earnings-signals/internal/calendar"
	"github.com/whaleforce/earnings-signals/internal/config"
	"github.com/whaleforce/earnings-signals/internal/consistency"
	"github.com/whaleforce/earnings-signals/internal/freeze"
	"github.com/whaleforce/earnings-signals/internal/gate"
	"github.com/whaleforce/earnings-signals/internal/llm"
	"github.com/whaleforce/earnings-signals/internal/observ"
	"github.com/whaleforce/earnings-signals/internal/orderbook"
	"github.com/whaleforce/earnings-signals/internal/runner"
	"github.com/whaleforce/earnings-signals/internal/signals"
)

// app is the constructed dependency graph. Everything is built once from
// the loaded config; no package-level singletons.
type app struct {
	cfg     config.Root
	log     zerolog.Logger
	cal     *calendar.Calendar
	policy  *freeze.Policy
	book    *orderbook.Book
	metrics *observ.Metrics
	alerts  *observ.AlertManager
	runner  *runner.Runner
}

// loadApp builds the core pieces every command needs: config, logger,
// calendar, freeze policy, and the order book.
func loadApp() (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	log := observ.NewLogger(level, verbose)

	boundary, err := cfg.FreezeBoundary()
	if err != nil {
		return nil, err
	}

	book, err := orderbook.New(cfg.Paths.DataDir, cfg.Trading.TakeProfit, cfg.Trading.StopLoss)
	if err != nil {
		return nil, err
	}

	var notifier observ.Notifier
	if cfg.Alerting.WebhookURL != "" {
		notifier = observ.NewWebhookNotifier(cfg.Alerting.WebhookURL, 10*time.Second)
	}

	return &app{
		cfg:     cfg,
		log:     log,
		cal:     calendar.New(cfg.Trading.Exchange),
		policy:  freeze.NewPolicy(cfg.Paths.DataDir, boundary),
		book:    book,
		metrics: observ.NewMetrics(),
		alerts:  observ.NewAlertManager(log, notifier, time.Duration(cfg.Alerting.CooldownMinutes)*time.Minute),
	}, nil
}

// buildRunner attaches the live adapters and the pipeline runner. Split
// from loadApp so status/calendar commands work without provider URLs.
func (a *app) buildRunner(dryRun bool) error {
	analyzer, err := llm.NewClient(llm.ClientConfig{
		BaseURL:            a.cfg.Analyzer.BaseURL,
		APIKey:             a.cfg.Analyzer.APIKey,
		Model:              a.cfg.Analyzer.Model,
		PromptVersion:      a.cfg.Analyzer.PromptVersion,
		TimeoutSeconds:     a.cfg.Analyzer.TimeoutSeconds,
		MaxRetries:         a.cfg.Analyzer.MaxRetries,
		RateLimitPerMinute: a.cfg.Analyzer.RateLimitPerMinute,
	})
	if err != nil {
		return fmt.Errorf("build analyzer: %w", err)
	}

	prices, err := adapters.NewMarketDataClient(adapters.MarketDataConfig{
		BaseURL:            a.cfg.MarketData.BaseURL,
		APIKey:             a.cfg.MarketData.APIKey,
		RateLimitPerMinute: a.cfg.MarketData.RateLimitPerMinute,
		TimeoutSeconds:     a.cfg.MarketData.TimeoutSeconds,
	})
	if err != nil {
		return fmt.Errorf("build market data client: %w", err)
	}

	earnings, err := adapters.NewEarningsClient(adapters.EarningsConfig{
		BaseURL:            a.cfg.Earnings.BaseURL,
		APIKey:             a.cfg.Earnings.APIKey,
		RateLimitPerMinute: a.cfg.Earnings.RateLimitPerMinute,
		TimeoutSeconds:     a.cfg.Earnings.TimeoutSeconds,
	})
	if err != nil {
		return fmt.Errorf("build earnings client: %w", err)
	}

	var multi *consistency.MultiRunAnalyzer
	if a.cfg.Consistency.Enabled {
		checker := consistency.NewChecker(a.cfg.Consistency.Runs, a.cfg.Consistency.MaxFlipRate, a.cfg.Consistency.MinAgreement)
		multi = consistency.NewMultiRunAnalyzer(analyzer, checker, time.Duration(a.cfg.Analyzer.TimeoutSeconds)*time.Second)
	}

	state, err := runner.LoadState(filepath.Join(a.cfg.Paths.DataDir, "processed_events.json"))
	if err != nil {
		return err
	}

	g := gate.New(gate.Config{
		ScoreThreshold:       a.cfg.Gate.ScoreThreshold,
		EvidenceMinCount:     a.cfg.Gate.EvidenceMinCount,
		BlockOnMarginConcern: a.cfg.Gate.BlockOnMarginConcern,
	})

	a.runner = runner.New(runner.Deps{
		Log:       a.log,
		Calendar:  a.cal,
		Earnings:  earnings,
		Prices:    prices,
		Analyzer:  analyzer,
		MultiRun:  multi,
		Generator: signals.NewGenerator(a.cal, g, a.cfg.Trading.HoldingDays, a.cfg.Analyzer.Model, a.cfg.Analyzer.PromptVersion),
		Book:      a.book,
		Artifacts: artifacts.NewLogger(a.cfg.Paths.RunsDir),
		Policy:    a.policy,
		Runtime:   a.runtimeConfig(),
		Metrics:   a.metrics,
		Alerts:    a.alerts,
		State:     state,
	}, runner.Config{DryRun: dryRun})
	return nil
}

func (a *app) runtimeConfig() freeze.RuntimeConfig {
	return freeze.RuntimeConfig{
		BatchScoreModel:  a.cfg.Analyzer.Model,
		FullAuditModel:   a.cfg.Analyzer.FullAuditModel,
		PromptVersion:    a.cfg.Analyzer.PromptVersion,
		PromptHash:       a.cfg.Analyzer.PromptHash,
		ScoreThreshold:   a.cfg.Gate.ScoreThreshold,
		EvidenceMinCount: a.cfg.Gate.EvidenceMinCount,
	}
}
