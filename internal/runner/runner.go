// Package runner drives the daily paper trading pipeline: fetch earnings
// events, analyze transcripts, gate, record signals, and move paper orders
// through entries and exits.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/whaleforce/earnings-signals/internal/adapters"
	"github.com/whaleforce/earnings-signals/internal/artifacts"
	"github.com/whaleforce/earnings-signals/internal/calendar"
	"github.com/whaleforce/earnings-signals/internal/consistency"
	"github.com/whaleforce/earnings-signals/internal/freeze"
	"github.com/whaleforce/earnings-signals/internal/llm"
	"github.com/whaleforce/earnings-signals/internal/observ"
	"github.com/whaleforce/earnings-signals/internal/orderbook"
	"github.com/whaleforce/earnings-signals/internal/signals"
)

// Config holds runner behavior switches.
type Config struct {
	// DryRun analyzes and logs signals without creating orders.
	DryRun bool
	// LookbackDays extends the event window backwards so calls published
	// after the previous close are not missed.
	LookbackDays int
}

// Result summarizes one daily run.
type Result struct {
	RunID           string   `json:"run_id"`
	RunDate         string   `json:"run_date"`
	Status          string   `json:"status"`
	EventsFound     int      `json:"events_found"`
	EventsAnalyzed  int      `json:"events_analyzed"`
	TradeSignals    int      `json:"trade_signals"`
	NoTradeSignals  int      `json:"no_trade_signals"`
	Abstentions     int      `json:"abstentions"`
	PositionsOpened int      `json:"positions_opened"`
	PositionsFilled int      `json:"positions_filled"`
	PositionsClosed int      `json:"positions_closed"`
	Errors          []string `json:"errors"`
}

// Statuses a run can end with.
const (
	StatusCompleted       = "completed"
	StatusNoEvents        = "completed_no_events"
	StatusSkippedNonTrade = "skipped_non_trading_day"
	StatusFreezeViolation = "error_freeze_violation"
)

// Runner wires the pipeline together. All collaborators are injected; the
// runner owns no global state.
type Runner struct {
	log       zerolog.Logger
	cal       *calendar.Calendar
	earnings  adapters.EarningsAdapter
	prices    adapters.PriceAdapter
	analyzer  llm.Analyzer
	multiRun  *consistency.MultiRunAnalyzer
	generator *signals.Generator
	book      *orderbook.Book
	artifacts *artifacts.Logger
	policy    *freeze.Policy
	runtime   freeze.RuntimeConfig
	metrics   *observ.Metrics
	alerts    *observ.AlertManager
	state     *State
	config    Config

	now func() time.Time
}

// Deps bundles the runner's collaborators.
type Deps struct {
	Log       zerolog.Logger
	Calendar  *calendar.Calendar
	Earnings  adapters.EarningsAdapter
	Prices    adapters.PriceAdapter
	Analyzer  llm.Analyzer
	// MultiRun, when set, replaces single-shot analysis with K-run voting.
	MultiRun  *consistency.MultiRunAnalyzer
	Generator *signals.Generator
	Book      *orderbook.Book
	Artifacts *artifacts.Logger
	Policy    *freeze.Policy
	Runtime   freeze.RuntimeConfig
	Metrics   *observ.Metrics
	Alerts    *observ.AlertManager
	State     *State
}

// New creates a runner.
func New(deps Deps, config Config) *Runner {
	if config.LookbackDays <= 0 {
		config.LookbackDays = 1
	}
	return &Runner{
		log:       deps.Log,
		cal:       deps.Calendar,
		earnings:  deps.Earnings,
		prices:    deps.Prices,
		analyzer:  deps.Analyzer,
		multiRun:  deps.MultiRun,
		generator: deps.Generator,
		book:      deps.Book,
		artifacts: deps.Artifacts,
		policy:    deps.Policy,
		runtime:   deps.Runtime,
		metrics:   deps.Metrics,
		alerts:    deps.Alerts,
		state:     deps.State,
		config:    config,
		now:       time.Now,
	}
}

// RunDaily executes the pipeline for one date. Per-event failures are
// isolated: they are recorded in Result.Errors and the run continues.
// Freeze violations abort before any external call.
func (r *Runner) RunDaily(ctx context.Context, runDate time.Time) (*Result, error) {
	runDate = calendar.Day(runDate)
	runID := fmt.Sprintf("paper_%s_%s", runDate.Format("2006-01-02"), r.now().UTC().Format("150405"))
	result := &Result{RunID: runID, RunDate: runDate.Format("2006-01-02"), Errors: []string{}}
	log := r.log.With().Str("run_id", runID).Logger()

	if !r.cal.IsTradingDay(runDate) {
		log.Info().Str("date", result.RunDate).Msg("not a trading day, skipping")
		result.Status = StatusSkippedNonTrade
		return result, nil
	}

	if err := r.policy.ValidateConfig(r.runtime); err != nil {
		r.alerts.Raise(observ.SeverityCritical, "freeze policy violation", err.Error(), map[string]string{"run_id": runID})
		result.Status = StatusFreezeViolation
		result.Errors = append(result.Errors, err.Error())
		return result, err
	}

	if _, err := r.artifacts.CreateRun(artifacts.RunConfig{
		RunID:          runID,
		RunDate:        result.RunDate,
		Model:          r.analyzer.Model(),
		PromptVersion:  r.analyzer.PromptVersion(),
		ScoreThreshold: r.runtime.ScoreThreshold,
		EvidenceMin:    r.runtime.EvidenceMinCount,
	}); err != nil {
		return result, fmt.Errorf("create run artifacts: %w", err)
	}

	events := r.fetchEvents(ctx, runDate, result)
	result.EventsFound = len(events)
	r.metrics.SetGauge("events_found", float64(len(events)), nil)

	// One close price per symbol per run. Entry fills and exit checks both
	// read from this snapshot so a single day never sees two prices.
	priceSnapshot := make(map[string]float64)

	var outputs []signals.Output
	if len(events) == 0 {
		log.Info().Msg("no new earnings events")
	} else {
		outputs = r.processEvents(ctx, runID, events, result, log)
	}

	if err := r.artifacts.LogSignals(runID, outputs); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("log signals: %v", err))
	}

	r.fillEntries(ctx, runDate, priceSnapshot, result, log)
	r.checkExits(ctx, runDate, priceSnapshot, result, log)

	if len(events) == 0 && result.PositionsFilled == 0 && result.PositionsClosed == 0 {
		result.Status = StatusNoEvents
	} else {
		result.Status = StatusCompleted
	}
	r.metrics.SetGauge("open_positions", float64(len(r.book.OpenPositions())), nil)

	if err := r.artifacts.LogSummary(runID, result); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("log summary: %v", err))
	}

	log.Info().
		Str("status", result.Status).
		Int("events", result.EventsFound).
		Int("trades", result.TradeSignals).
		Int("filled", result.PositionsFilled).
		Int("closed", result.PositionsClosed).
		Int("errors", len(result.Errors)).
		Msg("daily run finished")
	return result, nil
}

// fetchEvents collects earnings events over the lookback window ending at
// the run date. The window refetches recent days, so events already in the
// processed ledger are dropped here.
func (r *Runner) fetchEvents(ctx context.Context, runDate time.Time, result *Result) []adapters.EarningsEvent {
	var events []adapters.EarningsEvent
	seen := make(map[string]bool)
	for offset := r.config.LookbackDays; offset >= 0; offset-- {
		day := runDate.AddDate(0, 0, -offset)
		found, err := r.earnings.EventsOn(ctx, day)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("fetch events for %s: %v", day.Format("2006-01-02"), err))
			continue
		}
		for _, event := range found {
			if seen[event.EventID] || r.state.IsProcessed(event.EventID) {
				continue
			}
			seen[event.EventID] = true
			events = append(events, event)
		}
	}
	return events
}

func (r *Runner) processEvents(ctx context.Context, runID string, events []adapters.EarningsEvent, result *Result, log zerolog.Logger) []signals.Output {
	var outputs []signals.Output
	for i, event := range events {
		generated, err := r.processEvent(ctx, runID, i, event)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", event.EventID, err))
			r.metrics.IncCounter("events_processed", map[string]string{"status": "error"})
			log.Warn().Err(err).Str("event_id", event.EventID).Msg("event failed")
			continue
		}
		result.EventsAnalyzed++
		r.metrics.IncCounter("events_processed", map[string]string{"status": "ok"})
		outputs = append(outputs, generated.signal.Output)
		if err := r.state.MarkProcessed(event.EventID, runID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: mark processed: %v", event.EventID, err))
		}

		if generated.abstained {
			result.Abstentions++
		}
		if !generated.signal.Signal.TradeLong {
			result.NoTradeSignals++
			continue
		}
		result.TradeSignals++
		r.metrics.IncCounter("trade_signals", nil)

		if r.config.DryRun {
			continue
		}
		sig := generated.signal.Signal
		if _, err := r.book.OpenPosition(orderbook.OpenRequest{
			SignalID:      sig.SignalID,
			Symbol:        sig.Symbol,
			EventDate:     sig.EventDate,
			EntryDate:     sig.EntryDate,
			ExitDate:      sig.ExitDate,
			Score:         sig.Score,
			Confidence:    sig.Confidence,
			RunID:         runID,
			Model:         sig.Model,
			PromptVersion: sig.PromptVersion,
		}); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: open position: %v", event.EventID, err))
			continue
		}
		result.PositionsOpened++
	}
	return outputs
}

type processedEvent struct {
	signal    *signals.GeneratedSignal
	abstained bool
}

func (r *Runner) processEvent(ctx context.Context, runID string, batchIndex int, event adapters.EarningsEvent) (*processedEvent, error) {
	pack, err := r.earnings.Transcript(ctx, event.EventID)
	if err != nil {
		return nil, fmt.Errorf("fetch transcript: %w", err)
	}
	dataComplete := pack.PreparedRemarks != "" && pack.QASession != ""

	var (
		output    *llm.AnalysisOutput
		usage     llm.Usage
		abstained bool
	)
	if r.multiRun != nil {
		res, err := r.multiRun.Analyze(ctx, *pack)
		if err != nil {
			return nil, fmt.Errorf("multi-run analysis: %w", err)
		}
		output = res.Output
		usage = res.Usage
		abstained = res.Vote.Recommendation == consistency.Abstain
	} else {
		res, err := r.analyzer.Analyze(ctx, *pack)
		if err != nil {
			return nil, fmt.Errorf("analysis: %w", err)
		}
		output = res.Output
		usage = res.Usage
	}
	r.metrics.Observe("analysis_cost_usd", usage.CostUSD, nil)

	generated, err := r.generator.Generate(signals.Request{
		EventID:      event.EventID,
		Symbol:       event.Symbol,
		EventDate:    event.CallDate,
		Output:       output,
		Usage:        usage,
		RunID:        runID,
		BatchIndex:   batchIndex,
		DataComplete: dataComplete,
	})
	if err != nil {
		return nil, err
	}
	return &processedEvent{signal: generated, abstained: abstained}, nil
}

// fillEntries fills pending orders whose entry date has arrived, at the
// day's close price. A missing price leaves the order pending for the next
// run; it is never filled with a substitute.
func (r *Runner) fillEntries(ctx context.Context, runDate time.Time, snapshot map[string]float64, result *Result, log zerolog.Logger) {
	for _, order := range r.book.PendingEntries(runDate) {
		price, err := r.closePrice(ctx, order.Symbol, runDate, snapshot)
		if err != nil {
			if !errors.Is(err, adapters.ErrPriceUnavailable) {
				result.Errors = append(result.Errors, fmt.Sprintf("entry price %s: %v", order.Symbol, err))
			}
			log.Warn().Str("order_id", order.OrderID).Str("symbol", order.Symbol).Msg("entry price unavailable, order stays pending")
			continue
		}
		if _, err := r.book.MarkEntered(order.OrderID, price); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("fill %s: %v", order.OrderID, err))
			continue
		}
		result.PositionsFilled++
		r.metrics.IncCounter("positions_filled", nil)
	}
}

// checkExits evaluates every open position against the day's close. Exit
// rules fire in fixed priority: take-profit, stop-loss, max-hold. Positions
// without a price stay open and are re-checked next run.
func (r *Runner) checkExits(ctx context.Context, runDate time.Time, snapshot map[string]float64, result *Result, log zerolog.Logger) {
	for _, order := range r.book.OpenPositions() {
		price, err := r.closePrice(ctx, order.Symbol, runDate, snapshot)
		if err != nil {
			if !errors.Is(err, adapters.ErrPriceUnavailable) {
				result.Errors = append(result.Errors, fmt.Sprintf("exit price %s: %v", order.Symbol, err))
			}
			continue
		}
		reason := r.book.ExitTrigger(order, price, runDate)
		if reason == "" {
			continue
		}
		closed, err := r.book.MarkExited(order.OrderID, price, reason)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("close %s: %v", order.OrderID, err))
			continue
		}
		result.PositionsClosed++
		r.metrics.IncCounter("positions_closed", map[string]string{"reason": string(reason)})
		log.Info().
			Str("order_id", closed.OrderID).
			Str("symbol", closed.Symbol).
			Str("reason", string(reason)).
			Float64("return_pct", closed.ReturnPct).
			Msg("position closed")
	}
}

func (r *Runner) closePrice(ctx context.Context, symbol string, date time.Time, snapshot map[string]float64) (float64, error) {
	if price, ok := snapshot[symbol]; ok {
		return price, nil
	}
	price, err := r.prices.ClosePrice(ctx, symbol, date)
	if err != nil {
		return 0, err
	}
	snapshot[symbol] = price
	return price, nil
}
