package runner

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whaleforce/earnings-signals/internal/adapters"
	"github.com/whaleforce/earnings-signals/internal/artifacts"
	"github.com/whaleforce/earnings-signals/internal/calendar"
	"github.com/whaleforce/earnings-signals/internal/consistency"
	"github.com/whaleforce/earnings-signals/internal/freeze"
	"github.com/whaleforce/earnings-signals/internal/gate"
	"github.com/whaleforce/earnings-signals/internal/llm"
	"github.com/whaleforce/earnings-signals/internal/observ"
	"github.com/whaleforce/earnings-signals/internal/orderbook"
	"github.com/whaleforce/earnings-signals/internal/signals"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

type fixture struct {
	runner   *Runner
	earnings *adapters.MockEarningsAdapter
	prices   *adapters.MockPriceAdapter
	analyzer *llm.MockAnalyzer
	book     *orderbook.Book
	metrics  *observ.Metrics
}

// newFixture builds a runner over mocks with the freeze policy satisfied
// for 2026 paper trading.
func newFixture(t *testing.T, config Config, multiRunK int) *fixture {
	t.Helper()

	cal := calendar.New("NYSE")
	g := gate.New(gate.DefaultConfig())
	earnings := adapters.NewMockEarningsAdapter()
	prices := adapters.NewMockPriceAdapter()
	analyzer := llm.NewMockAnalyzer()

	book, err := orderbook.New(t.TempDir(), 0.10, 0.10)
	require.NoError(t, err)

	policy := freeze.NewPolicy(t.TempDir(), time.Time{})
	_, err = policy.CreateManifest(freeze.Manifest{
		BatchScoreModel:         "mock-model",
		FullAuditModel:          "mock-audit",
		BatchScorePromptVersion: "v1.0.0",
		FullAuditPromptVersion:  "v1.0.0",
		ScoreThreshold:          0.70,
		EvidenceMinCount:        2,
		BlockOnMarginConcern:    true,
	})
	require.NoError(t, err)

	var multi *consistency.MultiRunAnalyzer
	if multiRunK > 0 {
		multi = consistency.NewMultiRunAnalyzer(analyzer, consistency.NewChecker(multiRunK, 0.01, 0.8), time.Second)
	}

	state, err := LoadState(filepath.Join(t.TempDir(), "processed_events.json"))
	require.NoError(t, err)

	metrics := observ.NewMetrics()
	r := New(Deps{
		Log:       zerolog.Nop(),
		Calendar:  cal,
		Earnings:  earnings,
		Prices:    prices,
		Analyzer:  analyzer,
		MultiRun:  multi,
		Generator: signals.NewGenerator(cal, g, 30, "mock-model", "v1.0.0"),
		Book:      book,
		Artifacts: artifacts.NewLogger(t.TempDir()),
		Policy:    policy,
		Runtime: freeze.RuntimeConfig{
			BatchScoreModel:  "mock-model",
			FullAuditModel:   "mock-audit",
			PromptVersion:    "v1.0.0",
			ScoreThreshold:   0.70,
			EvidenceMinCount: 2,
		},
		Metrics: metrics,
		Alerts:  observ.NewAlertManager(zerolog.Nop(), nil, time.Minute),
		State:   state,
	}, config)

	return &fixture{runner: r, earnings: earnings, prices: prices, analyzer: analyzer, book: book, metrics: metrics}
}

func tradeOutput(score float64) *llm.AnalysisOutput {
	return &llm.AnalysisOutput{
		Score:          score,
		TradeCandidate: true,
		EvidenceCount:  3,
		EvidenceSnippets: []llm.Evidence{
			{Quote: "Revenue grew 25%", Speaker: "CFO", Section: llm.SectionPrepared},
			{Quote: "Demand remains strong", Speaker: "CEO", Section: llm.SectionQA},
		},
	}
}

func addEvent(f *fixture, eventID, symbol, callDate string) {
	f.earnings.AddEvent(adapters.EarningsEvent{
		EventID:   eventID,
		Symbol:    symbol,
		CallDate:  date(callDate),
		Quarter:   "2026Q1",
		HasScript: true,
	}, &llm.TranscriptPack{
		EventID:         eventID,
		Symbol:          symbol,
		PreparedRemarks: "Good afternoon, thank you for joining...",
		QASession:       "Analyst: first question...",
		WordCount:       8000,
	})
}

func TestRunDaily_SkipsNonTradingDay(t *testing.T) {
	f := newFixture(t, Config{}, 0)

	// 2026-01-03 is a Saturday.
	res, err := f.runner.RunDaily(context.Background(), date("2026-01-03"))
	require.NoError(t, err)
	assert.Equal(t, StatusSkippedNonTrade, res.Status)
	assert.Zero(t, res.EventsFound)
}

func TestRunDaily_TradeSignalCreatesPendingOrder(t *testing.T) {
	f := newFixture(t, Config{}, 0)
	addEvent(f, "AAPL_2026Q1", "AAPL", "2026-01-05")
	f.analyzer.Script("AAPL_2026Q1", tradeOutput(0.85))

	res, err := f.runner.RunDaily(context.Background(), date("2026-01-05"))
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, 1, res.EventsFound)
	assert.Equal(t, 1, res.EventsAnalyzed)
	assert.Equal(t, 1, res.TradeSignals)
	assert.Equal(t, 1, res.PositionsOpened)
	assert.Empty(t, res.Errors)

	pending := f.book.PendingEntries(date("2026-01-06"))
	require.Len(t, pending, 1)
	assert.Equal(t, "AAPL", pending[0].Symbol)
	assert.True(t, pending[0].EntryDate.Equal(date("2026-01-06")))
}

func TestRunDaily_EntryFillsAtNextDayClose(t *testing.T) {
	f := newFixture(t, Config{}, 0)
	addEvent(f, "AAPL_2026Q1", "AAPL", "2026-01-05")
	f.analyzer.Script("AAPL_2026Q1", tradeOutput(0.85))

	_, err := f.runner.RunDaily(context.Background(), date("2026-01-05"))
	require.NoError(t, err)

	f.prices.SetPrice("AAPL", date("2026-01-06"), 210.0)
	res, err := f.runner.RunDaily(context.Background(), date("2026-01-06"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.PositionsFilled)

	open := f.book.OpenPositions()
	require.Len(t, open, 1)
	assert.Equal(t, 210.0, open[0].EntryPrice)
	assert.Equal(t, 231.0, open[0].TakeProfitPrice)
}

func TestRunDaily_MissingEntryPriceStaysPending(t *testing.T) {
	f := newFixture(t, Config{}, 0)
	addEvent(f, "AAPL_2026Q1", "AAPL", "2026-01-05")
	f.analyzer.Script("AAPL_2026Q1", tradeOutput(0.85))

	_, err := f.runner.RunDaily(context.Background(), date("2026-01-05"))
	require.NoError(t, err)

	// No price registered for the entry day.
	res, err := f.runner.RunDaily(context.Background(), date("2026-01-06"))
	require.NoError(t, err)
	assert.Zero(t, res.PositionsFilled)
	assert.Len(t, f.book.PendingEntries(date("2026-01-06")), 1)

	// Next day the price appears; the order fills late.
	f.prices.SetPrice("AAPL", date("2026-01-07"), 208.0)
	res, err = f.runner.RunDaily(context.Background(), date("2026-01-07"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.PositionsFilled)
}

func TestRunDaily_TakeProfitExit(t *testing.T) {
	f := newFixture(t, Config{}, 0)
	addEvent(f, "AAPL_2026Q1", "AAPL", "2026-01-05")
	f.analyzer.Script("AAPL_2026Q1", tradeOutput(0.85))

	_, err := f.runner.RunDaily(context.Background(), date("2026-01-05"))
	require.NoError(t, err)
	f.prices.SetPrice("AAPL", date("2026-01-06"), 100.0)
	_, err = f.runner.RunDaily(context.Background(), date("2026-01-06"))
	require.NoError(t, err)

	f.prices.SetPrice("AAPL", date("2026-01-07"), 111.0)
	res, err := f.runner.RunDaily(context.Background(), date("2026-01-07"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.PositionsClosed)

	stats := f.book.Statistics()
	assert.Equal(t, 1, stats.Closed)
	assert.Equal(t, 1.0, stats.WinRate)
}

func TestRunDaily_GateBlocksLowScore(t *testing.T) {
	f := newFixture(t, Config{}, 0)
	addEvent(f, "WEAK_2026Q1", "WEAK", "2026-01-05")
	f.analyzer.Script("WEAK_2026Q1", tradeOutput(0.55))

	res, err := f.runner.RunDaily(context.Background(), date("2026-01-05"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.NoTradeSignals)
	assert.Zero(t, res.TradeSignals)
	assert.Zero(t, res.PositionsOpened)
}

func TestRunDaily_FreezeViolationAborts(t *testing.T) {
	f := newFixture(t, Config{}, 0)
	f.runner.runtime.ScoreThreshold = 0.65 // drifted from the manifest
	addEvent(f, "AAPL_2026Q1", "AAPL", "2026-01-05")

	res, err := f.runner.RunDaily(context.Background(), date("2026-01-05"))
	require.Error(t, err)
	assert.Equal(t, StatusFreezeViolation, res.Status)
	assert.Zero(t, res.EventsFound, "no external calls after a freeze violation")
}

func TestRunDaily_EventErrorIsIsolated(t *testing.T) {
	f := newFixture(t, Config{}, 0)
	addEvent(f, "GOOD_2026Q1", "GOOD", "2026-01-05")
	addEvent(f, "BAD_2026Q1", "BAD", "2026-01-05")
	f.analyzer.Script("GOOD_2026Q1", tradeOutput(0.85))
	// BAD has no scripted result, so its analysis fails.

	res, err := f.runner.RunDaily(context.Background(), date("2026-01-05"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.EventsFound)
	assert.Equal(t, 1, res.EventsAnalyzed)
	assert.Equal(t, 1, res.TradeSignals)
	assert.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "BAD_2026Q1")
}

func TestRunDaily_DryRunSkipsOrders(t *testing.T) {
	f := newFixture(t, Config{DryRun: true}, 0)
	addEvent(f, "AAPL_2026Q1", "AAPL", "2026-01-05")
	f.analyzer.Script("AAPL_2026Q1", tradeOutput(0.85))

	res, err := f.runner.RunDaily(context.Background(), date("2026-01-05"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.TradeSignals)
	assert.Zero(t, res.PositionsOpened)
	assert.Empty(t, f.book.PendingEntries(date("2026-01-06")))
}

func TestRunDaily_ConsistencyAbstention(t *testing.T) {
	f := newFixture(t, Config{}, 5)
	addEvent(f, "FLIP_2026Q1", "FLIP", "2026-01-05")
	// 3-2 split across the K runs.
	for _, decision := range []bool{true, true, true, false, false} {
		out := tradeOutput(0.75)
		out.TradeCandidate = decision
		f.analyzer.Script("FLIP_2026Q1", out)
	}

	res, err := f.runner.RunDaily(context.Background(), date("2026-01-05"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Abstentions)
	assert.Equal(t, 1, res.NoTradeSignals)
	assert.Zero(t, res.TradeSignals)
	assert.Equal(t, 5, f.analyzer.Calls("FLIP_2026Q1"))
}

func TestRunDaily_EventAnalyzedOnce(t *testing.T) {
	f := newFixture(t, Config{}, 0)
	addEvent(f, "AAPL_2026Q1", "AAPL", "2026-01-05")
	f.analyzer.Script("AAPL_2026Q1", tradeOutput(0.85))

	_, err := f.runner.RunDaily(context.Background(), date("2026-01-05"))
	require.NoError(t, err)

	// The lookback window refetches Jan 5 on the Jan 6 run; the event must
	// not be analyzed or traded again.
	res, err := f.runner.RunDaily(context.Background(), date("2026-01-06"))
	require.NoError(t, err)
	assert.Zero(t, res.EventsFound)
	assert.Equal(t, 1, f.analyzer.Calls("AAPL_2026Q1"))
	assert.Len(t, f.book.PendingEntries(date("2026-01-07")), 1)
}

func TestRunDaily_SinglePricePerSymbolPerDay(t *testing.T) {
	f := newFixture(t, Config{}, 0)
	addEvent(f, "AAPL_2026Q1", "AAPL", "2026-01-05")
	addEvent(f, "AAPL_2026Q2", "AAPL", "2026-01-05")
	f.analyzer.Script("AAPL_2026Q1", tradeOutput(0.85))
	f.analyzer.Script("AAPL_2026Q2", tradeOutput(0.85))

	_, err := f.runner.RunDaily(context.Background(), date("2026-01-05"))
	require.NoError(t, err)

	f.prices.SetPrice("AAPL", date("2026-01-06"), 100.0)
	_, err = f.runner.RunDaily(context.Background(), date("2026-01-06"))
	require.NoError(t, err)

	// Two orders, one symbol: the snapshot serves both from one fetch.
	assert.Equal(t, 1, f.prices.Calls())
}
