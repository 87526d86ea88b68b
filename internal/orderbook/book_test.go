package orderbook

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func newBook(t *testing.T) *Book {
	t.Helper()
	b, err := New(t.TempDir(), 0.10, 0.10)
	require.NoError(t, err)
	return b
}

func openRequest(symbol string) OpenRequest {
	return OpenRequest{
		SignalID:      "sig_" + symbol + "_deadbeef",
		Symbol:        symbol,
		EventDate:     date("2026-01-02"),
		EntryDate:     date("2026-01-05"),
		ExitDate:      date("2026-02-17"),
		Score:         0.82,
		Confidence:    0.91,
		RunID:         "run_20260105",
		Model:         "gpt-4o-mini",
		PromptVersion: "v1.0.0",
	}
}

func TestLifecycle_PendingOpenClosed(t *testing.T) {
	b := newBook(t)

	order, err := b.OpenPosition(openRequest("AAPL"))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, order.Status)
	assert.Equal(t, "long", order.Direction)

	pending := b.PendingEntries(date("2026-01-05"))
	require.Len(t, pending, 1)

	entered, err := b.MarkEntered(order.OrderID, 100.0)
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, entered.Status)
	assert.Equal(t, 110.0, entered.TakeProfitPrice)
	assert.Equal(t, 90.0, entered.StopLossPrice)

	exited, err := b.MarkExited(order.OrderID, 108.0, ExitMaxHold)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, exited.Status)
	assert.InDelta(t, 0.08, exited.ReturnPct, 1e-9)
	assert.Equal(t, ExitMaxHold, exited.ExitReason)
}

func TestLifecycle_IllegalTransitions(t *testing.T) {
	b := newBook(t)

	order, err := b.OpenPosition(openRequest("MSFT"))
	require.NoError(t, err)

	// Exit before entry.
	_, err = b.MarkExited(order.OrderID, 100, ExitMaxHold)
	assert.Error(t, err)

	_, err = b.MarkEntered(order.OrderID, 100)
	require.NoError(t, err)

	// Double entry.
	_, err = b.MarkEntered(order.OrderID, 100)
	assert.Error(t, err)

	// Cancel an open position.
	_, err = b.Cancel(order.OrderID, "no longer wanted")
	assert.Error(t, err)

	_, err = b.MarkExited(order.OrderID, 95, ExitStopLoss)
	require.NoError(t, err)

	// Re-exit a closed position.
	_, err = b.MarkExited(order.OrderID, 95, ExitStopLoss)
	assert.Error(t, err)
}

func TestCancel_PendingOnly(t *testing.T) {
	b := newBook(t)

	order, err := b.OpenPosition(openRequest("NVDA"))
	require.NoError(t, err)

	cancelled, err := b.Cancel(order.OrderID, "price unavailable past entry window")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.NotEmpty(t, cancelled.CancelReason)

	assert.Empty(t, b.PendingEntries(date("2026-01-05")))
}

func TestPendingEntries_IncludesMissedDates(t *testing.T) {
	b := newBook(t)

	_, err := b.OpenPosition(openRequest("AAPL"))
	require.NoError(t, err)

	assert.Empty(t, b.PendingEntries(date("2026-01-02")), "before entry date")
	assert.Len(t, b.PendingEntries(date("2026-01-05")), 1, "on entry date")
	assert.Len(t, b.PendingEntries(date("2026-01-07")), 1, "after a missed run")
}

func TestExitTrigger_Priority(t *testing.T) {
	b := newBook(t)

	order, err := b.OpenPosition(openRequest("AAPL"))
	require.NoError(t, err)
	open, err := b.MarkEntered(order.OrderID, 100.0)
	require.NoError(t, err)

	before := date("2026-02-01")
	onExit := date("2026-02-17")

	assert.Equal(t, ExitTakeProfit, b.ExitTrigger(open, 110.0, before))
	assert.Equal(t, ExitStopLoss, b.ExitTrigger(open, 90.0, before))
	assert.Equal(t, ExitReason(""), b.ExitTrigger(open, 105.0, before))
	assert.Equal(t, ExitMaxHold, b.ExitTrigger(open, 105.0, onExit))

	// Take-profit wins over a simultaneous max-hold.
	assert.Equal(t, ExitTakeProfit, b.ExitTrigger(open, 111.0, onExit))
	// A missing price never triggers an exit.
	assert.Equal(t, ExitReason(""), b.ExitTrigger(open, 0, onExit))
}

func TestPersistence_SurvivesReload(t *testing.T) {
	dir := t.TempDir()
	b, err := New(dir, 0.10, 0.10)
	require.NoError(t, err)

	order, err := b.OpenPosition(openRequest("AAPL"))
	require.NoError(t, err)
	_, err = b.MarkEntered(order.OrderID, 250.0)
	require.NoError(t, err)

	reloaded, err := New(dir, 0.10, 0.10)
	require.NoError(t, err)

	got := reloaded.Get(order.OrderID)
	require.NotNil(t, got)
	assert.Equal(t, StatusOpen, got.Status)
	assert.Equal(t, 250.0, got.EntryPrice)
	assert.Equal(t, 275.0, got.TakeProfitPrice)
	assert.True(t, got.EntryDate.Equal(date("2026-01-05")))
}

func TestStatistics(t *testing.T) {
	b := newBook(t)

	winner, err := b.OpenPosition(openRequest("AAPL"))
	require.NoError(t, err)
	loser, err := b.OpenPosition(openRequest("MSFT"))
	require.NoError(t, err)
	pending, err := b.OpenPosition(openRequest("NVDA"))
	require.NoError(t, err)
	_ = pending

	_, err = b.MarkEntered(winner.OrderID, 100)
	require.NoError(t, err)
	_, err = b.MarkExited(winner.OrderID, 110, ExitTakeProfit)
	require.NoError(t, err)

	_, err = b.MarkEntered(loser.OrderID, 100)
	require.NoError(t, err)
	_, err = b.MarkExited(loser.OrderID, 96, ExitMaxHold)
	require.NoError(t, err)

	stats := b.Statistics()
	assert.Equal(t, 3, stats.TotalOrders)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 2, stats.Closed)
	assert.Equal(t, 0.5, stats.WinRate)
	assert.InDelta(t, 0.03, stats.AvgReturn, 1e-9)

	if math.IsNaN(stats.WinRate) {
		t.Fatal("win rate must never be NaN")
	}
}

func TestExportCSV(t *testing.T) {
	b := newBook(t)

	order, err := b.OpenPosition(openRequest("AAPL"))
	require.NoError(t, err)
	_, err = b.MarkEntered(order.OrderID, 100)
	require.NoError(t, err)

	path, err := b.ExportCSV("")
	require.NoError(t, err)
	assert.FileExists(t, path)
}
