package adapters

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/whaleforce/earnings-signals/internal/llm"
)

// MockPriceAdapter serves prices from a fixed (symbol, date) table.
type MockPriceAdapter struct {
	mu     sync.RWMutex
	prices map[string]float64
	calls  int
}

// NewMockPriceAdapter creates an empty mock price source.
func NewMockPriceAdapter() *MockPriceAdapter {
	return &MockPriceAdapter{prices: make(map[string]float64)}
}

// SetPrice registers a close price for a symbol and date.
func (m *MockPriceAdapter) SetPrice(symbol string, date time.Time, price float64) *MockPriceAdapter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[priceKey(symbol, date)] = price
	return m
}

// ClosePrice implements PriceAdapter. Unregistered dates fail closed.
func (m *MockPriceAdapter) ClosePrice(_ context.Context, symbol string, date time.Time) (float64, error) {
	m.mu.Lock()
	m.calls++
	price, ok := m.prices[priceKey(symbol, date)]
	m.mu.Unlock()
	if !ok {
		return 0, NewNotFoundError(symbol, fmt.Sprintf("no close price for %s", date.Format("2006-01-02")))
	}
	return price, nil
}

// HealthCheck implements PriceAdapter.
func (m *MockPriceAdapter) HealthCheck(context.Context) error { return nil }

// Calls returns the number of ClosePrice calls made.
func (m *MockPriceAdapter) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

func priceKey(symbol string, date time.Time) string {
	return symbol + ":" + date.Format("2006-01-02")
}

// MockEarningsAdapter serves scripted events and transcripts.
type MockEarningsAdapter struct {
	mu          sync.RWMutex
	events      map[string][]EarningsEvent
	transcripts map[string]*llm.TranscriptPack
}

// NewMockEarningsAdapter creates an empty mock earnings source.
func NewMockEarningsAdapter() *MockEarningsAdapter {
	return &MockEarningsAdapter{
		events:      make(map[string][]EarningsEvent),
		transcripts: make(map[string]*llm.TranscriptPack),
	}
}

// AddEvent registers an event on its call date along with its transcript.
func (m *MockEarningsAdapter) AddEvent(event EarningsEvent, pack *llm.TranscriptPack) *MockEarningsAdapter {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := event.CallDate.Format("2006-01-02")
	m.events[key] = append(m.events[key], event)
	if pack != nil {
		m.transcripts[event.EventID] = pack
	}
	return m
}

// EventsOn implements EarningsAdapter.
func (m *MockEarningsAdapter) EventsOn(_ context.Context, date time.Time) ([]EarningsEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.events[date.Format("2006-01-02")], nil
}

// Transcript implements EarningsAdapter.
func (m *MockEarningsAdapter) Transcript(_ context.Context, eventID string) (*llm.TranscriptPack, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pack, ok := m.transcripts[eventID]
	if !ok {
		return nil, NewNotFoundError("", "no transcript for "+eventID)
	}
	return pack, nil
}

// MockBacktestAdapter returns a canned result.
type MockBacktestAdapter struct {
	Result *BacktestResult
	Err    error
}

// RunBacktest implements BacktestAdapter.
func (m *MockBacktestAdapter) RunBacktest(context.Context, []BacktestPosition, time.Time, time.Time) (*BacktestResult, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Result != nil {
		return m.Result, nil
	}
	return &BacktestResult{BacktestID: "bt_mock", CAGR: 0.12, SharpeRatio: 1.1, WinRate: 0.58}, nil
}
