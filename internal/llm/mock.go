package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockAnalyzer returns scripted results for tests. Results for an event are
// consumed in order, so K-run consistency scenarios can script per-run
// disagreement.
type MockAnalyzer struct {
	mu        sync.Mutex
	model     string
	prompt    string
	scripted  map[string][]*Result
	errors    map[string]error
	callCount map[string]int
}

// NewMockAnalyzer creates an empty mock analyzer.
func NewMockAnalyzer() *MockAnalyzer {
	return &MockAnalyzer{
		model:     "mock-model",
		prompt:    "v1.0.0",
		scripted:  make(map[string][]*Result),
		errors:    make(map[string]error),
		callCount: make(map[string]int),
	}
}

// Script appends a result for an event. Each Analyze call consumes the next
// scripted result; the last one repeats once the script is exhausted.
func (m *MockAnalyzer) Script(eventID string, output *AnalysisOutput) *MockAnalyzer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripted[eventID] = append(m.scripted[eventID], &Result{
		Output: output,
		Usage:  Usage{InputTokens: 1000, OutputTokens: 200, CostUSD: 0.004, LatencyMs: 10},
	})
	return m
}

// Fail makes Analyze return an error for an event.
func (m *MockAnalyzer) Fail(eventID string, err error) *MockAnalyzer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[eventID] = err
	return m
}

// Analyze returns the next scripted result for the pack's event.
func (m *MockAnalyzer) Analyze(_ context.Context, pack TranscriptPack) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.errors[pack.EventID]; ok {
		return nil, err
	}
	results, ok := m.scripted[pack.EventID]
	if !ok || len(results) == 0 {
		return nil, fmt.Errorf("no scripted result for event %s", pack.EventID)
	}
	idx := m.callCount[pack.EventID]
	m.callCount[pack.EventID]++
	if idx >= len(results) {
		idx = len(results) - 1
	}
	return results[idx], nil
}

// Calls returns how many times an event has been analyzed.
func (m *MockAnalyzer) Calls(eventID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount[eventID]
}

// Model implements Analyzer.
func (m *MockAnalyzer) Model() string { return m.model }

// PromptVersion implements Analyzer.
func (m *MockAnalyzer) PromptVersion() string { return m.prompt }
