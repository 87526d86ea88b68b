// Package signals turns gated analysis results into dated trade signals
// with full traceability metadata.
package signals

import (
	"time"
)

// Signal is one trade decision for one earnings event, with the calendar
// dates a paper order would use.
type Signal struct {
	EventID  string `json:"event_id"`
	SignalID string `json:"signal_id"`
	Symbol   string `json:"symbol"`

	EventDate time.Time `json:"event_date"`
	EntryDate time.Time `json:"entry_date"`
	ExitDate  time.Time `json:"exit_date"`

	Score         float64 `json:"score"`
	TradeLong     bool    `json:"trade_long"`
	Confidence    float64 `json:"confidence"`
	EvidenceCount int     `json:"evidence_count"`

	NoTradeReason string `json:"no_trade_reason,omitempty"`

	Model         string    `json:"model"`
	PromptVersion string    `json:"prompt_version"`
	CreatedAt     time.Time `json:"created_at"`
}

// Output wraps a Signal with the per-call accounting needed to reproduce
// and cost a run.
type Output struct {
	Signal Signal `json:"signal"`

	LLMRequestHash  string `json:"llm_request_hash"`
	LLMResponseHash string `json:"llm_response_hash"`

	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	CostUSD      float64 `json:"cost_usd"`

	LatencyMs int64 `json:"latency_ms"`

	RunID      string `json:"run_id"`
	BatchIndex int    `json:"batch_index"`
}

// CSVHeader is the column order for signals.csv exports.
var CSVHeader = []string{
	"event_id", "signal_id", "symbol",
	"event_date", "entry_date", "exit_date",
	"score", "trade_long", "confidence", "evidence_count",
	"no_trade_reason", "model", "prompt_version",
	"input_tokens", "output_tokens", "cost_usd", "latency_ms", "run_id",
}
