package llm

import (
	"context"
)

// Usage captures the cost and traceability metadata for one analyzer call.
// Request/response hashes let a run artifact be tied back to the exact
// payloads without storing them inline.
type Usage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	LatencyMs    int64   `json:"latency_ms"`
	RequestHash  string  `json:"request_hash"`
	ResponseHash string  `json:"response_hash"`
}

// Result is one completed analysis: the parsed output plus usage metadata.
type Result struct {
	Output *AnalysisOutput
	Usage  Usage
}

// Analyzer scores one earnings call. Implementations must be safe for
// concurrent use: the consistency layer fans out K calls for the same event.
//
// A nil Output with a nil error is not a legal return; failures surface as
// errors and the caller fails closed to NO_TRADE.
type Analyzer interface {
	Analyze(ctx context.Context, pack TranscriptPack) (*Result, error)
	Model() string
	PromptVersion() string
}
