package signals

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/whaleforce/earnings-signals/internal/calendar"
	"github.com/whaleforce/earnings-signals/internal/gate"
	"github.com/whaleforce/earnings-signals/internal/llm"
)

// Request carries everything the generator needs for one event.
type Request struct {
	EventID    string
	Symbol     string
	EventDate  time.Time
	Output     *llm.AnalysisOutput
	Usage      llm.Usage
	RunID      string
	BatchIndex int
	// DataComplete reports whether both transcript sections were present.
	DataComplete bool
}

// GeneratedSignal pairs the signal with the gate verdict that produced it.
type GeneratedSignal struct {
	Signal     Signal
	GateResult gate.Result
	Output     Output
}

// Generator composes the calendar, the gate, and the analysis output into
// a signal. It never mutates its inputs and never does I/O.
type Generator struct {
	cal         *calendar.Calendar
	gate        *gate.Gate
	holdingDays int
	model       string
	prompt      string
	now         func() time.Time
}

// NewGenerator creates a generator. Model and prompt version are pinned at
// construction so every signal in a run carries identical provenance.
func NewGenerator(cal *calendar.Calendar, g *gate.Gate, holdingDays int, model, promptVersion string) *Generator {
	if holdingDays <= 0 {
		holdingDays = 30
	}
	return &Generator{
		cal:         cal,
		gate:        g,
		holdingDays: holdingDays,
		model:       model,
		prompt:      promptVersion,
		now:         time.Now,
	}
}

// Generate produces one signal. A blocked event still yields a signal with
// trade_long=false and a joined no_trade_reason; calendar failures (event too
// close to an unresolvable holiday window) surface as errors.
func (g *Generator) Generate(req Request) (*GeneratedSignal, error) {
	dates, err := g.cal.TradingDates(req.EventDate, g.holdingDays)
	if err != nil {
		return nil, fmt.Errorf("trading dates for %s: %w", req.EventID, err)
	}

	gateResult := g.gate.Evaluate(req.Output, req.DataComplete)

	evidenceCount := 0
	if req.Output != nil {
		evidenceCount = req.Output.EvidenceCount
	}

	signal := Signal{
		EventID:       req.EventID,
		SignalID:      newSignalID(req.EventID),
		Symbol:        req.Symbol,
		EventDate:     dates.TDay,
		EntryDate:     dates.EntryDate,
		ExitDate:      dates.ExitDate,
		Score:         gateResult.FinalScore,
		TradeLong:     gateResult.TradeLong,
		Confidence:    gateResult.Confidence,
		EvidenceCount: evidenceCount,
		NoTradeReason: gate.JoinReasons(gateResult.BlockReasons),
		Model:         g.model,
		PromptVersion: g.prompt,
		CreatedAt:     g.now().UTC(),
	}

	return &GeneratedSignal{
		Signal:     signal,
		GateResult: gateResult,
		Output: Output{
			Signal:          signal,
			LLMRequestHash:  req.Usage.RequestHash,
			LLMResponseHash: req.Usage.ResponseHash,
			InputTokens:     req.Usage.InputTokens,
			OutputTokens:    req.Usage.OutputTokens,
			TotalTokens:     req.Usage.InputTokens + req.Usage.OutputTokens,
			CostUSD:         req.Usage.CostUSD,
			LatencyMs:       req.Usage.LatencyMs,
			RunID:           req.RunID,
			BatchIndex:      req.BatchIndex,
		},
	}, nil
}

// newSignalID builds a stable-format unique ID: sig_<event>_<8 hex chars>.
func newSignalID(eventID string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("sig_%s_%s", eventID, suffix)
}
