// Package gate makes the final trade decision.
//
// The LLM reports facts (score, evidence, flags); this gate applies rules.
// Every NO_TRADE carries reasons, and uncertainty always fails closed.
package gate

import (
	"math"

	"github.com/whaleforce/earnings-signals/internal/llm"
)

// BlockReason is a machine-readable reason a trade was blocked.
type BlockReason string

const (
	ScoreTooLow             BlockReason = "score_below_threshold"
	InsufficientEvidence    BlockReason = "insufficient_evidence"
	EvidenceNotTriangulated BlockReason = "evidence_not_triangulated"
	MarginConcern           BlockReason = "margin_concern_flagged"
	DataIncomplete          BlockReason = "data_incomplete"
	SchemaInvalid           BlockReason = "schema_validation_failed"
	LLMDeclined             BlockReason = "llm_recommended_no_trade"
)

// totalChecks is the number of gate checks feeding the confidence formula.
const totalChecks = 6

// Result of one gate evaluation. TradeLong is true iff BlockReasons is
// empty; there is no partial-credit acceptance path.
type Result struct {
	TradeLong          bool          `json:"trade_long"`
	BlockReasons       []BlockReason `json:"block_reasons"`
	PassedChecks       []string      `json:"passed_checks"`
	FinalScore         float64       `json:"final_score"`
	Confidence         float64       `json:"confidence"`
	ScoreThresholdUsed float64       `json:"score_threshold_used"`
	EvidenceMinUsed    int           `json:"evidence_min_used"`
}

// Config holds the gate thresholds. Values come from the frozen manifest
// during paper trading; the gate itself never reads ambient state.
type Config struct {
	ScoreThreshold       float64
	EvidenceMinCount     int
	BlockOnMarginConcern bool
}

// DefaultConfig returns the tuned production thresholds.
func DefaultConfig() Config {
	return Config{
		ScoreThreshold:       0.70,
		EvidenceMinCount:     2,
		BlockOnMarginConcern: true,
	}
}

// Gate is the deterministic decision function. It is pure: same inputs,
// same Result, no I/O.
type Gate struct {
	config Config
}

// New creates a gate with the given thresholds.
func New(config Config) *Gate {
	return &Gate{config: config}
}

// Config returns the thresholds this gate was built with.
func (g *Gate) Config() Config { return g.config }

// Evaluate runs all checks against one analysis output. All checks must
// pass for TradeLong. Valid-but-failing input never produces an error, only
// block reasons; a nil output short-circuits to SchemaInvalid.
func (g *Gate) Evaluate(output *llm.AnalysisOutput, dataComplete bool) Result {
	if output == nil || output.Validate() != nil {
		return Result{
			TradeLong:          false,
			BlockReasons:       []BlockReason{SchemaInvalid},
			PassedChecks:       []string{},
			FinalScore:         0,
			Confidence:         0,
			ScoreThresholdUsed: g.config.ScoreThreshold,
			EvidenceMinUsed:    g.config.EvidenceMinCount,
		}
	}

	var blocked []BlockReason
	passed := []string{}

	if dataComplete {
		passed = append(passed, "data_complete")
	} else {
		blocked = append(blocked, DataIncomplete)
	}

	if output.Score >= g.config.ScoreThreshold {
		passed = append(passed, "score_above_threshold")
	} else {
		blocked = append(blocked, ScoreTooLow)
	}

	if output.EvidenceCount >= g.config.EvidenceMinCount {
		passed = append(passed, "evidence_count_met")
	} else {
		blocked = append(blocked, InsufficientEvidence)
	}

	if triangulated(output.EvidenceSnippets) {
		passed = append(passed, "evidence_triangulated")
	} else {
		blocked = append(blocked, EvidenceNotTriangulated)
	}

	if g.config.BlockOnMarginConcern && output.KeyFlags.MarginConcern {
		blocked = append(blocked, MarginConcern)
	} else {
		passed = append(passed, "no_critical_red_flags")
	}

	// The gate never overrides an LLM "no" into a "yes".
	if output.TradeCandidate {
		passed = append(passed, "llm_recommended_trade")
	} else {
		blocked = append(blocked, LLMDeclined)
	}

	return Result{
		TradeLong:          len(blocked) == 0,
		BlockReasons:       blocked,
		PassedChecks:       passed,
		FinalScore:         output.Score,
		Confidence:         confidence(output, len(passed)),
		ScoreThresholdUsed: g.config.ScoreThreshold,
		EvidenceMinUsed:    g.config.EvidenceMinCount,
	}
}

// triangulated requires at least two snippets coming from at least two
// distinct speakers or two distinct sections. A single voice making a claim
// is not verifiable.
func triangulated(snippets []llm.Evidence) bool {
	if len(snippets) < 2 {
		return false
	}
	speakers := map[string]bool{}
	sections := map[string]bool{}
	for _, ev := range snippets {
		speakers[ev.Speaker] = true
		sections[ev.Section] = true
	}
	return len(speakers) > 1 || len(sections) > 1
}

// confidence is a soft ranking signal, separate from the hard TradeLong
// boolean. It is never used for gating.
func confidence(output *llm.AnalysisOutput, checksPassed int) float64 {
	checkFactor := float64(checksPassed) / totalChecks
	evidenceFactor := math.Min(float64(output.EvidenceCount)/3, 1.0)
	c := 0.5*output.Score + 0.3*checkFactor + 0.2*evidenceFactor
	c = math.Min(math.Max(c, 0), 1)
	return math.Round(c*1000) / 1000
}

// JoinReasons renders block reasons as the canonical semicolon-joined
// no-trade reason string used in signals and reports.
func JoinReasons(reasons []BlockReason) string {
	if len(reasons) == 0 {
		return ""
	}
	out := string(reasons[0])
	for _, r := range reasons[1:] {
		out += "; " + string(r)
	}
	return out
}
