package consistency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/whaleforce/earnings-signals/internal/llm"
)

// MultiRunAnalyzer wraps an Analyzer with K-run voting. Analyze runs the
// underlying analyzer K times, votes over the decisions, and either returns
// the majority output or a conservative merged abstention.
type MultiRunAnalyzer struct {
	analyzer   llm.Analyzer
	checker    *Checker
	runTimeout time.Duration
}

// MultiRunResult carries the chosen output plus the vote record and the
// summed usage of all K calls.
type MultiRunResult struct {
	Output *llm.AnalysisOutput
	Vote   Result
	Usage  llm.Usage
}

// NewMultiRunAnalyzer wraps analyzer with checker's K-run vote. A
// non-positive runTimeout defaults to 90s per run.
func NewMultiRunAnalyzer(analyzer llm.Analyzer, checker *Checker, runTimeout time.Duration) *MultiRunAnalyzer {
	if runTimeout <= 0 {
		runTimeout = 90 * time.Second
	}
	return &MultiRunAnalyzer{analyzer: analyzer, checker: checker, runTimeout: runTimeout}
}

// Analyze performs K independent runs and votes. All K runs must succeed
// before any vote happens; a single failed run fails the whole event so a
// partial sample never masquerades as a consistent one.
func (m *MultiRunAnalyzer) Analyze(ctx context.Context, pack llm.TranscriptPack) (*MultiRunResult, error) {
	k := m.checker.K()
	outputs := make([]*llm.Result, k)
	errs := make([]error, k)

	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			runCtx, cancel := context.WithTimeout(ctx, m.runTimeout)
			defer cancel()
			outputs[i], errs[i] = m.analyzer.Analyze(runCtx, pack)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("run %d/%d for %s: %w", i+1, k, pack.EventID, err)
		}
	}

	runs := make([]Run, k)
	var usage llm.Usage
	for i, res := range outputs {
		runs[i] = Run{Decision: res.Output.TradeCandidate, Score: res.Output.Score}
		usage.InputTokens += res.Usage.InputTokens
		usage.OutputTokens += res.Usage.OutputTokens
		usage.CostUSD += res.Usage.CostUSD
		usage.LatencyMs += res.Usage.LatencyMs
	}

	vote, err := m.checker.CheckEvent(pack.EventID, runs)
	if err != nil {
		return nil, err
	}

	var chosen *llm.AnalysisOutput
	if vote.IsConsistent {
		chosen = firstMatching(outputs, vote.MajorityDecision)
	} else {
		chosen = abstainOutput(outputs, vote)
	}

	return &MultiRunResult{Output: chosen, Vote: vote, Usage: usage}, nil
}

// Model implements part of the Analyzer surface for logging.
func (m *MultiRunAnalyzer) Model() string { return m.analyzer.Model() }

// PromptVersion implements part of the Analyzer surface for logging.
func (m *MultiRunAnalyzer) PromptVersion() string { return m.analyzer.PromptVersion() }

// firstMatching returns the output of the first run that voted with the
// majority, keeping selection deterministic across identical inputs.
func firstMatching(outputs []*llm.Result, decision bool) *llm.AnalysisOutput {
	for _, res := range outputs {
		if res.Output.TradeCandidate == decision {
			return res.Output
		}
	}
	return outputs[0].Output
}

// abstainOutput builds the conservative merged result for an inconsistent
// event: mean score, trade forced off, evidence from the first run kept for
// the audit trail.
func abstainOutput(outputs []*llm.Result, vote Result) *llm.AnalysisOutput {
	merged := *outputs[0].Output
	merged.Score = mean(vote.Scores)
	merged.TradeCandidate = false
	merged.NoTradeReason = fmt.Sprintf("inconsistent runs: %.0f%% agreement below required threshold", vote.AgreementRate*100)
	return &merged
}
