// Package consistency converts non-deterministic LLM output into a
// bounded-risk decision: run the analysis K times, require majority
// agreement, abstain on disagreement.
package consistency

import (
	"fmt"
	"math"
)

// Recommendation is the outcome of a consistency check.
type Recommendation string

const (
	Trade   Recommendation = "TRADE"
	NoTrade Recommendation = "NO_TRADE"
	Abstain Recommendation = "ABSTAIN"
)

// Run is one analysis run's decision and score for an event.
type Run struct {
	Decision bool    `json:"decision"`
	Score    float64 `json:"score"`
}

// Result of the consistency check for a single event.
type Result struct {
	EventID          string         `json:"event_id"`
	KRuns            int            `json:"k_runs"`
	Decisions        []bool         `json:"decisions"`
	Scores           []float64      `json:"scores"`
	IsConsistent     bool           `json:"is_consistent"`
	MajorityDecision bool           `json:"majority_decision"`
	AgreementRate    float64        `json:"agreement_rate"`
	ScoreStd         float64        `json:"score_std"`
	Recommendation   Recommendation `json:"recommendation"`
}

// Report aggregates consistency over a batch of events. FlipRate is the
// monitored target metric: fraction of events whose runs disagree.
type Report struct {
	TotalEvents        int     `json:"total_events"`
	ConsistentEvents   int     `json:"consistent_events"`
	InconsistentEvents int     `json:"inconsistent_events"`
	FlipRate           float64 `json:"flip_rate"`
	AbstainCount       int     `json:"abstain_count"`
	AvgAgreementRate   float64 `json:"avg_agreement_rate"`
	AvgScoreStd        float64 `json:"avg_score_std"`
	PassThreshold      bool    `json:"pass_threshold"`
}

// Checker validates agreement across K runs of the same event.
type Checker struct {
	k            int
	maxFlipRate  float64
	minAgreement float64
}

// NewChecker creates a checker. Defaults: K=5, 1% flip-rate target, 80%
// agreement required (4-of-5).
func NewChecker(k int, maxFlipRate, minAgreement float64) *Checker {
	if k <= 0 {
		k = 5
	}
	if maxFlipRate <= 0 {
		maxFlipRate = 0.01
	}
	if minAgreement <= 0 {
		minAgreement = 0.8
	}
	return &Checker{k: k, maxFlipRate: maxFlipRate, minAgreement: minAgreement}
}

// K returns the configured run count.
func (c *Checker) K() int { return c.k }

// CheckEvent votes over exactly K runs. A wrong run count is a caller bug,
// not a data problem, and is returned as an error.
func (c *Checker) CheckEvent(eventID string, runs []Run) (Result, error) {
	if len(runs) != c.k {
		return Result{}, fmt.Errorf("expected %d runs for %s, got %d", c.k, eventID, len(runs))
	}

	decisions := make([]bool, len(runs))
	scores := make([]float64, len(runs))
	trueCount := 0
	for i, r := range runs {
		decisions[i] = r.Decision
		scores[i] = r.Score
		if r.Decision {
			trueCount++
		}
	}

	majority := majorityDecision(trueCount, len(runs))
	majorityCount := trueCount
	if !majority {
		majorityCount = len(runs) - trueCount
	}
	agreement := float64(majorityCount) / float64(len(runs))
	consistent := agreement >= c.minAgreement

	rec := Abstain
	if consistent {
		if majority {
			rec = Trade
		} else {
			rec = NoTrade
		}
	}

	return Result{
		EventID:          eventID,
		KRuns:            c.k,
		Decisions:        decisions,
		Scores:           scores,
		IsConsistent:     consistent,
		MajorityDecision: majority,
		AgreementRate:    agreement,
		ScoreStd:         sampleStd(scores),
		Recommendation:   rec,
	}, nil
}

// CheckBatch checks each event and aggregates the flip-rate report.
func (c *Checker) CheckBatch(batch map[string][]Run) ([]Result, Report, error) {
	var results []Result
	for eventID, runs := range batch {
		res, err := c.CheckEvent(eventID, runs)
		if err != nil {
			return nil, Report{}, err
		}
		results = append(results, res)
	}

	total := len(results)
	consistent, abstain := 0, 0
	sumAgreement, sumStd := 0.0, 0.0
	for _, r := range results {
		if r.IsConsistent {
			consistent++
		}
		if r.Recommendation == Abstain {
			abstain++
		}
		sumAgreement += r.AgreementRate
		sumStd += r.ScoreStd
	}

	report := Report{
		TotalEvents:        total,
		ConsistentEvents:   consistent,
		InconsistentEvents: total - consistent,
		AbstainCount:       abstain,
	}
	if total > 0 {
		report.FlipRate = float64(total-consistent) / float64(total)
		report.AvgAgreementRate = sumAgreement / float64(total)
		report.AvgScoreStd = sumStd / float64(total)
	}
	report.PassThreshold = report.FlipRate <= c.maxFlipRate
	return results, report, nil
}

// ShouldTrade reports whether a checked event carries a reliable long
// signal.
func (c *Checker) ShouldTrade(res Result) bool {
	return res.Recommendation == Trade
}

// majorityDecision resolves the vote. An exact tie resolves to false: the
// conservative branch, chosen deliberately so the outcome never depends on
// iteration order.
func majorityDecision(trueCount, total int) bool {
	return trueCount*2 > total
}

// sampleStd is the sample standard deviation (n-1 denominator); 0 for a
// single run.
func sampleStd(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	m := sum / float64(len(xs))
	ss := 0.0
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
