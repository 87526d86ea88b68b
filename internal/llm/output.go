// Package llm defines the analysis contract between the LLM collaborator
// and the decision core. The core never calls a model directly; it consumes
// AnalysisOutput values produced by an Analyzer implementation and treats
// them as opaque, immutable facts.
package llm

import (
	"fmt"
)

// Transcript sections an evidence quote can come from.
const (
	SectionPrepared = "prepared"
	SectionQA       = "qa"
)

// Evidence is a supporting quote pulled from the call transcript.
type Evidence struct {
	Quote   string `json:"quote"`
	Speaker string `json:"speaker"`
	Section string `json:"section"` // "prepared" | "qa"
}

// KeyFlags are the boolean signals extracted from the call.
type KeyFlags struct {
	GuidancePositive bool `json:"guidance_positive"`
	RevenueBeat      bool `json:"revenue_beat"`
	MarginConcern    bool `json:"margin_concern"`
	GuidanceRaised   bool `json:"guidance_raised"`
	BuybackAnnounced bool `json:"buyback_announced"`
}

// AnalysisOutput is the structured result of one scoring pass over one
// earnings call. Kept minimal on purpose: the gate makes the trade decision,
// the model only reports facts.
type AnalysisOutput struct {
	Score            float64    `json:"score"` // [0,1]
	TradeCandidate   bool       `json:"trade_candidate"`
	EvidenceCount    int        `json:"evidence_count"`
	KeyFlags         KeyFlags   `json:"key_flags"`
	EvidenceSnippets []Evidence `json:"evidence_snippets"`
	NoTradeReason    string     `json:"no_trade_reason,omitempty"`
}

// Validate checks structural validity of a parsed output. A failing output
// must be treated as schema-invalid by the caller (fail closed), never
// repaired in place.
func (o *AnalysisOutput) Validate() error {
	if o == nil {
		return fmt.Errorf("analysis output is nil")
	}
	if o.Score < 0 || o.Score > 1 {
		return fmt.Errorf("score %.4f outside [0,1]", o.Score)
	}
	if o.EvidenceCount < 0 {
		return fmt.Errorf("negative evidence_count %d", o.EvidenceCount)
	}
	if len(o.EvidenceSnippets) > 5 {
		return fmt.Errorf("too many evidence snippets: %d", len(o.EvidenceSnippets))
	}
	for i, ev := range o.EvidenceSnippets {
		if ev.Section != SectionPrepared && ev.Section != SectionQA {
			return fmt.Errorf("snippet %d: invalid section %q", i, ev.Section)
		}
		if ev.Quote == "" {
			return fmt.Errorf("snippet %d: empty quote", i)
		}
	}
	return nil
}

// TranscriptPack is the analyzer input: the sectioned transcript for one
// earnings event as delivered by the transcript collaborator.
type TranscriptPack struct {
	EventID         string `json:"event_id"`
	Symbol          string `json:"symbol"`
	PreparedRemarks string `json:"prepared_remarks"`
	QASession       string `json:"qa_session"`
	WordCount       int    `json:"word_count"`
}
