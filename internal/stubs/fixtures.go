// Package stubs is a fixture-driven stand-in for the three external
// providers (market data, earnings calls, analyzer). It serves the same
// wire formats the real adapters consume, so the daily pipeline can run
// end to end with no credentials and deterministic results.
package stubs

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/whaleforce/earnings-signals/internal/llm"
)

// FixtureEvent is one earnings call in the fixture file.
type FixtureEvent struct {
	EventID  string `json:"event_id"`
	Symbol   string `json:"symbol"`
	CallDate string `json:"call_date"` // YYYY-MM-DD
	Quarter  string `json:"quarter"`
}

// FixtureTranscript holds the sectioned transcript for one event.
type FixtureTranscript struct {
	EventID         string `json:"event_id"`
	Symbol          string `json:"symbol"`
	PreparedRemarks string `json:"prepared_remarks"`
	QASession       string `json:"qa_session"`
}

// Fixtures is the full dataset for one stub run.
type Fixtures struct {
	// Prices maps "SYMBOL:YYYY-MM-DD" to the daily close. Missing keys
	// produce 404s, which is how holidays and delistings are simulated.
	Prices map[string]float64 `json:"prices"`

	Events      []FixtureEvent      `json:"events"`
	Transcripts []FixtureTranscript `json:"transcripts"`

	// Analyses optionally scripts the analyzer output per event. Events
	// without an entry get a deterministic output derived from the event ID.
	Analyses map[string]llm.AnalysisOutput `json:"analyses"`
}

// LoadFixtures reads a fixture file and validates the pieces reference
// each other.
func LoadFixtures(path string) (*Fixtures, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	var f Fixtures
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	if f.Prices == nil {
		f.Prices = map[string]float64{}
	}
	if f.Analyses == nil {
		f.Analyses = map[string]llm.AnalysisOutput{}
	}

	transcripts := make(map[string]bool, len(f.Transcripts))
	for _, tr := range f.Transcripts {
		if tr.EventID == "" {
			return nil, fmt.Errorf("fixture transcript missing event_id")
		}
		transcripts[tr.EventID] = true
	}
	for _, ev := range f.Events {
		if ev.EventID == "" || ev.Symbol == "" || ev.CallDate == "" {
			return nil, fmt.Errorf("fixture event %+v missing required fields", ev)
		}
		if !transcripts[ev.EventID] {
			return nil, fmt.Errorf("fixture event %s has no transcript", ev.EventID)
		}
	}
	for id, out := range f.Analyses {
		if err := out.Validate(); err != nil {
			return nil, fmt.Errorf("fixture analysis %s: %w", id, err)
		}
	}
	return &f, nil
}

func (f *Fixtures) transcript(eventID string) *FixtureTranscript {
	for i := range f.Transcripts {
		if f.Transcripts[i].EventID == eventID {
			return &f.Transcripts[i]
		}
	}
	return nil
}

func (f *Fixtures) eventsOn(date string) []FixtureEvent {
	var out []FixtureEvent
	for _, ev := range f.Events {
		if ev.CallDate == date {
			out = append(out, ev)
		}
	}
	return out
}

func (f *Fixtures) close(symbol, date string) (float64, bool) {
	p, ok := f.Prices[strings.ToUpper(symbol)+":"+date]
	return p, ok
}
