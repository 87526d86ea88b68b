package stubs

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/whaleforce/earnings-signals/internal/llm"
)

// ProviderServer serves the market-data, earnings, and analyzer endpoints
// from fixtures. One server covers all three providers; point every
// base_url in the config at it.
type ProviderServer struct {
	fixtures *Fixtures
	requests atomic.Int64
}

// NewProviderServer wraps the fixtures in an HTTP handler set.
func NewProviderServer(fixtures *Fixtures) *ProviderServer {
	return &ProviderServer{fixtures: fixtures}
}

// Requests returns the number of requests served so far.
func (s *ProviderServer) Requests() int64 { return s.requests.Load() }

// Handler returns the mux with all provider routes registered.
func (s *ProviderServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/health", s.handleHealth)
	mux.HandleFunc("/v1/prices/close", s.handleClose)
	mux.HandleFunc("/v1/calendar", s.handleCalendar)
	mux.HandleFunc("/v1/transcripts/", s.handleTranscript)
	mux.HandleFunc("/v1/analyze", s.handleAnalyze)
	return mux
}

func (s *ProviderServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *ProviderServer) handleClose(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	symbol := r.URL.Query().Get("symbol")
	date := r.URL.Query().Get("date")
	if symbol == "" || date == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "symbol and date are required"})
		return
	}

	price, ok := s.fixtures.close(symbol, date)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("no close for %s on %s", symbol, date)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": strings.ToUpper(symbol),
		"date":   date,
		"close":  price,
	})
}

func (s *ProviderServer) handleCalendar(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	date := r.URL.Query().Get("date")
	if date == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date is required"})
		return
	}

	events := make([]map[string]any, 0)
	for _, ev := range s.fixtures.eventsOn(date) {
		events = append(events, map[string]any{
			"event_id":       ev.EventID,
			"symbol":         ev.Symbol,
			"call_date":      ev.CallDate + "T21:00:00Z",
			"quarter":        ev.Quarter,
			"has_transcript": s.fixtures.transcript(ev.EventID) != nil,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *ProviderServer) handleTranscript(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	eventID := strings.TrimPrefix(r.URL.Path, "/v1/transcripts/")
	tr := s.fixtures.transcript(eventID)
	if tr == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "transcript not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"event_id":         tr.EventID,
		"symbol":           tr.Symbol,
		"prepared_remarks": tr.PreparedRemarks,
		"qa_session":       tr.QASession,
		"word_count":       len(strings.Fields(tr.PreparedRemarks)) + len(strings.Fields(tr.QASession)),
	})
}

func (s *ProviderServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "POST required"})
		return
	}
	var req struct {
		EventID string `json:"event_id"`
		Symbol  string `json:"symbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request"})
		return
	}

	output, ok := s.fixtures.Analyses[req.EventID]
	if !ok {
		output = syntheticOutput(req.EventID)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"output":        output,
		"input_tokens":  4000,
		"output_tokens": 300,
		"cost_usd":      0.012,
	})
}

// syntheticOutput derives a stable score from the event ID so repeated
// runs, including the K consistency runs, always agree.
func syntheticOutput(eventID string) llm.AnalysisOutput {
	sum := sha256.Sum256([]byte(eventID))
	score := float64(binary.BigEndian.Uint16(sum[:2])) / 65535

	out := llm.AnalysisOutput{
		Score:          round3(score),
		TradeCandidate: score >= 0.70,
		EvidenceCount:  2 + int(sum[2])%3,
		KeyFlags: llm.KeyFlags{
			GuidancePositive: score >= 0.60,
			RevenueBeat:      sum[3]%2 == 0,
		},
		EvidenceSnippets: []llm.Evidence{
			{Quote: "We delivered another quarter of record revenue.", Speaker: "CEO", Section: llm.SectionPrepared},
			{Quote: "Demand trends remained strong through the quarter.", Speaker: "CFO", Section: llm.SectionQA},
		},
	}
	if !out.TradeCandidate {
		out.NoTradeReason = "score below conviction threshold"
	}
	return out
}

func round3(v float64) float64 {
	return float64(int(v*1000+0.5)) / 1000
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
