// Package artifacts persists run outputs for audit and replay. Each run
// gets its own directory:
//
//	runs/<run_id>/
//	├── run_config.json
//	├── signals.json
//	├── signals.csv
//	└── summary.json
package artifacts

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/whaleforce/earnings-signals/internal/signals"
)

// RunConfig records the configuration a run executed with.
type RunConfig struct {
	RunID           string  `json:"run_id"`
	RunDate         string  `json:"run_date"`
	Model           string  `json:"model"`
	PromptVersion   string  `json:"prompt_version"`
	ScoreThreshold  float64 `json:"score_threshold"`
	EvidenceMin     int     `json:"evidence_min_count"`
	HoldingDays     int     `json:"holding_days"`
	ConsistencyRuns int     `json:"consistency_runs,omitempty"`
	ManifestHash    string  `json:"manifest_hash,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

// Logger writes run artifacts under a base directory.
type Logger struct {
	baseDir string
}

// NewLogger creates an artifact logger rooted at baseDir.
func NewLogger(baseDir string) *Logger {
	return &Logger{baseDir: baseDir}
}

// RunDir returns a run's directory path.
func (l *Logger) RunDir(runID string) string {
	return filepath.Join(l.baseDir, runID)
}

// CreateRun creates the run directory and persists its config.
func (l *Logger) CreateRun(config RunConfig) (string, error) {
	if config.RunID == "" {
		return "", fmt.Errorf("run ID is required")
	}
	runDir := l.RunDir(config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("create run dir: %w", err)
	}
	config.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	if err := writeJSON(filepath.Join(runDir, "run_config.json"), config); err != nil {
		return "", err
	}
	return runDir, nil
}

// LogSignals writes the run's signal outputs as both JSON (full fidelity)
// and CSV (analyst-friendly).
func (l *Logger) LogSignals(runID string, outputs []signals.Output) error {
	runDir := l.RunDir(runID)
	if err := writeJSON(filepath.Join(runDir, "signals.json"), outputs); err != nil {
		return err
	}
	return writeSignalsCSV(filepath.Join(runDir, "signals.csv"), outputs)
}

// LogSummary writes the run summary.
func (l *Logger) LogSummary(runID string, summary any) error {
	return writeJSON(filepath.Join(l.RunDir(runID), "summary.json"), summary)
}

// LoadSignals reads a previous run's signal outputs.
func (l *Logger) LoadSignals(runID string) ([]signals.Output, error) {
	data, err := os.ReadFile(filepath.Join(l.RunDir(runID), "signals.json"))
	if err != nil {
		return nil, fmt.Errorf("read signals for %s: %w", runID, err)
	}
	var outputs []signals.Output
	if err := json.Unmarshal(data, &outputs); err != nil {
		return nil, fmt.Errorf("parse signals for %s: %w", runID, err)
	}
	return outputs, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeSignalsCSV(path string, outputs []signals.Output) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create signals csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(signals.CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, out := range outputs {
		s := out.Signal
		row := []string{
			s.EventID, s.SignalID, s.Symbol,
			s.EventDate.Format("2006-01-02"), s.EntryDate.Format("2006-01-02"), s.ExitDate.Format("2006-01-02"),
			strconv.FormatFloat(s.Score, 'f', -1, 64),
			strconv.FormatBool(s.TradeLong),
			strconv.FormatFloat(s.Confidence, 'f', -1, 64),
			strconv.Itoa(s.EvidenceCount),
			s.NoTradeReason, s.Model, s.PromptVersion,
			strconv.Itoa(out.InputTokens), strconv.Itoa(out.OutputTokens),
			strconv.FormatFloat(out.CostUSD, 'f', -1, 64),
			strconv.FormatInt(out.LatencyMs, 10),
			out.RunID,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
