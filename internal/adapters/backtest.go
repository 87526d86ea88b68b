package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// BacktestPosition is one simulated trade submitted for evaluation.
type BacktestPosition struct {
	Symbol    string  `json:"symbol"`
	EntryDate string  `json:"entry_date"`
	ExitDate  string  `json:"exit_date"`
	Direction string  `json:"direction"`
	Score     float64 `json:"score"`
}

// BacktestResult holds externally computed performance metrics. CAGR,
// Sharpe, and drawdown come from the backtest service so every strategy in
// the research program is measured by the same engine.
type BacktestResult struct {
	BacktestID  string  `json:"backtest_id"`
	CAGR        float64 `json:"cagr"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	MaxDrawdown float64 `json:"max_drawdown"`
	WinRate     float64 `json:"win_rate"`
	TotalTrades int     `json:"total_trades"`
}

// BacktestAdapter submits positions for performance evaluation.
type BacktestAdapter interface {
	RunBacktest(ctx context.Context, positions []BacktestPosition, start, end time.Time) (*BacktestResult, error)
}

// BacktestConfig configures the HTTP backtest client.
type BacktestConfig struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
}

// BacktestClient talks to the backtest service.
type BacktestClient struct {
	config     BacktestConfig
	httpClient *http.Client
}

// NewBacktestClient creates a backtest client with defaults applied.
// Backtests over multi-year ranges are slow, hence the generous timeout.
func NewBacktestClient(config BacktestConfig) (*BacktestClient, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("backtest base URL is required")
	}
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = 300
	}
	return &BacktestClient{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
	}, nil
}

type backtestRequest struct {
	Positions []BacktestPosition `json:"positions"`
	StartDate string             `json:"start_date"`
	EndDate   string             `json:"end_date"`
}

type backtestResponse struct {
	Result *BacktestResult `json:"result"`
	Error  string          `json:"error,omitempty"`
}

// RunBacktest submits positions and returns the service's metrics.
func (c *BacktestClient) RunBacktest(ctx context.Context, positions []BacktestPosition, start, end time.Time) (*BacktestResult, error) {
	if len(positions) == 0 {
		return nil, fmt.Errorf("no positions to backtest")
	}
	body, err := json.Marshal(backtestRequest{
		Positions: positions,
		StartDate: start.Format("2006-01-02"),
		EndDate:   end.Format("2006-01-02"),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal backtest request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/v1/backtests", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create backtest request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NewNetworkError("", "backtest request failed", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewNetworkError("", "read backtest response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, NewProviderError("", fmt.Sprintf("backtest HTTP %d: %s", resp.StatusCode, string(respBody)), nil)
	}

	var parsed backtestResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, NewProviderError("", "malformed backtest response", err)
	}
	if parsed.Error != "" || parsed.Result == nil {
		return nil, NewProviderError("", "backtest failed: "+parsed.Error, nil)
	}
	return parsed.Result, nil
}
