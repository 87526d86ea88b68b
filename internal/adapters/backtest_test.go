package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBacktestClient_SubmitsPositionsAndReturnsMetrics(t *testing.T) {
	var got struct {
		Positions []BacktestPosition `json:"positions"`
		StartDate string             `json:"start_date"`
		EndDate   string             `json:"end_date"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/backtests", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"backtest_id":  "bt_001",
				"cagr":         0.21,
				"sharpe_ratio": 1.4,
				"max_drawdown": -0.18,
				"win_rate":     0.57,
				"total_trades": 42,
			},
		})
	}))
	defer server.Close()

	client, err := NewBacktestClient(BacktestConfig{BaseURL: server.URL})
	require.NoError(t, err)

	positions := []BacktestPosition{
		{Symbol: "ACME", EntryDate: "2022-02-01", ExitDate: "2022-03-15", Direction: "long", Score: 0.82},
	}
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)

	result, err := client.RunBacktest(context.Background(), positions, start, end)
	require.NoError(t, err)

	assert.Equal(t, "bt_001", result.BacktestID)
	assert.Equal(t, 0.21, result.CAGR)
	assert.Equal(t, 1.4, result.SharpeRatio)
	assert.Equal(t, "2022-01-01", got.StartDate)
	assert.Equal(t, "2023-12-31", got.EndDate)
	require.Len(t, got.Positions, 1)
	assert.Equal(t, "ACME", got.Positions[0].Symbol)
}

func TestBacktestClient_EmptyPositionsRejectedLocally(t *testing.T) {
	client, err := NewBacktestClient(BacktestConfig{BaseURL: "http://localhost:1"})
	require.NoError(t, err)

	_, err = client.RunBacktest(context.Background(), nil, time.Now(), time.Now())
	require.Error(t, err)
}

func TestBacktestClient_ServiceErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"error": "date range outside price history"})
	}))
	defer server.Close()

	client, err := NewBacktestClient(BacktestConfig{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.RunBacktest(context.Background(), []BacktestPosition{{Symbol: "ACME"}}, time.Now(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "date range outside price history")
}
