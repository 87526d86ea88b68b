package llm

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// ClientConfig holds configuration for the HTTP analyzer client.
type ClientConfig struct {
	BaseURL            string
	APIKey             string
	Model              string
	PromptVersion      string
	TimeoutSeconds     int
	MaxRetries         int
	BackoffBaseMs      int
	RateLimitPerMinute int
}

// Client calls the external analysis service over HTTP. The service owns
// prompt templating and JSON recovery; this client only transports the
// transcript pack and validates the structured result.
type Client struct {
	config      ClientConfig
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// NewClient creates an HTTP analyzer client with defaults applied.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("analyzer base URL is required")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("analyzer model is required")
	}
	if config.PromptVersion == "" {
		config.PromptVersion = "v1.0.0"
	}
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = 60
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.BackoffBaseMs <= 0 {
		config.BackoffBaseMs = 500
	}
	if config.RateLimitPerMinute <= 0 {
		config.RateLimitPerMinute = 30
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		rateLimiter: rate.NewLimiter(rate.Limit(float64(config.RateLimitPerMinute)/60), 1),
	}, nil
}

// Model returns the model identifier this client is pinned to.
func (c *Client) Model() string { return c.config.Model }

// PromptVersion returns the prompt version this client is pinned to.
func (c *Client) PromptVersion() string { return c.config.PromptVersion }

type analyzeRequest struct {
	EventID         string `json:"event_id"`
	Symbol          string `json:"symbol"`
	Model           string `json:"model"`
	PromptVersion   string `json:"prompt_version"`
	PreparedRemarks string `json:"prepared_remarks"`
	QASession       string `json:"qa_session"`
}

type analyzeResponse struct {
	Output       *AnalysisOutput `json:"output"`
	InputTokens  int             `json:"input_tokens"`
	OutputTokens int             `json:"output_tokens"`
	CostUSD      float64         `json:"cost_usd"`
	Error        string          `json:"error,omitempty"`
}

// Analyze scores one transcript pack. Retries transient failures with
// exponential backoff; a malformed or invalid payload is returned as an
// error so the caller can fail closed.
func (c *Client) Analyze(ctx context.Context, pack TranscriptPack) (*Result, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	reqBody, err := json.Marshal(analyzeRequest{
		EventID:         pack.EventID,
		Symbol:          pack.Symbol,
		Model:           c.config.Model,
		PromptVersion:   c.config.PromptVersion,
		PreparedRemarks: pack.PreparedRemarks,
		QASession:       pack.QASession,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal analyze request: %w", err)
	}

	started := time.Now()
	var lastErr error
	for attempt := 0; attempt < c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(c.config.BackoffBaseMs*(1<<attempt)) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		respBody, err := c.post(ctx, reqBody)
		if err != nil {
			lastErr = err
			continue
		}

		var resp analyzeResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			lastErr = fmt.Errorf("parse analyze response for %s: %w", pack.EventID, err)
			continue
		}
		if resp.Error != "" {
			lastErr = fmt.Errorf("analyzer error for %s: %s", pack.EventID, resp.Error)
			continue
		}
		if err := resp.Output.Validate(); err != nil {
			// Schema-invalid output is not retryable: the model produced a
			// well-formed HTTP response with bad content.
			return nil, fmt.Errorf("invalid analysis output for %s: %w", pack.EventID, err)
		}

		return &Result{
			Output: resp.Output,
			Usage: Usage{
				InputTokens:  resp.InputTokens,
				OutputTokens: resp.OutputTokens,
				CostUSD:      resp.CostUSD,
				LatencyMs:    time.Since(started).Milliseconds(),
				RequestHash:  hashPayload(reqBody),
				ResponseHash: hashPayload(respBody),
			},
		}, nil
	}
	return nil, lastErr
}

func (c *Client) post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/v1/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analyze request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read analyze response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analyze HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

func hashPayload(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
