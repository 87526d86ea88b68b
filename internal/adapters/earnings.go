package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/whaleforce/earnings-signals/internal/llm"
)

// EarningsEvent is one earnings call on the calendar.
type EarningsEvent struct {
	EventID   string    `json:"event_id"`
	Symbol    string    `json:"symbol"`
	CallDate  time.Time `json:"call_date"`
	Quarter   string    `json:"quarter"`
	HasScript bool      `json:"has_transcript"`
}

// EarningsAdapter lists earnings events and fetches transcripts.
type EarningsAdapter interface {
	EventsOn(ctx context.Context, date time.Time) ([]EarningsEvent, error)
	Transcript(ctx context.Context, eventID string) (*llm.TranscriptPack, error)
}

// EarningsConfig configures the HTTP earnings-call client.
type EarningsConfig struct {
	BaseURL            string
	APIKey             string
	RateLimitPerMinute int
	TimeoutSeconds     int
}

// EarningsClient talks to the earnings-call provider API.
type EarningsClient struct {
	config      EarningsConfig
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// NewEarningsClient creates an earnings-call client with defaults applied.
func NewEarningsClient(config EarningsConfig) (*EarningsClient, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("earnings base URL is required")
	}
	if config.RateLimitPerMinute <= 0 {
		config.RateLimitPerMinute = 30
	}
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = 30
	}
	return &EarningsClient{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		rateLimiter: rate.NewLimiter(rate.Limit(float64(config.RateLimitPerMinute)/60), 1),
	}, nil
}

type calendarResponse struct {
	Events []EarningsEvent `json:"events"`
	Error  string          `json:"error,omitempty"`
}

type transcriptResponse struct {
	EventID         string `json:"event_id"`
	Symbol          string `json:"symbol"`
	PreparedRemarks string `json:"prepared_remarks"`
	QASession       string `json:"qa_session"`
	WordCount       int    `json:"word_count"`
	Error           string `json:"error,omitempty"`
}

// EventsOn lists the earnings calls held on a given date.
func (c *EarningsClient) EventsOn(ctx context.Context, date time.Time) ([]EarningsEvent, error) {
	endpoint := fmt.Sprintf("%s/v1/calendar?date=%s", c.config.BaseURL, date.Format("2006-01-02"))
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	var resp calendarResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, NewProviderError("", "malformed calendar response", err)
	}
	if resp.Error != "" {
		return nil, NewProviderError("", resp.Error, nil)
	}
	return resp.Events, nil
}

// Transcript fetches the full transcript for an event, split into prepared
// remarks and the Q&A session. Either section may come back empty; the
// caller decides whether that makes the event incomplete.
func (c *EarningsClient) Transcript(ctx context.Context, eventID string) (*llm.TranscriptPack, error) {
	endpoint := fmt.Sprintf("%s/v1/transcripts/%s", c.config.BaseURL, url.PathEscape(eventID))
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	var resp transcriptResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, NewProviderError("", "malformed transcript response", err)
	}
	if resp.Error != "" {
		return nil, NewProviderError(resp.Symbol, resp.Error, nil)
	}
	return &llm.TranscriptPack{
		EventID:         resp.EventID,
		Symbol:          resp.Symbol,
		PreparedRemarks: resp.PreparedRemarks,
		QASession:       resp.QASession,
		WordCount:       resp.WordCount,
	}, nil
}

func (c *EarningsClient) get(ctx context.Context, endpoint string) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NewNetworkError("", "earnings request failed", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewNetworkError("", "read earnings response", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, NewNotFoundError("", "earnings resource not found")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, NewProviderError("", fmt.Sprintf("earnings HTTP %d", resp.StatusCode), nil)
	}
	return body, nil
}
