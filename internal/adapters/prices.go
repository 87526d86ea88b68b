package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// PriceAdapter provides daily close prices. Implementations must return
// ErrPriceUnavailable (wrapped) when the provider has no price for the
// requested day; they never interpolate or reuse another day's close.
type PriceAdapter interface {
	ClosePrice(ctx context.Context, symbol string, date time.Time) (float64, error)
	HealthCheck(ctx context.Context) error
}

// MarketDataConfig configures the HTTP market-data client.
type MarketDataConfig struct {
	BaseURL            string
	APIKey             string
	RateLimitPerMinute int
	TimeoutSeconds     int
	MaxRetries         int
	BackoffBaseMs      int
	CacheTTLSeconds    int
}

// MarketDataClient fetches daily closes over HTTP with rate limiting and a
// per-(symbol,date) cache. Historical closes never change, so cache entries
// for past dates effectively live forever within a run.
type MarketDataClient struct {
	config      MarketDataConfig
	httpClient  *http.Client
	rateLimiter *rate.Limiter

	mu    sync.RWMutex
	cache map[string]priceEntry
}

type priceEntry struct {
	price     float64
	fetchedAt time.Time
}

// NewMarketDataClient creates a market-data client with defaults applied.
func NewMarketDataClient(config MarketDataConfig) (*MarketDataClient, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("market data base URL is required")
	}
	if config.RateLimitPerMinute <= 0 {
		config.RateLimitPerMinute = 60
	}
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = 10
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.BackoffBaseMs <= 0 {
		config.BackoffBaseMs = 500
	}
	if config.CacheTTLSeconds <= 0 {
		config.CacheTTLSeconds = 3600
	}

	return &MarketDataClient{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		rateLimiter: rate.NewLimiter(rate.Limit(float64(config.RateLimitPerMinute)/60), 1),
		cache:       make(map[string]priceEntry),
	}, nil
}

type closePriceResponse struct {
	Symbol string   `json:"symbol"`
	Date   string   `json:"date"`
	Close  *float64 `json:"close"`
	Error  string   `json:"error,omitempty"`
}

// ClosePrice fetches one adjusted daily close.
func (c *MarketDataClient) ClosePrice(ctx context.Context, symbol string, date time.Time) (float64, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return 0, NewBadSymbolError(symbol, "empty symbol")
	}
	day := date.Format("2006-01-02")
	key := symbol + ":" + day

	c.mu.RLock()
	entry, ok := c.cache[key]
	c.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < time.Duration(c.config.CacheTTLSeconds)*time.Second {
		return entry.price, nil
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/prices/close?symbol=%s&date=%s",
		c.config.BaseURL, url.QueryEscape(symbol), day)

	var lastErr error
	for attempt := 0; attempt < c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(c.config.BackoffBaseMs*(1<<attempt)) * time.Millisecond
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(backoff):
			}
		}

		body, status, err := c.get(ctx, endpoint)
		if err != nil {
			lastErr = NewNetworkError(symbol, "close price fetch failed", err)
			continue
		}
		if status == http.StatusNotFound {
			return 0, NewNotFoundError(symbol, fmt.Sprintf("no close price for %s", day))
		}
		if status == http.StatusTooManyRequests {
			lastErr = NewRateLimitError(symbol, "provider rate limit")
			continue
		}
		if status != http.StatusOK {
			lastErr = NewProviderError(symbol, fmt.Sprintf("HTTP %d", status), nil)
			continue
		}

		var resp closePriceResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			lastErr = NewProviderError(symbol, "malformed close price response", err)
			continue
		}
		if resp.Error != "" || resp.Close == nil {
			return 0, NewNotFoundError(symbol, fmt.Sprintf("no close price for %s", day))
		}
		if *resp.Close <= 0 {
			return 0, NewProviderError(symbol, fmt.Sprintf("invalid close price %v", *resp.Close), nil)
		}

		c.mu.Lock()
		c.cache[key] = priceEntry{price: *resp.Close, fetchedAt: time.Now()}
		c.mu.Unlock()
		return *resp.Close, nil
	}
	return 0, lastErr
}

// HealthCheck probes the provider.
func (c *MarketDataClient) HealthCheck(ctx context.Context) error {
	body, status, err := c.get(ctx, c.config.BaseURL+"/v1/health")
	if err != nil {
		return NewNetworkError("", "health check failed", err)
	}
	if status != http.StatusOK {
		return NewProviderError("", fmt.Sprintf("health HTTP %d: %s", status, string(body)), nil)
	}
	return nil
}

func (c *MarketDataClient) get(ctx context.Context, endpoint string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}
