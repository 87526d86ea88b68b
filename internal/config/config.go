// Package config loads the application configuration: a YAML file with
// environment overrides layered in via a .env file. Load runs once at
// startup; the resulting value is passed down by constructors and never
// mutated afterwards.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Gate struct {
	ScoreThreshold       float64 `yaml:"score_threshold"`
	EvidenceMinCount     int     `yaml:"evidence_min_count"`
	BlockOnMarginConcern bool    `yaml:"block_on_margin_concern"`
}

type Consistency struct {
	Enabled      bool    `yaml:"enabled"`
	Runs         int     `yaml:"runs"`
	MinAgreement float64 `yaml:"min_agreement"`
	MaxFlipRate  float64 `yaml:"max_flip_rate"`
}

type Trading struct {
	HoldingDays int     `yaml:"holding_days"`
	TakeProfit  float64 `yaml:"take_profit"`
	StopLoss    float64 `yaml:"stop_loss"`
	Exchange    string  `yaml:"exchange"`
}

type Analyzer struct {
	BaseURL            string `yaml:"base_url"`
	APIKey             string `yaml:"api_key"`
	Model              string `yaml:"model"`
	FullAuditModel     string `yaml:"full_audit_model"`
	PromptVersion      string `yaml:"prompt_version"`
	PromptHash         string `yaml:"prompt_hash"`
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
	MaxRetries         int    `yaml:"max_retries"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
}

type MarketData struct {
	BaseURL            string `yaml:"base_url"`
	APIKey             string `yaml:"api_key"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
}

type Earnings struct {
	BaseURL            string `yaml:"base_url"`
	APIKey             string `yaml:"api_key"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
}

type Backtest struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type Freeze struct {
	Boundary  string `yaml:"boundary"` // YYYY-MM-DD
	GitCommit string `yaml:"git_commit"`
}

type Paths struct {
	DataDir string `yaml:"data_dir"`
	RunsDir string `yaml:"runs_dir"`
}

type Schedule struct {
	// CronSpec fires the daily run; default is 17:30 ET, after close prices
	// settle.
	CronSpec string `yaml:"cron_spec"`
	Timezone string `yaml:"timezone"`
}

type Alerting struct {
	WebhookURL      string `yaml:"webhook_url"`
	CooldownMinutes int    `yaml:"cooldown_minutes"`
}

type Root struct {
	LogLevel    string      `yaml:"log_level"`
	Gate        Gate        `yaml:"gate"`
	Consistency Consistency `yaml:"consistency"`
	Trading     Trading     `yaml:"trading"`
	Analyzer    Analyzer    `yaml:"analyzer"`
	MarketData  MarketData  `yaml:"market_data"`
	Earnings    Earnings    `yaml:"earnings"`
	Backtest    Backtest    `yaml:"backtest"`
	Freeze      Freeze      `yaml:"freeze"`
	Paths       Paths       `yaml:"paths"`
	Schedule    Schedule    `yaml:"schedule"`
	Alerting    Alerting    `yaml:"alerting"`
}

// Load reads the YAML config at path, after overlaying process env from an
// optional .env file in the working directory. Env vars override file
// values for secrets so API keys stay out of the config file.
func Load(path string) (Root, error) {
	// Missing .env is fine; it only exists in local setups.
	_ = godotenv.Load()

	var c Root
	b, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	c.applyEnv()
	if err := c.validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c *Root) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Gate.ScoreThreshold == 0 {
		c.Gate.ScoreThreshold = 0.70
	}
	if c.Gate.EvidenceMinCount == 0 {
		c.Gate.EvidenceMinCount = 2
	}
	if c.Consistency.Runs == 0 {
		c.Consistency.Runs = 5
	}
	if c.Consistency.MinAgreement == 0 {
		c.Consistency.MinAgreement = 0.8
	}
	if c.Consistency.MaxFlipRate == 0 {
		c.Consistency.MaxFlipRate = 0.01
	}
	if c.Trading.HoldingDays == 0 {
		c.Trading.HoldingDays = 30
	}
	if c.Trading.TakeProfit == 0 {
		c.Trading.TakeProfit = 0.10
	}
	if c.Trading.StopLoss == 0 {
		c.Trading.StopLoss = 0.10
	}
	if c.Trading.Exchange == "" {
		c.Trading.Exchange = "NYSE"
	}
	if c.Analyzer.PromptVersion == "" {
		c.Analyzer.PromptVersion = "v1.0.0"
	}
	if c.Paths.DataDir == "" {
		c.Paths.DataDir = "data"
	}
	if c.Paths.RunsDir == "" {
		c.Paths.RunsDir = "runs"
	}
	if c.Schedule.CronSpec == "" {
		c.Schedule.CronSpec = "30 17 * * MON-FRI"
	}
	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = "America/New_York"
	}
	if c.Alerting.CooldownMinutes == 0 {
		c.Alerting.CooldownMinutes = 15
	}
	if c.Freeze.Boundary == "" {
		c.Freeze.Boundary = "2026-01-01"
	}
}

func (c *Root) applyEnv() {
	if v := os.Getenv("ANALYZER_API_KEY"); v != "" {
		c.Analyzer.APIKey = v
	}
	if v := os.Getenv("MARKET_DATA_API_KEY"); v != "" {
		c.MarketData.APIKey = v
	}
	if v := os.Getenv("EARNINGS_API_KEY"); v != "" {
		c.Earnings.APIKey = v
	}
	if v := os.Getenv("BACKTEST_API_KEY"); v != "" {
		c.Backtest.APIKey = v
	}
	if v := os.Getenv("ALERT_WEBHOOK_URL"); v != "" {
		c.Alerting.WebhookURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func (c *Root) validate() error {
	if c.Gate.ScoreThreshold < 0 || c.Gate.ScoreThreshold > 1 {
		return fmt.Errorf("gate.score_threshold %v outside [0,1]", c.Gate.ScoreThreshold)
	}
	if c.Consistency.MinAgreement <= 0.5 || c.Consistency.MinAgreement > 1 {
		return fmt.Errorf("consistency.min_agreement %v must be in (0.5,1]", c.Consistency.MinAgreement)
	}
	if c.Trading.HoldingDays < 1 {
		return fmt.Errorf("trading.holding_days must be >= 1")
	}
	if _, err := time.Parse("2006-01-02", c.Freeze.Boundary); err != nil {
		return fmt.Errorf("freeze.boundary %q: %w", c.Freeze.Boundary, err)
	}
	return nil
}

// FreezeBoundary parses the configured boundary date.
func (c Root) FreezeBoundary() (time.Time, error) {
	t, err := time.Parse("2006-01-02", c.Freeze.Boundary)
	if err != nil {
		return time.Time{}, fmt.Errorf("freeze.boundary %q: %w", c.Freeze.Boundary, err)
	}
	return t, nil
}
