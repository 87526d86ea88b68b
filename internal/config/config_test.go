package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
analyzer:
  base_url: http://analyzer.local
  model: gpt-4o-mini
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Gate.ScoreThreshold != 0.70 || c.Gate.EvidenceMinCount != 2 {
		t.Fatalf("gate defaults wrong: %+v", c.Gate)
	}
	if c.Consistency.Runs != 5 || c.Consistency.MinAgreement != 0.8 {
		t.Fatalf("consistency defaults wrong: %+v", c.Consistency)
	}
	if c.Trading.HoldingDays != 30 || c.Trading.TakeProfit != 0.10 {
		t.Fatalf("trading defaults wrong: %+v", c.Trading)
	}
	if c.Freeze.Boundary != "2026-01-01" {
		t.Fatalf("freeze boundary default = %s", c.Freeze.Boundary)
	}
	if c.Schedule.CronSpec == "" || c.LogLevel != "info" {
		t.Fatalf("ambient defaults wrong: %+v", c)
	}
}

func TestLoad_ExplicitValues(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
gate:
  score_threshold: 0.75
  evidence_min_count: 3
  block_on_margin_concern: true
consistency:
  enabled: true
  runs: 3
  min_agreement: 0.67
trading:
  holding_days: 20
  take_profit: 0.15
  stop_loss: 0.08
freeze:
  boundary: "2027-01-01"
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Gate.ScoreThreshold != 0.75 || c.Consistency.Runs != 3 {
		t.Fatalf("explicit values lost: %+v", c)
	}
	boundary, err := c.FreezeBoundary()
	if err != nil {
		t.Fatalf("freeze boundary: %v", err)
	}
	if boundary.Year() != 2027 {
		t.Fatalf("boundary = %v", boundary)
	}
}

func TestLoad_EnvOverridesSecrets(t *testing.T) {
	t.Setenv("ANALYZER_API_KEY", "sk-from-env")
	t.Setenv("ALERT_WEBHOOK_URL", "https://hooks.example.com/x")

	path := writeConfig(t, `
analyzer:
  api_key: sk-from-file
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Analyzer.APIKey != "sk-from-env" {
		t.Fatalf("env must override file key, got %s", c.Analyzer.APIKey)
	}
	if c.Alerting.WebhookURL != "https://hooks.example.com/x" {
		t.Fatalf("webhook url = %s", c.Alerting.WebhookURL)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad threshold": "gate:\n  score_threshold: 1.5\n",
		"bad agreement": "consistency:\n  min_agreement: 0.4\n",
		"bad boundary":  "freeze:\n  boundary: not-a-date\n",
	}
	for name, content := range cases {
		if _, err := Load(writeConfig(t, content)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("missing config file must error")
	}
}
