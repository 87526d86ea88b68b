package freeze

import (
	"strings"
	"testing"
	"time"
)

func testManifest() Manifest {
	return Manifest{
		GitCommit:               "abc1234",
		BatchScoreModel:         "gpt-4o-mini",
		FullAuditModel:          "claude-3.5-sonnet",
		BatchScorePromptVersion: "v1.0.0",
		FullAuditPromptVersion:  "v1.0.0",
		ScoreThreshold:          0.70,
		EvidenceMinCount:        2,
		BlockOnMarginConcern:    true,
	}
}

func matchingConfig() RuntimeConfig {
	return RuntimeConfig{
		BatchScoreModel:  "gpt-4o-mini",
		FullAuditModel:   "claude-3.5-sonnet",
		PromptVersion:    "v1.0.0",
		ScoreThreshold:   0.70,
		EvidenceMinCount: 2,
	}
}

func frozenPolicy(t *testing.T, today string) *Policy {
	t.Helper()
	p := NewPolicy(t.TempDir(), time.Time{})
	p.now = func() time.Time {
		d, err := time.Parse("2006-01-02", today)
		if err != nil {
			t.Fatalf("bad date %s: %v", today, err)
		}
		return d
	}
	return p
}

func TestIsFrozenPeriod_Boundary(t *testing.T) {
	if frozenPolicy(t, "2025-12-31").IsFrozenPeriod() {
		t.Fatal("day before boundary must not be frozen")
	}
	if !frozenPolicy(t, "2026-01-01").IsFrozenPeriod() {
		t.Fatal("boundary day must be frozen")
	}
	if !frozenPolicy(t, "2026-06-15").IsFrozenPeriod() {
		t.Fatal("after boundary must be frozen")
	}
}

func TestManifestHash_Deterministic(t *testing.T) {
	m := testManifest()
	h1, h2 := m.Hash(), m.Hash()
	if h1 != h2 {
		t.Fatal("hash must be deterministic")
	}
	if len(h1) != 64 {
		t.Fatalf("want sha256 hex digest, got %d chars", len(h1))
	}

	changed := testManifest()
	changed.ScoreThreshold = 0.75
	if changed.Hash() == h1 {
		t.Fatal("a threshold change must change the hash")
	}

	// Timestamp fields are excluded from the hash.
	stamped := testManifest()
	stamped.FrozenAt = "2026-01-01T00:00:00Z"
	if stamped.Hash() != h1 {
		t.Fatal("frozen_at must not affect the hash")
	}
}

func TestCreateAndLoadManifest(t *testing.T) {
	p := frozenPolicy(t, "2026-01-02")

	created, err := p.CreateManifest(testManifest())
	if err != nil {
		t.Fatalf("create manifest: %v", err)
	}
	if created.ManifestHash == "" || created.FrozenAt == "" {
		t.Fatal("created manifest must be stamped and hashed")
	}
	if created.FreezeBoundary != "2026-01-01" {
		t.Fatalf("boundary = %s, want 2026-01-01", created.FreezeBoundary)
	}

	loaded, err := p.LoadManifest()
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	if loaded == nil || loaded.ManifestHash != created.ManifestHash {
		t.Fatal("loaded manifest must round-trip")
	}
	if err := loaded.Verify(); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestValidateConfig_OutsideFrozenPeriodAlwaysPasses(t *testing.T) {
	p := frozenPolicy(t, "2025-06-01")

	cfg := matchingConfig()
	cfg.ScoreThreshold = 0.99
	if err := p.ValidateConfig(cfg); err != nil {
		t.Fatalf("pre-boundary validation must pass: %v", err)
	}
}

func TestValidateConfig_MissingManifestFails(t *testing.T) {
	p := frozenPolicy(t, "2026-01-02")

	if err := p.ValidateConfig(matchingConfig()); err == nil {
		t.Fatal("frozen period without manifest must fail")
	}
}

func TestValidateConfig_ReportsAllMismatches(t *testing.T) {
	p := frozenPolicy(t, "2026-01-02")
	if _, err := p.CreateManifest(testManifest()); err != nil {
		t.Fatalf("create manifest: %v", err)
	}

	cfg := matchingConfig()
	cfg.BatchScoreModel = "gpt-5"
	cfg.ScoreThreshold = 0.75
	cfg.EvidenceMinCount = 3

	err := p.ValidateConfig(cfg)
	if err == nil {
		t.Fatal("mismatched config must fail")
	}
	for _, want := range []string{"batch_score_model", "score_threshold", "evidence_min_count"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error must name %s: %v", want, err)
		}
	}
}

func TestValidateConfig_PromptHashDrift(t *testing.T) {
	p := frozenPolicy(t, "2026-01-02")
	m := testManifest()
	m.BatchScorePromptHash = "aaaa1111"
	if _, err := p.CreateManifest(m); err != nil {
		t.Fatalf("create manifest: %v", err)
	}

	// Same version label, different prompt text.
	cfg := matchingConfig()
	cfg.PromptHash = "bbbb2222"
	err := p.ValidateConfig(cfg)
	if err == nil || !strings.Contains(err.Error(), "prompt_hash") {
		t.Fatalf("prompt hash drift must be named: %v", err)
	}

	cfg.PromptHash = "aaaa1111"
	if err := p.ValidateConfig(cfg); err != nil {
		t.Fatalf("matching prompt hash must pass: %v", err)
	}
}

func TestValidateConfig_MatchPasses(t *testing.T) {
	p := frozenPolicy(t, "2026-01-02")
	if _, err := p.CreateManifest(testManifest()); err != nil {
		t.Fatalf("create manifest: %v", err)
	}

	if err := p.ValidateConfig(matchingConfig()); err != nil {
		t.Fatalf("matching config must pass: %v", err)
	}
}

func TestRequireFrozen(t *testing.T) {
	early := frozenPolicy(t, "2025-06-01")
	if _, err := early.RequireFrozen(); err == nil {
		t.Fatal("RequireFrozen must fail before the boundary")
	}

	p := frozenPolicy(t, "2026-01-02")
	if _, err := p.RequireFrozen(); err == nil {
		t.Fatal("RequireFrozen must fail without a manifest")
	}
	if _, err := p.CreateManifest(testManifest()); err != nil {
		t.Fatalf("create manifest: %v", err)
	}
	m, err := p.RequireFrozen()
	if err != nil {
		t.Fatalf("RequireFrozen with manifest: %v", err)
	}
	if m.BatchScoreModel != "gpt-4o-mini" {
		t.Fatalf("unexpected manifest model %s", m.BatchScoreModel)
	}
}

func TestVerify_DetectsTamperedManifest(t *testing.T) {
	m := testManifest()
	m.ManifestHash = m.Hash()
	m.ScoreThreshold = 0.60
	if err := m.Verify(); err == nil {
		t.Fatal("tampered manifest must fail verification")
	}
}

func TestPeriods(t *testing.T) {
	cases := []struct {
		date string
		want Period
	}{
		{"2017-01-01", PeriodTune},
		{"2021-12-31", PeriodTune},
		{"2022-01-01", PeriodValidate},
		{"2024-06-15", PeriodFinal},
		{"2026-01-01", PeriodPaper},
	}
	for _, tc := range cases {
		dt, _ := time.Parse("2006-01-02", tc.date)
		w, err := PeriodFor(dt)
		if err != nil {
			t.Fatalf("%s: %v", tc.date, err)
		}
		if w.Name != tc.want {
			t.Fatalf("%s: period = %s, want %s", tc.date, w.Name, tc.want)
		}
	}

	if _, err := PeriodFor(d(2016, 12, 31)); err == nil {
		t.Fatal("pre-range date must error")
	}
	if !MayTune(d(2019, 5, 1)) {
		t.Fatal("tune period must allow tuning")
	}
	if MayTune(d(2024, 5, 1)) {
		t.Fatal("final period must not allow tuning")
	}
}
