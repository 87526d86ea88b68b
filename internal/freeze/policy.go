package freeze

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// RuntimeConfig is the subset of configuration the freeze policy guards.
type RuntimeConfig struct {
	BatchScoreModel  string
	FullAuditModel   string
	PromptVersion    string
	PromptHash       string
	ScoreThreshold   float64
	EvidenceMinCount int
}

// Policy decides whether configuration may still change. Before the freeze
// boundary anything goes; after it, every run must match the manifest.
type Policy struct {
	baseDir  string
	boundary time.Time
	now      func() time.Time
}

// NewPolicy creates a policy storing its manifest under baseDir. A zero
// boundary defaults to 2026-01-01.
func NewPolicy(baseDir string, boundary time.Time) *Policy {
	if boundary.IsZero() {
		boundary = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &Policy{baseDir: baseDir, boundary: boundary, now: time.Now}
}

// Boundary returns the freeze boundary date.
func (p *Policy) Boundary() time.Time { return p.boundary }

// ManifestPath returns the manifest file location.
func (p *Policy) ManifestPath() string {
	return filepath.Join(p.baseDir, ManifestFile)
}

// IsFrozenPeriod reports whether today is on or after the freeze boundary.
func (p *Policy) IsFrozenPeriod() bool {
	return !p.now().UTC().Truncate(24 * time.Hour).Before(p.boundary)
}

// LoadManifest returns the persisted manifest, nil if none exists.
func (p *Policy) LoadManifest() (*Manifest, error) {
	return loadManifest(p.ManifestPath())
}

// CreateManifest freezes the given configuration: computes the hash, stamps
// the timestamp and boundary, and persists atomically.
func (p *Policy) CreateManifest(m Manifest) (*Manifest, error) {
	m.FrozenAt = utcTimestamp(p.now())
	m.FreezeBoundary = p.boundary.Format("2006-01-02")
	m.ManifestHash = m.Hash()
	if err := saveManifest(p.ManifestPath(), m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ValidateConfig checks the runtime configuration against the manifest.
// Outside the frozen period it always passes. Inside it, a missing manifest
// is an error, and a mismatch error lists EVERY differing field so the
// operator fixes them all in one pass.
func (p *Policy) ValidateConfig(cfg RuntimeConfig) error {
	if !p.IsFrozenPeriod() {
		return nil
	}

	manifest, err := p.LoadManifest()
	if err != nil {
		return err
	}
	if manifest == nil {
		return fmt.Errorf("in frozen period but no manifest exists at %s; create one with the freeze command", p.ManifestPath())
	}
	if err := manifest.Verify(); err != nil {
		return err
	}

	var mismatches []string
	if cfg.BatchScoreModel != manifest.BatchScoreModel {
		mismatches = append(mismatches, fmt.Sprintf("batch_score_model: %s != %s", cfg.BatchScoreModel, manifest.BatchScoreModel))
	}
	if cfg.FullAuditModel != manifest.FullAuditModel {
		mismatches = append(mismatches, fmt.Sprintf("full_audit_model: %s != %s", cfg.FullAuditModel, manifest.FullAuditModel))
	}
	if cfg.PromptVersion != manifest.BatchScorePromptVersion {
		mismatches = append(mismatches, fmt.Sprintf("prompt_version: %s != %s", cfg.PromptVersion, manifest.BatchScorePromptVersion))
	}
	// The content hash closes the loophole of editing prompt text while
	// keeping the version label. Only checked once the manifest records one.
	if manifest.BatchScorePromptHash != "" && cfg.PromptHash != manifest.BatchScorePromptHash {
		mismatches = append(mismatches, fmt.Sprintf("prompt_hash: %s != %s", cfg.PromptHash, manifest.BatchScorePromptHash))
	}
	if cfg.ScoreThreshold != manifest.ScoreThreshold {
		mismatches = append(mismatches, fmt.Sprintf("score_threshold: %v != %v", cfg.ScoreThreshold, manifest.ScoreThreshold))
	}
	if cfg.EvidenceMinCount != manifest.EvidenceMinCount {
		mismatches = append(mismatches, fmt.Sprintf("evidence_min_count: %d != %d", cfg.EvidenceMinCount, manifest.EvidenceMinCount))
	}

	if len(mismatches) > 0 {
		return fmt.Errorf("configuration mismatch in frozen period: %s. To change, delete the manifest, document the decision, and rerun walk-forward",
			strings.Join(mismatches, "; "))
	}
	return nil
}

// RequireFrozen returns the manifest only when the frozen period is active
// and a valid manifest exists. Paper trading runs call this first.
func (p *Policy) RequireFrozen() (*Manifest, error) {
	if !p.IsFrozenPeriod() {
		return nil, fmt.Errorf("not in frozen period: paper trading requires date >= %s", p.boundary.Format("2006-01-02"))
	}
	manifest, err := p.LoadManifest()
	if err != nil {
		return nil, err
	}
	if manifest == nil {
		return nil, fmt.Errorf("in frozen period but no manifest exists at %s", p.ManifestPath())
	}
	if err := manifest.Verify(); err != nil {
		return nil, err
	}
	return manifest, nil
}
