// Package freeze locks model, prompt, and threshold versions for the
// forward-trading period. After the freeze boundary every run validates its
// configuration against the persisted manifest and aborts on any drift.
package freeze

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ManifestFile is the on-disk name of the freeze manifest.
const ManifestFile = "papertrading_freeze_manifest.json"

// Manifest is the frozen configuration. Once written it only changes via an
// explicit unlock (delete the file, document the decision, rerun
// walk-forward).
type Manifest struct {
	FrozenAt       string `json:"frozen_at"`
	FreezeBoundary string `json:"freeze_boundary"`
	GitCommit      string `json:"git_commit"`

	BatchScoreModel string `json:"batch_score_model"`
	FullAuditModel  string `json:"full_audit_model"`

	BatchScorePromptVersion string `json:"batch_score_prompt_version"`
	FullAuditPromptVersion  string `json:"full_audit_prompt_version"`

	// Prompt hashes catch edits to the prompt text under an unchanged
	// version label.
	BatchScorePromptHash string `json:"batch_score_prompt_hash,omitempty"`
	FullAuditPromptHash  string `json:"full_audit_prompt_hash,omitempty"`

	ScoreThreshold       float64 `json:"score_threshold"`
	EvidenceMinCount     int     `json:"evidence_min_count"`
	BlockOnMarginConcern bool    `json:"block_on_margin_concern"`

	UniverseFilter string `json:"universe_filter,omitempty"`

	ManifestHash string `json:"manifest_hash"`
}

// Hash computes the manifest hash over the frozen fields. Keys are marshaled
// in sorted order so the hash is stable across runs and languages.
func (m Manifest) Hash() string {
	content, _ := json.Marshal(map[string]any{
		"git_commit":                 m.GitCommit,
		"batch_score_model":          m.BatchScoreModel,
		"full_audit_model":           m.FullAuditModel,
		"batch_score_prompt_version": m.BatchScorePromptVersion,
		"full_audit_prompt_version":  m.FullAuditPromptVersion,
		"batch_score_prompt_hash":    m.BatchScorePromptHash,
		"full_audit_prompt_hash":     m.FullAuditPromptHash,
		"score_threshold":            m.ScoreThreshold,
		"evidence_min_count":         m.EvidenceMinCount,
		"block_on_margin_concern":    m.BlockOnMarginConcern,
		"universe_filter":            m.UniverseFilter,
	})
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Verify checks the stored hash against a recomputation, catching manual
// edits to the manifest file.
func (m Manifest) Verify() error {
	if got := m.Hash(); got != m.ManifestHash {
		return fmt.Errorf("manifest hash mismatch: stored %s, computed %s", m.ManifestHash, got)
	}
	return nil
}

func saveManifest(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename manifest: %w", err)
	}
	return nil
}

func loadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", filepath.Base(path), err)
	}
	return &m, nil
}

func utcTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
