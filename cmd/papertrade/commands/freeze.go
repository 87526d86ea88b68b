package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/whaleforce/earnings-signals/internal/freeze"
)

var (
	freezeGitCommit string
	freezeForce     bool
)

var freezeCmd = &cobra.Command{
	Use:   "freeze",
	Short: "Freeze the current configuration into a manifest",
	Long: `Write the freeze manifest from the current config: models, prompt
versions, gate thresholds, and the git commit they were tuned at. Once
the freeze boundary passes, every run validates against this manifest
and aborts on any drift.

Refuses to overwrite an existing manifest unless --force is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}

		existing, err := a.policy.LoadManifest()
		if err != nil {
			return err
		}
		if existing != nil && !freezeForce {
			return fmt.Errorf("manifest already exists at %s (frozen %s); use --force to overwrite", a.policy.ManifestPath(), existing.FrozenAt)
		}

		commit := freezeGitCommit
		if commit == "" {
			commit = a.cfg.Freeze.GitCommit
		}
		if commit == "" {
			return fmt.Errorf("git commit required: pass --git-commit or set freeze.git_commit in config")
		}

		manifest, err := a.policy.CreateManifest(freeze.Manifest{
			GitCommit:               commit,
			BatchScoreModel:         a.cfg.Analyzer.Model,
			FullAuditModel:          a.cfg.Analyzer.FullAuditModel,
			BatchScorePromptVersion: a.cfg.Analyzer.PromptVersion,
			FullAuditPromptVersion:  a.cfg.Analyzer.PromptVersion,
			BatchScorePromptHash:    a.cfg.Analyzer.PromptHash,
			FullAuditPromptHash:     a.cfg.Analyzer.PromptHash,
			ScoreThreshold:          a.cfg.Gate.ScoreThreshold,
			EvidenceMinCount:        a.cfg.Gate.EvidenceMinCount,
			BlockOnMarginConcern:    a.cfg.Gate.BlockOnMarginConcern,
		})
		if err != nil {
			return err
		}

		a.log.Info().Str("path", a.policy.ManifestPath()).Str("hash", manifest.ManifestHash).Msg("configuration frozen")
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(manifest)
	},
}

func init() {
	freezeCmd.Flags().StringVar(&freezeGitCommit, "git-commit", "", "commit the frozen configuration was tuned at")
	freezeCmd.Flags().BoolVar(&freezeForce, "force", false, "overwrite an existing manifest")
	rootCmd.AddCommand(freezeCmd)
}
