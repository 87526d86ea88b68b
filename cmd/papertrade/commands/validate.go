package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the runtime configuration against the freeze manifest",
	Long: `Validate the loaded config against the freeze manifest: models, prompt
versions, and gate thresholds must match exactly inside the frozen
period. Before the boundary validation always passes. Exits nonzero on
any mismatch, listing every differing field.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}

		if !a.policy.IsFrozenPeriod() {
			fmt.Printf("ok: before freeze boundary %s, configuration is tunable\n", a.policy.Boundary().Format("2006-01-02"))
			return nil
		}
		if err := a.policy.ValidateConfig(a.runtimeConfig()); err != nil {
			return err
		}
		manifest, err := a.policy.LoadManifest()
		if err != nil {
			return err
		}
		fmt.Printf("ok: configuration matches manifest %s (frozen %s)\n", manifest.ManifestHash[:12], manifest.FrozenAt)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
