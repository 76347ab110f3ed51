package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the effective pattern rules",
	Long: `List the effective dangerous-pattern rules after merging the
global and project configuration.

Example:
  macroguard rules`,
	RunE: runRules,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}

func runRules(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	fmt.Println("Effective Pattern Rules")
	fmt.Println("=======================")

	if len(cfg.Rules) == 0 {
		fmt.Println("\nNo rules configured")
		fmt.Printf("\nGuard level: %s\n", cfg.GuardLevel())
		return nil
	}

	for _, r := range cfg.Rules {
		status := "enabled"
		if !r.IsEnabled() {
			status = "disabled"
		}
		fmt.Printf("\n  - %s [%s]\n", r.ID, status)
		if r.Description != "" {
			fmt.Printf("    %s\n", r.Description)
		}
		fmt.Printf("    tier: %s, action: %s, threshold: %d within %s\n",
			r.Tier, r.Action, r.Threshold, r.Window)
		fmt.Printf("    pattern: %s\n", r.Pattern)
	}

	fmt.Printf("\nGuard level: %s\n", cfg.GuardLevel())
	fmt.Printf("Risk decay half-life: %s\n", cfg.DecayHalfLife())

	return nil
}
