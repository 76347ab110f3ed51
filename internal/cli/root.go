package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/macrokit/macroguard/internal/config"
)

// Version information set via ldflags
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var (
	verbose    bool
	configFile string
	projectDir string
)

var rootCmd = &cobra.Command{
	Use:   "macroguard",
	Short: "Real-time safety supervisor for automation macros",
	Long: `Macroguard supervises running automation macros in real time.

It ingests macro action events, matches them against configurable
dangerous-pattern rules, tracks a decaying per-macro risk score, and
intervenes (warn/pause/stop) when the guard policy's thresholds are
crossed. A resource monitor watches the process itself and engages
emergency mode under sustained pressure.

Configure rules in:
  - ~/.macroguard/config.yaml (global)
  - .macroguard/config.yaml (project-specific)`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("macroguard %s\n", Version)
		fmt.Printf("  commit: %s\n", Commit)
		fmt.Printf("  built:  %s\n", Date)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Override config file path")
	rootCmd.PersistentFlags().StringVarP(&projectDir, "project", "p", "", "Override project directory")

	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig loads configuration honoring the --config and --project flags.
// Supervision refuses to start on an invalid configuration, so errors
// propagate instead of degrading to defaults.
func loadConfig() (*config.Config, error) {
	loader, err := config.NewLoader(projectDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config loader: %w", err)
	}

	if configFile != "" {
		return loader.LoadFromFile(configFile)
	}
	return loader.Load()
}
