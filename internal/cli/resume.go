package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/macrokit/macroguard/internal/daemon"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <macro-id>",
	Short: "Resume a paused macro",
	Long: `Resume a macro the supervisor has paused.

Paused macros stay paused until an operator resumes them (unless
auto_resume_after is configured). Stopped macros cannot be resumed.

Example:
  macroguard resume batch-export`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	macroID := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	lifecycle := daemon.NewLifecycle(cfg.Daemon)
	if !lifecycle.IsRunning() {
		return fmt.Errorf("supervisor is not running")
	}

	url := fmt.Sprintf("http://127.0.0.1:%d/api/macros/resume/%s", lifecycle.Port(), macroID)
	client := &http.Client{Timeout: 3 * time.Second}

	resp, err := client.Post(url, "application/json", strings.NewReader("{}"))
	if err != nil {
		return fmt.Errorf("failed to reach supervisor: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var body map[string]string
		if decodeErr := json.NewDecoder(resp.Body).Decode(&body); decodeErr == nil && body["error"] != "" {
			return fmt.Errorf("resume failed: %s", body["error"])
		}
		return fmt.Errorf("resume failed with status %d", resp.StatusCode)
	}

	fmt.Printf("Macro %s resumed\n", macroID)
	return nil
}
