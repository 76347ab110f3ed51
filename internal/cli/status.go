package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/macrokit/macroguard/internal/alert"
	"github.com/macrokit/macroguard/internal/daemon"
	"github.com/macrokit/macroguard/internal/resource"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show supervisor and macro status",
	Long: `Show the status of the running supervisor and its macros.

Queries the daemon API of a running supervisor.

Example:
  macroguard status
  macroguard status --json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output raw JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	lifecycle := daemon.NewLifecycle(cfg.Daemon)
	if !lifecycle.IsRunning() {
		fmt.Println("Supervisor is not running")
		return nil
	}

	base := fmt.Sprintf("http://127.0.0.1:%d", lifecycle.Port())
	client := &http.Client{Timeout: 3 * time.Second}

	var macros daemon.MacrosResponse
	if err := getJSON(client, base+"/api/macros", &macros); err != nil {
		return fmt.Errorf("failed to query supervisor: %w", err)
	}

	var system daemon.SystemResponse
	if err := getJSON(client, base+"/api/system", &system); err != nil {
		return fmt.Errorf("failed to query supervisor: %w", err)
	}

	if statusJSON {
		out, err := json.MarshalIndent(map[string]any{
			"macros": macros,
			"system": system,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	pid, _ := lifecycle.GetPID()
	fmt.Printf("Supervisor running (PID %d)\n", pid)
	fmt.Printf("Guard level: %s\n", macros.GuardLevel)
	if system.Emergency {
		fmt.Printf("EMERGENCY MODE: %s\n", system.EmergencyReason)
	}
	if macros.Dropped > 0 {
		fmt.Printf("Dropped events: %d\n", macros.Dropped)
	}

	if len(macros.Macros) == 0 {
		fmt.Println("\nNo macros registered")
		return nil
	}

	fmt.Printf("\n%-24s %-10s %-8s %-10s %s\n", "MACRO", "STATE", "RISK", "WARNINGS", "INTERVENTIONS")
	for _, m := range macros.Macros {
		fmt.Printf("%-24s %-10s %-8.2f %-10d %d\n",
			m.ID, m.State, m.RiskScore, m.TotalWarnings, m.TotalInterventions)
	}

	if snap, ok := latestSnapshot(system); ok {
		fmt.Printf("\nResources: mem %.1f%%, cpu %.1f%%, threads %d\n",
			snap.MemoryPct, snap.CPUPct, snap.Threads)
	}

	if len(system.AlertCounts) > 0 {
		kinds := make([]string, 0, len(system.AlertCounts))
		for kind := range system.AlertCounts {
			kinds = append(kinds, string(kind))
		}
		sort.Strings(kinds)

		fmt.Println("\nStored alerts:")
		for _, kind := range kinds {
			fmt.Printf("  %-24s %d\n", kind, system.AlertCounts[alert.Kind(kind)])
		}
	}

	return nil
}

func latestSnapshot(system daemon.SystemResponse) (resource.Snapshot, bool) {
	if len(system.Snapshots) == 0 {
		return resource.Snapshot{}, false
	}
	return system.Snapshots[len(system.Snapshots)-1], true
}

func getJSON(client *http.Client, url string, v any) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	return json.NewDecoder(resp.Body).Decode(v)
}
