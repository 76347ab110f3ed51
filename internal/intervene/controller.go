package intervene

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/macrokit/macroguard/internal/logger"
)

// LogController is a controller that records actions without enforcing them.
// Used when no external interpreter endpoint is configured: the supervisor
// still tracks state and emits alerts, and enforcement is left to whoever
// consumes them.
type LogController struct{}

// NewLogController creates a log-only controller
func NewLogController() *LogController {
	return &LogController{}
}

// Pause records a pause instruction
func (c *LogController) Pause(macroID string) error {
	logger.Info().Str("macro", macroID).Msg("Pause instruction (no controller endpoint configured)")
	return nil
}

// Stop records a stop instruction
func (c *LogController) Stop(macroID string) error {
	logger.Info().Str("macro", macroID).Msg("Stop instruction (no controller endpoint configured)")
	return nil
}

// Resume records a resume instruction
func (c *LogController) Resume(macroID string) error {
	logger.Info().Str("macro", macroID).Msg("Resume instruction (no controller endpoint configured)")
	return nil
}

// WebhookController instructs an external macro interpreter over HTTP.
// Each action POSTs {"macro_id": ...} to <base>/pause, <base>/stop or
// <base>/resume; any non-2xx response is a failed intervention.
type WebhookController struct {
	baseURL string
	client  *http.Client
}

// NewWebhookController creates a controller that calls the interpreter at
// the given base URL
func NewWebhookController(baseURL string) *WebhookController {
	return &WebhookController{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Pause instructs the interpreter to pause a macro
func (c *WebhookController) Pause(macroID string) error {
	return c.post("pause", macroID)
}

// Stop instructs the interpreter to stop a macro
func (c *WebhookController) Stop(macroID string) error {
	return c.post("stop", macroID)
}

// Resume instructs the interpreter to resume a macro
func (c *WebhookController) Resume(macroID string) error {
	return c.post("resume", macroID)
}

func (c *WebhookController) post(action, macroID string) error {
	payload, err := json.Marshal(map[string]string{"macro_id": macroID})
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", action, err)
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, action)
	resp, err := c.client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("controller %s request failed: %w", action, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("controller %s returned status %d", action, resp.StatusCode)
	}

	return nil
}
