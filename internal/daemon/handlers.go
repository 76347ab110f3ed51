package daemon

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/macrokit/macroguard/internal/alert"
	"github.com/macrokit/macroguard/internal/history"
	"github.com/macrokit/macroguard/internal/logger"
	"github.com/macrokit/macroguard/internal/macro"
	"github.com/macrokit/macroguard/internal/resource"
	"github.com/macrokit/macroguard/internal/supervisor"
)

// Handlers contains the HTTP handlers for the daemon API
type Handlers struct {
	sup       *supervisor.Supervisor
	monitor   *resource.Monitor
	emergency *resource.Emergency
	store     history.Store
	startedAt time.Time
	version   string
}

// NewHandlers creates a new handlers instance. store may be nil when the
// history store is disabled.
func NewHandlers(sup *supervisor.Supervisor, monitor *resource.Monitor, emergency *resource.Emergency, store history.Store, version string) *Handlers {
	return &Handlers{
		sup:       sup,
		monitor:   monitor,
		emergency: emergency,
		store:     store,
		startedAt: time.Now(),
		version:   version,
	}
}

// Health handles the health check endpoint
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Version:   h.version,
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
		StartedAt: h.startedAt,
		Emergency: h.emergency.Active(),
	}
	writeJSON(w, http.StatusOK, resp)
}

// Macros handles the macro status list endpoint
func (h *Handlers) Macros(w http.ResponseWriter, r *http.Request) {
	statuses := h.sup.ListStatuses()
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].ID < statuses[j].ID
	})

	writeJSON(w, http.StatusOK, MacrosResponse{
		GuardLevel: string(h.sup.GuardLevel()),
		Macros:     statuses,
		Dropped:    h.sup.Drops(),
	})
}

// MacroDetail handles the single-macro status endpoint
func (h *Handlers) MacroDetail(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/macros/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing macro id")
		return
	}

	status, err := h.sup.Status(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// Register handles macro registration
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "missing macro id")
		return
	}
	if req.Name == "" {
		req.Name = req.ID
	}

	if _, err := h.sup.Register(req.ID, req.Name); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"status": "registered", "macro": req.ID})
}

// Unregister handles macro removal
func (h *Handlers) Unregister(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/macros/unregister/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing macro id")
		return
	}

	if err := h.sup.Unregister(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "unregistered", "macro": id})
}

// SubmitEvent handles event ingestion. Submission never blocks and never
// fails for load reasons; a macro that is unknown or stopped simply has its
// events discarded, which is reported as accepted.
func (h *Handlers) SubmitEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MacroID == "" {
		writeError(w, http.StatusBadRequest, "missing macro_id")
		return
	}

	h.sup.Submit(macro.Event{
		MacroID:   req.MacroID,
		Timestamp: req.Timestamp,
		Content:   req.Content,
	})

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// Resume handles the operator resume endpoint
func (h *Handlers) Resume(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/macros/resume/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing macro id")
		return
	}

	if err := h.sup.Resume(id); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "resumed", "macro": id})
}

// System handles the system health history endpoint
func (h *Handlers) System(w http.ResponseWriter, r *http.Request) {
	reason, _ := h.emergency.Reason()
	resp := SystemResponse{
		Emergency:       h.emergency.Active(),
		EmergencyReason: reason,
		Snapshots:       h.monitor.History().All(),
	}

	if h.store != nil {
		counts, err := h.store.CountByKind()
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to count stored alerts")
		} else if len(counts) > 0 {
			resp.AlertCounts = counts
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Alerts handles the alert history endpoint
func (h *Handlers) Alerts(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusOK, []alert.Event{})
		return
	}

	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	subject := r.URL.Query().Get("subject")

	var events []alert.Event
	var err error
	if subject != "" {
		events, err = h.store.SubjectAlerts(subject, limit)
	} else {
		events, err = h.store.RecentAlerts(limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if events == nil {
		events = []alert.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
