package watch

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/HerbHall/fleetpulse/pkg/plugin"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/status", Handler: m.handleStatus},
		{Method: "POST", Path: "/poll", Handler: m.handlePoll},
	}
}

// statusResponse is the JSON body returned by GET /status.
type statusResponse struct {
	Enabled          bool           `json:"enabled"`
	Tailnet          string         `json:"tailnet,omitempty"`
	PollInterval     string         `json:"poll_interval"`
	ThresholdMinutes int            `json:"threshold_minutes"`
	MonitoredDevices []string       `json:"monitored_devices,omitempty"`
	LastPollTime     *time.Time     `json:"last_poll_time,omitempty"`
	LastResult       *CycleResult   `json:"last_result,omitempty"`
	Devices          []DeviceStatus `json:"devices,omitempty"`
	Error            string         `json:"error,omitempty"`
}

// handleStatus returns the monitor status and the per-device view from the
// most recent completed poll cycle.
func (m *Module) handleStatus(w http.ResponseWriter, _ *http.Request) {
	m.mu.RLock()
	resp := statusResponse{
		Enabled:          m.cfg.Enabled,
		Tailnet:          m.cfg.Tailnet,
		PollInterval:     m.cfg.PollInterval.String(),
		ThresholdMinutes: m.cfg.ThresholdMinutes,
		MonitoredDevices: m.cfg.Devices,
		LastResult:       m.lastResult,
		Devices:          m.deviceView,
	}
	if !m.lastPollTime.IsZero() {
		t := m.lastPollTime
		resp.LastPollTime = &t
	}
	if m.lastPollErr != nil {
		resp.Error = m.lastPollErr.Error()
	}
	m.mu.RUnlock()

	watchWriteJSON(w, http.StatusOK, resp)
}

// handlePoll triggers an immediate poll cycle.
func (m *Module) handlePoll(w http.ResponseWriter, _ *http.Request) {
	if !m.cfg.Enabled {
		watchWriteError(w, http.StatusServiceUnavailable, "watch module is disabled")
		return
	}
	if m.lister == nil {
		watchWriteError(w, http.StatusServiceUnavailable, "fleet API is not configured")
		return
	}

	if err := m.RunCycle(time.Now().UTC()); err != nil {
		watchWriteError(w, http.StatusBadGateway, "poll failed: "+err.Error())
		return
	}

	m.mu.RLock()
	result := m.lastResult
	m.mu.RUnlock()
	watchWriteJSON(w, http.StatusOK, result)
}

// watchWriteJSON writes a JSON response with the given status code.
func watchWriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// watchWriteError writes an RFC 7807 problem detail response.
func watchWriteError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "about:blank",
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}
