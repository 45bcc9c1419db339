package notify

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/HerbHall/fleetpulse/pkg/plugin"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "POST", Path: "/test", Handler: m.handleTest},
	}
}

// handleTest sends a test message through every configured channel so an
// operator can verify delivery end to end.
func (m *Module) handleTest(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	channels := len(m.notifiers)
	m.mu.RUnlock()

	if channels == 0 {
		notifyWriteError(w, http.StatusServiceUnavailable, "no notification channels configured")
		return
	}

	m.deliver(r.Context(), Message{
		Kind:      "test",
		Text:      "📣 FleetPulse notification test.",
		Timestamp: time.Now().UTC(),
	})

	m.mu.RLock()
	resp := map[string]any{
		"channels":  channels,
		"delivered": m.delivered,
		"failed":    m.failed,
	}
	m.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// notifyWriteError writes an RFC 7807 problem detail response.
func notifyWriteError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "about:blank",
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}
