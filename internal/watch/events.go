package watch

import "time"

// Event topics published by the watch plugin.
const (
	TopicDeviceOffline   = "watch.device.offline"
	TopicDeviceRecovered = "watch.device.recovered"
	TopicFetchFailed     = "watch.fetch.failed"
)

// Notification is the payload for device alert and fetch-failure events.
// Text is the fully formatted operator-facing message; the structured
// fields let subscribers build their own payloads.
type Notification struct {
	Kind     string    `json:"kind"` // "offline", "recovery", "fetch_failure"
	Device   string    `json:"device,omitempty"`
	Text     string    `json:"text"`
	LastSeen time.Time `json:"last_seen,omitzero"`
	Reason   string    `json:"reason,omitempty"` // set for fetch failures
}
