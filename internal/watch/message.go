package watch

import (
	"fmt"
	"time"

	"github.com/hako/durafmt"
)

const lastSeenLayout = "2006-01-02 15:04:05"

// FormatAlert renders the operator-facing notification text for an alert.
func FormatAlert(a Alert) string {
	lastSeen := a.LastSeen.UTC().Format(lastSeenLayout)
	switch a.Kind {
	case AlertOffline:
		return fmt.Sprintf("🔴 Device '%s' has not been seen for %s. Last seen: %s UTC.",
			a.Device, formatOfflineFor(a.OfflineMinutes), lastSeen)
	case AlertRecovery:
		return fmt.Sprintf("🟢 Device '%s' is back online! Last seen: %s UTC.",
			a.Device, lastSeen)
	default:
		return fmt.Sprintf("Device '%s' changed state. Last seen: %s UTC.", a.Device, lastSeen)
	}
}

// FormatFetchFailure renders the meta-alert raised when a poll cycle cannot
// fetch the device snapshot at all.
func FormatFetchFailure(reason string, statusCode int) string {
	if reason == "auth_rejected" {
		return fmt.Sprintf("❌ Fleet API authentication rejected (HTTP %d). Update the configured API key.", statusCode)
	}
	return fmt.Sprintf("⚠️ Error fetching fleet device data (%s). Will continue monitoring.", reason)
}

// formatOfflineFor humanizes an offline span, e.g. "1 hour 10 minutes".
// Sub-minute spans cannot occur for offline alerts but render as "0 minutes"
// rather than durafmt's "0 seconds".
func formatOfflineFor(minutes int64) string {
	if minutes <= 0 {
		return "0 minutes"
	}
	return durafmt.Parse(time.Duration(minutes) * time.Minute).LimitFirstN(2).String()
}
