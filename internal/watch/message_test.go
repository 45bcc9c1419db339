package watch

import (
	"strings"
	"testing"
	"time"
)

func TestFormatAlert_Offline(t *testing.T) {
	got := FormatAlert(Alert{
		Kind:           AlertOffline,
		Device:         "server-a",
		LastSeen:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		OfflineMinutes: 70,
	})
	want := "🔴 Device 'server-a' has not been seen for 1 hour 10 minutes. Last seen: 2024-01-01 00:00:00 UTC."
	if got != want {
		t.Errorf("FormatAlert() = %q, want %q", got, want)
	}
}

func TestFormatAlert_Recovery(t *testing.T) {
	got := FormatAlert(Alert{
		Kind:     AlertRecovery,
		Device:   "server-a",
		LastSeen: time.Date(2024, 1, 1, 0, 9, 0, 0, time.UTC),
	})
	want := "🟢 Device 'server-a' is back online! Last seen: 2024-01-01 00:09:00 UTC."
	if got != want {
		t.Errorf("FormatAlert() = %q, want %q", got, want)
	}
}

func TestFormatAlert_MinutesOnly(t *testing.T) {
	got := FormatAlert(Alert{
		Kind:           AlertOffline,
		Device:         "x",
		LastSeen:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		OfflineMinutes: 7,
	})
	if !strings.Contains(got, "7 minutes") {
		t.Errorf("expected humanized span in %q", got)
	}
}

func TestFormatFetchFailure(t *testing.T) {
	got := FormatFetchFailure("auth_rejected", 401)
	if !strings.Contains(got, "authentication rejected (HTTP 401)") {
		t.Errorf("unexpected auth message: %q", got)
	}

	got = FormatFetchFailure("timeout", 0)
	if !strings.Contains(got, "(timeout)") || !strings.Contains(got, "Will continue monitoring") {
		t.Errorf("unexpected generic message: %q", got)
	}
}
