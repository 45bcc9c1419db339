package watch

import (
	"testing"
	"time"
)

func TestMinutesSince(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 10, 0, 0, time.UTC)

	tests := []struct {
		name     string
		lastSeen time.Time
		want     int64
	}{
		{"exact minutes", now.Add(-5 * time.Minute), 5},
		{"partial minute floors down", now.Add(-5*time.Minute - 59*time.Second), 5},
		{"zero", now, 0},
		{"just under a minute", now.Add(-59 * time.Second), 0},
		{"future timestamp", now.Add(30 * time.Second), -1},
		{"future exact minute", now.Add(2 * time.Minute), -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MinutesSince(now, tt.lastSeen); got != tt.want {
				t.Errorf("MinutesSince() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 10, 0, 0, time.UTC)
	const threshold = 6

	tests := []struct {
		name     string
		lastSeen time.Time
		want     Status
	}{
		{"recent contact", now.Add(-1 * time.Minute), StatusOnline},
		{"exactly at threshold", now.Add(-6 * time.Minute), StatusOnline},
		{"threshold plus partial minute", now.Add(-6*time.Minute - 30*time.Second), StatusOnline},
		{"one past threshold", now.Add(-7 * time.Minute), StatusOffline},
		{"long offline", now.Add(-24 * time.Hour), StatusOffline},
		{"future last seen", now.Add(5 * time.Minute), StatusOnline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(now, tt.lastSeen, threshold); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}
