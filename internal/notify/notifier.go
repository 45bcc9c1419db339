// Package notify delivers watch alerts to external channels. It subscribes
// to the watch event topics and fans each notification out to every
// configured channel; delivery failures are logged, never retried into the
// poll cycle.
package notify

import (
	"context"
	"time"
)

// Message is one notification to deliver.
type Message struct {
	Kind      string    `json:"kind"` // "offline", "recovery", "fetch_failure", "test"
	Device    string    `json:"device,omitempty"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier delivers notifications through a specific channel type.
type Notifier interface {
	// Notify sends one message. Implementations must respect ctx.
	Notify(ctx context.Context, msg Message) error
	// Type returns the notifier type identifier (e.g., "webhook", "discord").
	Type() string
}

// WebhookConfig holds configuration for generic webhook delivery.
type WebhookConfig struct {
	URL     string            `mapstructure:"url"`
	Secret  string            `mapstructure:"secret"` //nolint:gosec // G101: config field name, not a credential
	Headers map[string]string `mapstructure:"headers"`
}

// DiscordConfig holds configuration for Discord webhook delivery.
type DiscordConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Username   string `mapstructure:"username"`
}
