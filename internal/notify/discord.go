package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Compile-time interface guard.
var _ Notifier = (*DiscordNotifier)(nil)

// discordPayload is the JSON body for Discord webhook execution.
type discordPayload struct {
	Content  string `json:"content"`
	Username string `json:"username,omitempty"`
}

// DiscordNotifier delivers notifications to a Discord channel webhook.
// Messages over the 2000 character content limit are truncated.
type DiscordNotifier struct {
	client *http.Client
	cfg    DiscordConfig
}

const discordContentLimit = 2000

// NewDiscordNotifier creates a new Discord webhook notifier.
func NewDiscordNotifier(cfg DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		client: &http.Client{Timeout: 10 * time.Second},
		cfg:    cfg,
	}
}

// Notify posts the message text to the Discord webhook.
func (d *DiscordNotifier) Notify(ctx context.Context, msg Message) error {
	content := msg.Text
	if len(content) > discordContentLimit {
		content = content[:discordContentLimit]
	}

	body, err := json.Marshal(discordPayload{
		Content:  content,
		Username: d.cfg.Username,
	})
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord POST: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain body for connection reuse

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("discord POST: rate limited (retry-after %s)", resp.Header.Get("Retry-After"))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("discord POST: status %d", resp.StatusCode)
	}
	return nil
}

// Type returns the notifier type identifier.
func (d *DiscordNotifier) Type() string {
	return "discord"
}
