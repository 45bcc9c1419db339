package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDiscordNotifier_Notify_Success(t *testing.T) {
	var received discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	notifier := NewDiscordNotifier(DiscordConfig{WebhookURL: srv.URL, Username: "fleetpulse"})
	msg := Message{Kind: "offline", Text: "🔴 Device 'server-a' is offline."}

	if err := notifier.Notify(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if received.Content != msg.Text {
		t.Errorf("content = %q, want %q", received.Content, msg.Text)
	}
	if received.Username != "fleetpulse" {
		t.Errorf("username = %q", received.Username)
	}
}

func TestDiscordNotifier_Notify_TruncatesLongContent(t *testing.T) {
	var received discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	notifier := NewDiscordNotifier(DiscordConfig{WebhookURL: srv.URL})
	err := notifier.Notify(context.Background(), Message{Text: strings.Repeat("x", 3000)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(received.Content) != discordContentLimit {
		t.Errorf("content length = %d, want %d", len(received.Content), discordContentLimit)
	}
}

func TestDiscordNotifier_Notify_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	notifier := NewDiscordNotifier(DiscordConfig{WebhookURL: srv.URL})
	err := notifier.Notify(context.Background(), Message{Text: "hi"})
	if err == nil {
		t.Fatal("expected error on 429 response")
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("unexpected error: %v", err)
	}
}
