package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWebhookNotifier_Notify_Success(t *testing.T) {
	var received webhookPayload
	var headers http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier(WebhookConfig{URL: srv.URL})
	msg := Message{
		Kind:      "offline",
		Device:    "server-a",
		Text:      "🔴 Device 'server-a' has not been seen for 10 minutes. Last seen: 2024-01-01 00:00:00 UTC.",
		Timestamp: time.Date(2024, 1, 1, 0, 10, 0, 0, time.UTC),
	}

	if err := notifier.Notify(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if received.EventType != "offline" {
		t.Errorf("event_type = %q, want %q", received.EventType, "offline")
	}
	if received.Device != "server-a" {
		t.Errorf("device = %q, want %q", received.Device, "server-a")
	}
	if received.Text != msg.Text {
		t.Errorf("text = %q", received.Text)
	}
	if headers.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", headers.Get("Content-Type"))
	}
	if headers.Get("User-Agent") != "FleetPulse-Webhook/0.1" {
		t.Errorf("User-Agent = %q", headers.Get("User-Agent"))
	}
}

func TestWebhookNotifier_Notify_HMACSignature(t *testing.T) {
	secret := "test-secret-key"
	var receivedSig string
	var receivedBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedSig = r.Header.Get("X-Signature")
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier(WebhookConfig{URL: srv.URL, Secret: secret})
	err := notifier.Notify(context.Background(), Message{Kind: "recovery", Text: "back"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(receivedBody)
	want := hex.EncodeToString(mac.Sum(nil))
	if receivedSig != want {
		t.Errorf("X-Signature = %q, want %q", receivedSig, want)
	}
}

func TestWebhookNotifier_Notify_CustomHeaders(t *testing.T) {
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier(WebhookConfig{
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "Bearer tok"},
	})
	if err := notifier.Notify(context.Background(), Message{Kind: "test"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if headers.Get("Authorization") != "Bearer tok" {
		t.Errorf("Authorization = %q", headers.Get("Authorization"))
	}
}

func TestWebhookNotifier_Notify_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier(WebhookConfig{URL: srv.URL})
	if err := notifier.Notify(context.Background(), Message{Kind: "offline"}); err == nil {
		t.Fatal("expected error on 500 response")
	}
}
