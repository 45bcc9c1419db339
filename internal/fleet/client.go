package fleet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// apiDevice is a device as returned by the Tailscale API v2.
type apiDevice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`     // Full MagicDNS name (e.g., "host.tail12345.ts.net")
	Hostname string `json:"hostname"` // Short hostname
	LastSeen string `json:"lastSeen"` // RFC3339
}

// devicesResponse wraps the Tailscale API list-devices response.
type devicesResponse struct {
	Devices []apiDevice `json:"devices"`
}

// Client is a thin HTTP wrapper for the Tailscale API v2.
type Client struct {
	apiKey  string
	baseURL string
	tailnet string
	http    *http.Client
}

// Compile-time interface guard.
var _ Lister = (*Client)(nil)

// NewClient creates a Client for the given tailnet. The timeout bounds each
// ListDevices call; expiry surfaces as a FetchError with ReasonTimeout.
func NewClient(apiKey, baseURL, tailnet string, timeout time.Duration) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		tailnet: tailnet,
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// ListDevices fetches all devices in the tailnet. On failure it returns a
// *FetchError classifying the cause.
func (c *Client) ListDevices(ctx context.Context) ([]Device, error) {
	url := fmt.Sprintf("%s/api/v2/tailnet/%s/devices", c.baseURL, c.tailnet)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, &FetchError{Reason: ReasonNetwork, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		reason := ReasonNetwork
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			reason = ReasonTimeout
		}
		return nil, &FetchError{Reason: reason, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &FetchError{
			Reason:     ReasonAuth,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("credential rejected"),
		}
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := resp.Header.Get("Retry-After")
		secs, _ := strconv.Atoi(retryAfter)
		if secs == 0 {
			secs = 60
		}
		return nil, &FetchError{
			Reason:     ReasonRateLimited,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("rate limited, retry after %ds", secs),
		}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &FetchError{
			Reason:     ReasonAPIError,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", string(body)),
		}
	}

	var result devicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &FetchError{Reason: ReasonMalformed, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}

	devices := make([]Device, 0, len(result.Devices))
	for _, d := range result.Devices {
		if d.Name == "" {
			continue
		}
		lastSeen, err := parseLastSeen(d.LastSeen)
		if err != nil {
			return nil, &FetchError{
				Reason:     ReasonMalformed,
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("device %s: %w", d.Name, err),
			}
		}
		devices = append(devices, Device{Name: d.Name, LastSeen: lastSeen})
	}

	return devices, nil
}

// parseLastSeen accepts the two timestamp shapes the API has been observed
// to return: full RFC3339 and second-precision without offset.
func parseLastSeen(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing lastSeen")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse("2006-01-02T15:04:05Z", s)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("parse lastSeen %q: %w", s, err)
	}
	return t.UTC(), nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
