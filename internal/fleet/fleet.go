// Package fleet provides the Tailscale fleet API client used as the
// device snapshot source for the watch plugin.
package fleet

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Device is one device snapshot from the fleet control plane: its stable
// name and the last time it contacted the control plane, in UTC.
type Device struct {
	Name     string
	LastSeen time.Time
}

// ShortName strips the MagicDNS suffix from a device name.
// "myhost.tail12345.ts.net" -> "myhost"
func (d Device) ShortName() string {
	if d.Name == "" {
		return ""
	}
	parts := strings.SplitN(d.Name, ".", 2)
	return parts[0]
}

// Lister fetches the current device snapshot set.
// Implemented by *Client; faked in tests.
type Lister interface {
	ListDevices(ctx context.Context) ([]Device, error)
}

// Failure reasons carried by FetchError.
const (
	ReasonNetwork     = "network"       // transport error, DNS failure, connection refused
	ReasonTimeout     = "timeout"       // request deadline exceeded
	ReasonAuth        = "auth_rejected" // API rejected the credential (401/403)
	ReasonRateLimited = "rate_limited"  // API returned 429
	ReasonAPIError    = "api_error"     // any other non-200 status
	ReasonMalformed   = "malformed_response"
)

// FetchError reports why a snapshot fetch failed. The Reason field lets the
// watch plugin distinguish auth failures (actionable by the operator) from
// transient network errors.
type FetchError struct {
	Reason     string
	StatusCode int // zero if the request never completed
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch devices: %s (HTTP %d): %v", e.Reason, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch devices: %s: %v", e.Reason, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
