package watch

import "time"

// WatchConfig holds configuration for the watch plugin.
type WatchConfig struct {
	Enabled              bool          `mapstructure:"enabled"`
	APIKey               string        `mapstructure:"api_key"` //nolint:gosec // G101: config field name, not a credential
	Tailnet              string        `mapstructure:"tailnet"`
	BaseURL              string        `mapstructure:"base_url"`
	PollInterval         time.Duration `mapstructure:"poll_interval"`
	FetchTimeout         time.Duration `mapstructure:"fetch_timeout"`
	ThresholdMinutes     int           `mapstructure:"threshold_minutes"`
	Devices              []string      `mapstructure:"devices"` // allow-list; empty monitors all
	EvictionCycles       int           `mapstructure:"eviction_cycles"`
	FetchFailureCooldown time.Duration `mapstructure:"fetch_failure_cooldown"`
	StateBackend         string        `mapstructure:"state_backend"` // "file" or "sqlite"
	StatePath            string        `mapstructure:"state_path"`
}

// DefaultConfig returns sensible defaults for the watch plugin.
func DefaultConfig() WatchConfig {
	return WatchConfig{
		Tailnet:              "-",
		BaseURL:              "https://api.tailscale.com",
		PollInterval:         60 * time.Second,
		FetchTimeout:         30 * time.Second,
		ThresholdMinutes:     6,
		EvictionCycles:       3,
		FetchFailureCooldown: time.Hour,
		StateBackend:         "file",
		StatePath:            "data/notification_state.json",
	}
}
