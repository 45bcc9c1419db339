package server

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the server configuration.
type Config struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	DataDir string `mapstructure:"data_dir"`
}

// Addr returns the listen address as host:port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadConfig reads configuration from file and environment variables.
func LoadConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.data_dir", "./data")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.path", "./data/fleetpulse.db")

	// Plugin defaults
	v.SetDefault("plugins.watch.enabled", true)
	v.SetDefault("plugins.watch.tailnet", "-")
	v.SetDefault("plugins.watch.base_url", "https://api.tailscale.com")
	v.SetDefault("plugins.watch.poll_interval", "60s")
	v.SetDefault("plugins.watch.fetch_timeout", "30s")
	v.SetDefault("plugins.watch.threshold_minutes", 6)
	v.SetDefault("plugins.watch.eviction_cycles", 3)
	v.SetDefault("plugins.watch.fetch_failure_cooldown", "1h")
	v.SetDefault("plugins.watch.state_backend", "file")
	v.SetDefault("plugins.watch.state_path", "./data/notification_state.json")
	v.SetDefault("plugins.notify.enabled", true)
	v.SetDefault("plugins.notify.rate_every", "1s")
	v.SetDefault("plugins.notify.rate_burst", 5)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("fleetpulse")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/fleetpulse")
	}

	// Environment variable support: FP_SERVER_PORT=9090
	v.SetEnvPrefix("FP")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	return v, nil
}
