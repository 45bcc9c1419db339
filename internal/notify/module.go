package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/HerbHall/fleetpulse/internal/watch"
	"github.com/HerbHall/fleetpulse/pkg/plugin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var deliveriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fleetpulse_notify_deliveries_total",
		Help: "Notification delivery attempts by channel and result.",
	},
	[]string{"channel", "result"},
)

func init() {
	prometheus.MustRegister(deliveriesTotal)
}

// Compile-time interface guards.
var (
	_ plugin.Plugin          = (*Module)(nil)
	_ plugin.EventSubscriber = (*Module)(nil)
	_ plugin.HTTPProvider    = (*Module)(nil)
	_ plugin.HealthChecker   = (*Module)(nil)
)

// Config holds configuration for the notify plugin.
type Config struct {
	Enabled   bool          `mapstructure:"enabled"`
	RateEvery time.Duration `mapstructure:"rate_every"` // min interval between deliveries
	RateBurst int           `mapstructure:"rate_burst"`
	Webhook   WebhookConfig `mapstructure:"webhook"`
	Discord   DiscordConfig `mapstructure:"discord"`
}

// DefaultConfig returns sensible defaults for the notify plugin.
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		RateEvery: time.Second,
		RateBurst: 5,
	}
}

// Module implements the notify plugin: it listens for watch events and
// fans each one out to every configured channel.
type Module struct {
	logger  *zap.Logger
	cfg     Config
	limiter *rate.Limiter

	mu        sync.RWMutex
	notifiers []Notifier
	delivered int64
	failed    int64
	lastErr   error
}

// New creates a new notify plugin instance.
func New() *Module {
	return &Module{}
}

// Info implements plugin.Plugin.
func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "notify",
		Version:      "0.1.0",
		Description:  "Delivers watch alerts to webhook and Discord channels",
		Dependencies: []string{"watch"},
		Roles:        []string{"notifications"},
		APIVersion:   plugin.APIVersionCurrent,
	}
}

// Init implements plugin.Plugin.
func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.cfg = DefaultConfig()

	if deps.Config != nil {
		if deps.Config.IsSet("enabled") {
			m.cfg.Enabled = deps.Config.GetBool("enabled")
		}
		if d := deps.Config.GetDuration("rate_every"); d > 0 {
			m.cfg.RateEvery = d
		}
		if n := deps.Config.GetInt("rate_burst"); n > 0 {
			m.cfg.RateBurst = n
		}
		if v := deps.Config.GetString("webhook.url"); v != "" {
			m.cfg.Webhook.URL = v
			m.cfg.Webhook.Secret = deps.Config.GetString("webhook.secret")
			m.cfg.Webhook.Headers = deps.Config.GetStringMapString("webhook.headers")
		}
		if v := deps.Config.GetString("discord.webhook_url"); v != "" {
			m.cfg.Discord.WebhookURL = v
			m.cfg.Discord.Username = deps.Config.GetString("discord.username")
		}
	}

	m.limiter = rate.NewLimiter(rate.Every(m.cfg.RateEvery), m.cfg.RateBurst)

	m.notifiers = nil
	if m.cfg.Webhook.URL != "" {
		m.notifiers = append(m.notifiers, NewWebhookNotifier(m.cfg.Webhook))
	}
	if m.cfg.Discord.WebhookURL != "" {
		m.notifiers = append(m.notifiers, NewDiscordNotifier(m.cfg.Discord))
	}

	types := make([]string, 0, len(m.notifiers))
	for _, n := range m.notifiers {
		types = append(types, n.Type())
	}
	m.logger.Info("notify module initialized",
		zap.Bool("enabled", m.cfg.Enabled),
		zap.Strings("channels", types),
	)
	return nil
}

// Start implements plugin.Plugin.
func (m *Module) Start(_ context.Context) error {
	if m.cfg.Enabled && len(m.notifiers) == 0 {
		m.logger.Warn("notify module enabled but no channels configured")
	}
	return nil
}

// Stop implements plugin.Plugin.
func (m *Module) Stop(_ context.Context) error {
	return nil
}

// Subscriptions implements plugin.EventSubscriber. All three watch topics
// share one handler; the payload carries the formatted text.
func (m *Module) Subscriptions() []plugin.Subscription {
	return []plugin.Subscription{
		{Topic: watch.TopicDeviceOffline, Handler: m.handleWatchEvent},
		{Topic: watch.TopicDeviceRecovered, Handler: m.handleWatchEvent},
		{Topic: watch.TopicFetchFailed, Handler: m.handleWatchEvent},
	}
}

// handleWatchEvent delivers one watch notification to every channel. It runs
// in the publisher's goroutine, so a delivery attempt completes before the
// watch cycle persists its state.
func (m *Module) handleWatchEvent(ctx context.Context, event plugin.Event) {
	if !m.cfg.Enabled {
		return
	}

	n, ok := event.Payload.(watch.Notification)
	if !ok {
		m.logger.Warn("unexpected payload type for watch event",
			zap.String("topic", event.Topic),
		)
		return
	}

	m.deliver(ctx, Message{
		Kind:      n.Kind,
		Device:    n.Device,
		Text:      n.Text,
		Timestamp: event.Timestamp,
	})
}

// AddNotifier registers an extra delivery channel.
func (m *Module) AddNotifier(n Notifier) {
	m.mu.Lock()
	m.notifiers = append(m.notifiers, n)
	m.mu.Unlock()
}

func (m *Module) deliver(ctx context.Context, msg Message) {
	m.mu.RLock()
	notifiers := append([]Notifier(nil), m.notifiers...)
	m.mu.RUnlock()

	for _, n := range notifiers {
		if err := m.limiter.Wait(ctx); err != nil {
			m.logger.Warn("notification rate limit wait canceled", zap.Error(err))
			return
		}

		if err := n.Notify(ctx, msg); err != nil {
			m.logger.Warn("notification delivery failed",
				zap.String("channel_type", n.Type()),
				zap.String("kind", msg.Kind),
				zap.String("device", msg.Device),
				zap.Error(err),
			)
			deliveriesTotal.WithLabelValues(n.Type(), "error").Inc()
			m.mu.Lock()
			m.failed++
			m.lastErr = err
			m.mu.Unlock()
			continue
		}

		deliveriesTotal.WithLabelValues(n.Type(), "ok").Inc()
		m.logger.Debug("notification delivered",
			zap.String("channel_type", n.Type()),
			zap.String("kind", msg.Kind),
			zap.String("device", msg.Device),
		)
		m.mu.Lock()
		m.delivered++
		m.mu.Unlock()
	}
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	details := map[string]string{
		"channels":  fmt.Sprint(len(m.notifiers)),
		"delivered": fmt.Sprint(m.delivered),
		"failed":    fmt.Sprint(m.failed),
	}
	if m.lastErr != nil {
		return plugin.HealthStatus{
			Status:  "degraded",
			Message: "last delivery failed: " + m.lastErr.Error(),
			Details: details,
		}
	}
	return plugin.HealthStatus{Status: "healthy", Details: details}
}
