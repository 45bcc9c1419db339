// Package watch implements the device staleness monitor: it polls the fleet
// API for device last-seen timestamps, classifies each device against a
// threshold, and publishes exactly one event per offline/recovery transition.
package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/HerbHall/fleetpulse/internal/fleet"
	"github.com/HerbHall/fleetpulse/pkg/plugin"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
	_ plugin.Validator     = (*Module)(nil)
)

// DeviceStatus is the per-device view exposed on /status.
type DeviceStatus struct {
	Device   string    `json:"device"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"last_seen"`
	Notified bool      `json:"notified"`
}

// CycleResult summarises a single poll cycle.
type CycleResult struct {
	DevicesFound   int `json:"devices_found"`
	DevicesOffline int `json:"devices_offline"`
	OfflineAlerts  int `json:"offline_alerts"`
	RecoveryAlerts int `json:"recovery_alerts"`
}

// Module implements the watch plugin. One poll cycle runs to completion
// (fetch -> classify -> reconcile -> notify -> persist) before the next
// begins; cycleMu serializes the timer loop against manual /poll triggers.
type Module struct {
	logger  *zap.Logger
	cfg     WatchConfig
	bus     plugin.EventBus
	metrics *Metrics

	lister fleet.Lister
	states StateStore
	engine *Engine

	stopCh  chan struct{}
	wg      sync.WaitGroup
	cycleMu sync.Mutex

	mu              sync.RWMutex
	lastPollTime    time.Time
	lastPollErr     error
	lastResult      *CycleResult
	deviceView      []DeviceStatus
	lastFetchNotice time.Time
}

// New creates a new watch plugin instance.
func New() *Module {
	return &Module{}
}

// Info implements plugin.Plugin.
func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "watch",
		Version:     "0.1.0",
		Description: "Polls the fleet API and alerts once per device offline/recovery transition",
		Required:    true,
		Roles:       []string{"monitoring"},
		APIVersion:  plugin.APIVersionCurrent,
	}
}

// Init implements plugin.Plugin.
func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus
	m.cfg = DefaultConfig()

	if deps.Config != nil {
		if deps.Config.IsSet("enabled") {
			m.cfg.Enabled = deps.Config.GetBool("enabled")
		}
		if v := deps.Config.GetString("api_key"); v != "" {
			m.cfg.APIKey = v
		}
		if v := deps.Config.GetString("tailnet"); v != "" {
			m.cfg.Tailnet = v
		}
		if v := deps.Config.GetString("base_url"); v != "" {
			m.cfg.BaseURL = v
		}
		if d := deps.Config.GetDuration("poll_interval"); d > 0 {
			m.cfg.PollInterval = d
		}
		if d := deps.Config.GetDuration("fetch_timeout"); d > 0 {
			m.cfg.FetchTimeout = d
		}
		if deps.Config.IsSet("threshold_minutes") {
			m.cfg.ThresholdMinutes = deps.Config.GetInt("threshold_minutes")
		}
		if v := deps.Config.GetStringSlice("devices"); len(v) > 0 {
			m.cfg.Devices = v
		}
		if deps.Config.IsSet("eviction_cycles") {
			m.cfg.EvictionCycles = deps.Config.GetInt("eviction_cycles")
		}
		if d := deps.Config.GetDuration("fetch_failure_cooldown"); d > 0 {
			m.cfg.FetchFailureCooldown = d
		}
		if v := deps.Config.GetString("state_backend"); v != "" {
			m.cfg.StateBackend = v
		}
		if v := deps.Config.GetString("state_path"); v != "" {
			m.cfg.StatePath = v
		}
	}

	m.engine = NewEngine(m.cfg.ThresholdMinutes, m.cfg.Devices, m.cfg.EvictionCycles)

	if m.states == nil {
		switch m.cfg.StateBackend {
		case "sqlite":
			if deps.Store == nil {
				return fmt.Errorf("state_backend sqlite requires a database")
			}
			if err := deps.Store.Migrate(ctx, "watch", Migrations()); err != nil {
				return fmt.Errorf("apply watch migrations: %w", err)
			}
			m.states = NewSQLStateStore(deps.Store)
		default:
			m.states = NewFileStateStore(m.cfg.StatePath)
		}
	}

	m.logger.Info("watch module initialized",
		zap.Bool("enabled", m.cfg.Enabled),
		zap.String("tailnet", m.cfg.Tailnet),
		zap.Duration("poll_interval", m.cfg.PollInterval),
		zap.Int("threshold_minutes", m.cfg.ThresholdMinutes),
		zap.Int("monitored_devices", len(m.cfg.Devices)),
		zap.String("state_backend", m.cfg.StateBackend),
	)
	return nil
}

// ValidateConfig implements plugin.Validator.
func (m *Module) ValidateConfig() error {
	if m.cfg.ThresholdMinutes <= 0 {
		return fmt.Errorf("threshold_minutes must be positive, got %d", m.cfg.ThresholdMinutes)
	}
	if m.cfg.EvictionCycles < 0 {
		return fmt.Errorf("eviction_cycles must not be negative, got %d", m.cfg.EvictionCycles)
	}
	switch m.cfg.StateBackend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("state_backend must be \"file\" or \"sqlite\", got %q", m.cfg.StateBackend)
	}
	return nil
}

// SetLister overrides the fleet API client (used by tests and by the
// composition root when wiring an alternate snapshot source).
func (m *Module) SetLister(l fleet.Lister) {
	m.lister = l
}

// SetStateStore overrides the notification state store.
func (m *Module) SetStateStore(s StateStore) {
	m.states = s
}

// SetMetrics wires the Prometheus collectors. Optional; metrics are
// skipped when unset.
func (m *Module) SetMetrics(mt *Metrics) {
	m.metrics = mt
}

// Start implements plugin.Plugin.
func (m *Module) Start(_ context.Context) error {
	if !m.cfg.Enabled {
		m.logger.Info("watch module started (disabled)")
		return nil
	}

	if m.lister == nil {
		if m.cfg.APIKey == "" {
			m.logger.Warn("watch module started but no api_key configured; polling will not run")
			return nil
		}
		m.lister = fleet.NewClient(m.cfg.APIKey, m.cfg.BaseURL, m.cfg.Tailnet, m.cfg.FetchTimeout)
	}

	m.stopCh = make(chan struct{})
	m.wg.Add(1)
	go m.pollLoop()

	m.logger.Info("watch poll loop started",
		zap.String("tailnet", m.cfg.Tailnet),
		zap.Duration("interval", m.cfg.PollInterval),
	)
	return nil
}

// Stop implements plugin.Plugin.
func (m *Module) Stop(_ context.Context) error {
	if m.stopCh != nil {
		close(m.stopCh)
		m.wg.Wait()
		m.logger.Info("watch module stopped")
	}
	return nil
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	if !m.cfg.Enabled {
		return plugin.HealthStatus{Status: "healthy", Message: "watch disabled"}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.lastPollErr != nil {
		return plugin.HealthStatus{
			Status:  "degraded",
			Message: "last poll failed: " + m.lastPollErr.Error(),
		}
	}
	if m.lastResult != nil {
		return plugin.HealthStatus{
			Status:  "healthy",
			Message: "last poll OK",
			Details: map[string]string{
				"devices_found":   fmt.Sprint(m.lastResult.DevicesFound),
				"devices_offline": fmt.Sprint(m.lastResult.DevicesOffline),
			},
		}
	}
	return plugin.HealthStatus{Status: "healthy", Message: "awaiting first poll"}
}

// pollLoop runs poll cycles on a fixed interval until Stop.
func (m *Module) pollLoop() {
	defer m.wg.Done()

	// Run an initial cycle immediately.
	m.RunCycle(time.Now().UTC())

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.RunCycle(time.Now().UTC())
		case <-m.stopCh:
			return
		}
	}
}

// RunCycle executes one complete poll cycle: fetch, classify, reconcile,
// notify, persist. Cycles never overlap; a concurrent call blocks until the
// running cycle completes. The returned error describes why the cycle ended
// early (fetch failure, state store unavailable).
func (m *Module) RunCycle(now time.Time) error {
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.PollInterval)
	defer cancel()

	err := m.cycle(ctx, now)

	m.mu.Lock()
	m.lastPollTime = now
	m.lastPollErr = err
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.PollCycles.Inc()
	}
	return err
}

func (m *Module) cycle(ctx context.Context, now time.Time) error {
	devices, err := m.lister.ListDevices(ctx)
	if err != nil {
		m.handleFetchFailure(ctx, now, err)
		return err
	}

	// An unreadable store aborts the cycle; it is never treated as empty.
	prior, err := m.states.Load(ctx)
	if err != nil {
		m.logger.Error("state store unavailable, cycle aborted", zap.Error(err))
		return err
	}

	res := m.engine.Reconcile(now, devices, prior)

	// Notify attempts run before the state write. At-most-once: a crash
	// after the write drops the alert instead of duplicating it on restart.
	summary := CycleResult{DevicesFound: len(devices)}
	for _, alert := range res.Alerts {
		m.publishAlert(ctx, now, alert)
		if alert.Kind == AlertOffline {
			summary.OfflineAlerts++
		} else {
			summary.RecoveryAlerts++
		}
	}

	if err := m.states.Save(ctx, res.Next); err != nil {
		m.logger.Error("failed to persist notification state", zap.Error(err))
		return fmt.Errorf("persist state: %w", err)
	}

	view := make([]DeviceStatus, 0, len(devices))
	for _, d := range devices {
		st, tracked := res.Next[d.Name]
		if !tracked {
			continue // filtered by the allow-list
		}
		status := Classify(now, d.LastSeen, m.cfg.ThresholdMinutes)
		if status == StatusOffline {
			summary.DevicesOffline++
		}
		view = append(view, DeviceStatus{
			Device:   d.Name,
			Status:   status.String(),
			LastSeen: d.LastSeen,
			Notified: st.Notified,
		})
	}

	m.mu.Lock()
	m.lastResult = &summary
	m.deviceView = view
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.DevicesTracked.Set(float64(len(res.Next)))
		m.metrics.DevicesOffline.Set(float64(summary.DevicesOffline))
	}

	m.logger.Info("poll cycle completed",
		zap.Int("devices_found", summary.DevicesFound),
		zap.Int("devices_offline", summary.DevicesOffline),
		zap.Int("offline_alerts", summary.OfflineAlerts),
		zap.Int("recovery_alerts", summary.RecoveryAlerts),
	)
	return nil
}

func (m *Module) publishAlert(ctx context.Context, now time.Time, alert Alert) {
	if m.metrics != nil {
		m.metrics.AlertsEmitted.WithLabelValues(string(alert.Kind)).Inc()
	}

	topic := TopicDeviceOffline
	if alert.Kind == AlertRecovery {
		topic = TopicDeviceRecovered
	}

	m.logger.Info("device transition",
		zap.String("device", alert.Device),
		zap.String("kind", string(alert.Kind)),
		zap.Time("last_seen", alert.LastSeen),
		zap.Int64("offline_minutes", alert.OfflineMinutes),
	)

	if m.bus == nil {
		return
	}
	// Synchronous publish so subscribers run before the state is persisted.
	_ = m.bus.Publish(ctx, plugin.Event{
		Topic:     topic,
		Source:    "watch",
		Timestamp: now,
		Payload: Notification{
			Kind:     string(alert.Kind),
			Device:   alert.Device,
			Text:     FormatAlert(alert),
			LastSeen: alert.LastSeen,
		},
	})
}

// handleFetchFailure reports a failed snapshot fetch. No device state is
// touched; the meta-alert is throttled so a long outage does not spam the
// notification channel every cycle.
func (m *Module) handleFetchFailure(ctx context.Context, now time.Time, err error) {
	reason := "unknown"
	statusCode := 0
	var fe *fleet.FetchError
	if errors.As(err, &fe) {
		reason = fe.Reason
		statusCode = fe.StatusCode
	}

	if m.metrics != nil {
		m.metrics.FetchFailures.WithLabelValues(reason).Inc()
	}

	m.logger.Warn("snapshot fetch failed",
		zap.String("reason", reason),
		zap.Error(err),
	)

	m.mu.Lock()
	throttled := !m.lastFetchNotice.IsZero() && now.Sub(m.lastFetchNotice) < m.cfg.FetchFailureCooldown
	if !throttled {
		m.lastFetchNotice = now
	}
	m.mu.Unlock()

	if throttled || m.bus == nil {
		return
	}
	_ = m.bus.Publish(ctx, plugin.Event{
		Topic:     TopicFetchFailed,
		Source:    "watch",
		Timestamp: now,
		Payload: Notification{
			Kind:   "fetch_failure",
			Text:   FormatFetchFailure(reason, statusCode),
			Reason: reason,
		},
	})
}
