package watch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the watch plugin.
type Metrics struct {
	PollCycles     prometheus.Counter
	FetchFailures  *prometheus.CounterVec
	AlertsEmitted  *prometheus.CounterVec
	DevicesTracked prometheus.Gauge
	DevicesOffline prometheus.Gauge
}

// NewMetrics registers the watch collectors with reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PollCycles: factory.NewCounter(prometheus.CounterOpts{
			Name: "fleetpulse_watch_poll_cycles_total",
			Help: "Completed poll cycles, including cycles that failed to fetch.",
		}),
		FetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetpulse_watch_fetch_failures_total",
			Help: "Snapshot fetch failures by reason.",
		}, []string{"reason"}),
		AlertsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetpulse_watch_alerts_total",
			Help: "Alerts emitted by kind (offline, recovery).",
		}, []string{"kind"}),
		DevicesTracked: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fleetpulse_watch_devices_tracked",
			Help: "Devices in the notification state store after the last cycle.",
		}),
		DevicesOffline: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fleetpulse_watch_devices_offline",
			Help: "Devices currently classified offline.",
		}),
	}
}
