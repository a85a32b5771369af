package node

import (
	"nodewatch/internal/protocol"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the supervisor
type Metrics struct {
	reg prometheus.Registerer

	HealthStatus    prometheus.Gauge
	HealthChecks    *prometheus.CounterVec
	CheckLatency    prometheus.Histogram
	BlockHeight     prometheus.Gauge
	Connections     prometheus.Gauge
	SyncProgress    prometheus.Gauge
	Orphaned        prometheus.Gauge
	Recoveries      prometheus.Counter
	UnhealthyStreak prometheus.Gauge
}

// NewMetrics creates and registers all metrics on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reg: reg,
		HealthStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nodewatch_health_status",
			Help: "Last health check result (0 initializing, 1 healthy, 2 warning, 3 unhealthy)",
		}),
		HealthChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nodewatch_health_checks_total",
			Help: "Health checks by result",
		}, []string{"status"}),
		CheckLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nodewatch_health_check_duration_seconds",
			Help:    "Health check latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		BlockHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nodewatch_block_height",
			Help: "Best block height reported by the base node",
		}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nodewatch_connections",
			Help: "Number of base node network connections",
		}),
		SyncProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nodewatch_sync_progress",
			Help: "Initial sync progress (1 is complete)",
		}),
		Orphaned: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nodewatch_orphan_chain",
			Help: "1 when the last orphan check found the node on an abandoned fork",
		}),
		Recoveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nodewatch_recoveries_total",
			Help: "Number of recovery actions triggered",
		}),
		UnhealthyStreak: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nodewatch_unhealthy_streak",
			Help: "Consecutive unhealthy checks",
		}),
	}

	reg.MustRegister(
		m.HealthStatus,
		m.HealthChecks,
		m.CheckLatency,
		m.BlockHeight,
		m.Connections,
		m.SyncProgress,
		m.Orphaned,
		m.Recoveries,
		m.UnhealthyStreak,
	)

	return m
}

// ObserveStatus updates the gauges fed by a node status snapshot
func (m *Metrics) ObserveStatus(status protocol.NodeStatus) {
	m.BlockHeight.Set(float64(status.BlockHeight))
	m.Connections.Set(float64(status.NumConnections))
}

// ObserveHealth records a health check outcome
func (m *Metrics) ObserveHealth(status protocol.HealthStatus, seconds float64, streak int) {
	m.HealthStatus.Set(float64(status))
	m.HealthChecks.WithLabelValues(status.String()).Inc()
	m.CheckLatency.Observe(seconds)
	m.UnhealthyStreak.Set(float64(streak))
}

// SetOrphaned records the last orphan check result
func (m *Metrics) SetOrphaned(orphaned bool) {
	if orphaned {
		m.Orphaned.Set(1)
		return
	}
	m.Orphaned.Set(0)
}

// Close unregisters all metrics
func (m *Metrics) Close() {
	m.reg.Unregister(m.HealthStatus)
	m.reg.Unregister(m.HealthChecks)
	m.reg.Unregister(m.CheckLatency)
	m.reg.Unregister(m.BlockHeight)
	m.reg.Unregister(m.Connections)
	m.reg.Unregister(m.SyncProgress)
	m.reg.Unregister(m.Orphaned)
	m.reg.Unregister(m.Recoveries)
	m.reg.Unregister(m.UnhealthyStreak)
}
