package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Slot metrics
	ActiveSlot = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hueshift_active_slot",
			Help: "Which slot is active per application (1 = active, 0 = standby)",
		},
		[]string{"app", "slot"},
	)

	SlotHealth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hueshift_slot_healthy",
			Help: "Slot health per application (1 = healthy, 0 = otherwise)",
		},
		[]string{"app", "slot"},
	)

	// Rollout metrics
	RolloutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hueshift_rollouts_total",
			Help: "Total number of orchestration runs by outcome",
		},
		[]string{"app", "outcome"},
	)

	RolloutDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hueshift_rollout_duration_seconds",
			Help:    "End-to-end orchestration run duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"app"},
	)

	RolloutsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hueshift_rollouts_rejected_total",
			Help: "Deployment requests rejected before starting, by reason",
		},
		[]string{"app", "reason"},
	)

	// Probe metrics
	ProbeAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hueshift_probe_attempts_total",
			Help: "Total number of probe attempts by result",
		},
		[]string{"app", "slot", "result"},
	)

	ProbeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hueshift_probe_duration_seconds",
			Help:    "Probe attempt duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"app", "slot"},
	)

	// Switch metrics
	SwitchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hueshift_switches_total",
			Help: "Total number of traffic switches by result",
		},
		[]string{"app", "result"},
	)

	RollbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hueshift_rollbacks_total",
			Help: "Total number of rollbacks by result",
		},
		[]string{"app", "result"},
	)

	// Deploy metrics
	DeploysTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hueshift_deploys_total",
			Help: "Total number of standby deploys by result",
		},
		[]string{"app", "slot", "result"},
	)

	DeployDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hueshift_deploy_duration_seconds",
			Help:    "Time from applying a workload spec to readiness in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"app"},
	)

	// Reconciler metrics
	ReconcileCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hueshift_reconcile_cycles_total",
			Help: "Total number of standby reconciliation cycles",
		},
	)

	ReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hueshift_reconcile_duration_seconds",
			Help:    "Standby reconciliation cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hueshift_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(ActiveSlot)
	prometheus.MustRegister(SlotHealth)
	prometheus.MustRegister(RolloutsTotal)
	prometheus.MustRegister(RolloutDuration)
	prometheus.MustRegister(RolloutsRejected)
	prometheus.MustRegister(ProbeAttemptsTotal)
	prometheus.MustRegister(ProbeDuration)
	prometheus.MustRegister(SwitchesTotal)
	prometheus.MustRegister(RollbacksTotal)
	prometheus.MustRegister(DeploysTotal)
	prometheus.MustRegister(DeployDuration)
	prometheus.MustRegister(ReconcileCyclesTotal)
	prometheus.MustRegister(ReconcileDuration)
	prometheus.MustRegister(APIRequestsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetActiveSlot updates the per-slot activity gauges for an app
func SetActiveSlot(app, active, standby string) {
	ActiveSlot.WithLabelValues(app, active).Set(1)
	ActiveSlot.WithLabelValues(app, standby).Set(0)
}

// SetSlotHealth updates the health gauge for a slot
func SetSlotHealth(app, slot string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	SlotHealth.WithLabelValues(app, slot).Set(v)
}
