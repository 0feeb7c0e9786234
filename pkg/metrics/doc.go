/*
Package metrics exposes Prometheus metrics for the controller.

All collectors are registered at init and served via Handler() on the
API server's /metrics endpoint. Gauges track slot activity and health
per application; counters and histograms cover orchestration runs,
probe attempts, deploys, switches, and rollbacks.

The Timer helper measures a code section and feeds the elapsed seconds
into any prometheus.Observer:

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.RolloutDuration.WithLabelValues(app))
*/
package metrics
