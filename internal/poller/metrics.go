package poller

import "github.com/prometheus/client_golang/prometheus"

var (
	pollSuccess = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "thinqd_poll_success_total",
		Help: "Successful status polls per device",
	}, []string{"device_id"})
	pollFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "thinqd_poll_failure_total",
		Help: "Failed status polls per device",
	}, []string{"device_id"})
	pollLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "thinqd_poll_duration_seconds",
		Help:    "Status poll latency per device",
		Buckets: prometheus.DefBuckets,
	}, []string{"device_id"})
	lastSuccess = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "thinqd_poll_last_success_timestamp_seconds",
		Help: "Unix time of the last successful poll per device",
	}, []string{"device_id"})
)

// MetricsCollectors returns the poll loop's collectors.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{pollSuccess, pollFailure, pollLatency, lastSuccess}
}
