package thinq

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	gatewayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thinqd_gateway_requests_total",
			Help: "Gateway calls by operation and outcome",
		},
		[]string{"op", "outcome"},
	)
	gatewayLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thinqd_gateway_request_duration_seconds",
			Help:    "Gateway call latency by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
	refreshSuccess = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "thinqd_auth_refresh_success_total",
			Help: "Successful token refreshes",
		},
	)
	refreshFailure = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "thinqd_auth_refresh_failure_total",
			Help: "Failed token refreshes",
		},
	)
	tokenValid = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "thinqd_auth_token_valid",
			Help: "Access token validity (1=valid, 0=invalid)",
		},
	)
	monitorSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "thinqd_monitor_sessions_open",
			Help: "Open monitor sessions",
		},
	)
)

// MetricsCollectors returns the collectors for the core client.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		gatewayRequests,
		gatewayLatency,
		refreshSuccess,
		refreshFailure,
		tokenValid,
		monitorSessions,
	}
}

func observeGateway(op string, start time.Time, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotReady):
		outcome = "pending"
	default:
		outcome = "error"
	}
	gatewayRequests.WithLabelValues(op, outcome).Inc()
	gatewayLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
