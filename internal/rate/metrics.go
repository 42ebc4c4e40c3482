package rate

import "github.com/prometheus/client_golang/prometheus"

var (
	blockedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "thinqd_rate_blocked_total",
		Help: "Requests blocked by the local rate guard",
	})
	cooldownTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "thinqd_rate_cooldown_total",
		Help: "Cooldowns opened after vendor 429 responses",
	})
	tokensGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "thinqd_rate_tokens",
		Help: "Remaining request budget tokens",
	})
	lastStatusGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "thinqd_rate_last_status",
		Help: "Last HTTP status observed from the gateway",
	})
)

// MetricsCollectors returns the guard's collectors.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{blockedTotal, cooldownTotal, tokensGauge, lastStatusGauge}
}
