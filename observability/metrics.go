package observability

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every collector exported by the bridge services.
const Namespace = "wacg"

// BridgeMetrics tracks controller calls and the RPC surface in front of them.
type BridgeMetrics struct {
	calls       *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	rpcRequests *prometheus.CounterVec
	rpcLatency  *prometheus.HistogramVec
	throttles   *prometheus.CounterVec
}

var (
	bridgeMetricsOnce sync.Once
	bridgeRegistry    *BridgeMetrics
)

// Bridge returns the lazily-initialised bridge metrics registry.
func Bridge() *BridgeMetrics {
	bridgeMetricsOnce.Do(func() {
		bridgeRegistry = &BridgeMetrics{
			calls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "bridge",
				Name:      "calls_total",
				Help:      "Controller calls segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "bridge",
				Name:      "rejections_total",
				Help:      "Rejected controller calls segmented by operation, error kind and tier.",
			}, []string{"operation", "kind", "tier"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "bridge",
				Name:      "call_duration_seconds",
				Help:      "Latency distribution for controller calls.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "HTTP API requests segmented by route and status code.",
			}, []string{"route", "status"}),
			rpcLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for HTTP API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "HTTP API requests rejected by rate limiting or replay checks.",
			}, []string{"route", "reason"}),
		}
		prometheus.MustRegister(
			bridgeRegistry.calls,
			bridgeRegistry.rejections,
			bridgeRegistry.latency,
			bridgeRegistry.rpcRequests,
			bridgeRegistry.rpcLatency,
			bridgeRegistry.throttles,
		)
	})
	return bridgeRegistry
}

// ObserveCall records one controller call. kind and tier are empty for
// successful calls.
func (m *BridgeMetrics) ObserveCall(operation string, duration time.Duration, kind, tier string) {
	if m == nil {
		return
	}
	op := labelOr(operation, "unknown")
	outcome := "success"
	if kind != "" || tier != "" {
		outcome = "rejected"
		m.rejections.WithLabelValues(op, labelOr(kind, "internal"), labelOr(tier, "internal")).Inc()
	}
	m.calls.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// ObserveRPC records an HTTP request with the status code finally written.
func (m *BridgeMetrics) ObserveRPC(route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	r := labelOr(route, "unknown")
	m.rpcRequests.WithLabelValues(r, strconv.Itoa(status)).Inc()
	m.rpcLatency.WithLabelValues(r).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit" or "replayed_signature".
func (m *BridgeMetrics) RecordThrottle(route, reason string) {
	if m == nil {
		return
	}
	m.throttles.WithLabelValues(labelOr(route, "unknown"), labelOr(reason, "unspecified")).Inc()
}

func labelOr(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
