// Package metrics provides Prometheus metrics for ipadns.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric names use the ipadns_ prefix.
const Namespace = "ipadns"

var (
	rpcRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "rpc_requests_total",
		Help:      "Total JSON-RPC requests issued, by method.",
	}, []string{"method"})

	rpcErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "rpc_errors_total",
		Help:      "Total JSON-RPC requests that failed at the HTTP or protocol level, by method.",
	}, []string{"method"})

	rpcDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "rpc_duration_seconds",
		Help:      "JSON-RPC round-trip duration, by method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	loginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "login_attempts_total",
		Help:      "Total login attempts, by result.",
	}, []string{"result"})

	buildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "build_info",
		Help:      "Build information, constant 1.",
	}, []string{"version", "go_version"})
)

// ObserveRPC records one RPC round trip. transported is false when the
// request never produced an HTTP response.
func ObserveRPC(method string, duration time.Duration, transported bool) {
	rpcRequests.WithLabelValues(method).Inc()
	rpcDuration.WithLabelValues(method).Observe(duration.Seconds())
	if !transported {
		rpcErrors.WithLabelValues(method).Inc()
	}
}

// RecordRPCError counts a protocol-level RPC failure.
func RecordRPCError(method string) {
	rpcErrors.WithLabelValues(method).Inc()
}

// RecordLogin counts a login attempt.
func RecordLogin(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	loginAttempts.WithLabelValues(result).Inc()
}

// SetBuildInfo exposes the build version as a constant gauge.
func SetBuildInfo(version, goVersion string) {
	buildInfo.WithLabelValues(version, goVersion).Set(1)
}
