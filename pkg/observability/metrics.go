// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the management API.
package observability

import "github.com/prometheus/client_golang/prometheus"

// APIBuckets defines histogram buckets suited for management requests,
// ranging from 5ms to 5s. Password hashing dominates the login path.
var APIBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

var (
	// RequestsTotal counts all HTTP requests by method, status class, and route.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mgmtapi_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status", "route"},
	)

	// RequestDuration records HTTP request duration in seconds by method and route.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mgmtapi_request_duration_seconds",
			Help:    "Request duration",
			Buckets: APIBuckets,
		},
		[]string{"method", "route"},
	)

	// RequestsInFlight tracks the number of requests currently being served.
	RequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mgmtapi_requests_in_flight",
			Help: "Requests in flight",
		},
	)

	// AuthDecisionsTotal counts authentication handler verdicts.
	AuthDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mgmtapi_auth_decisions_total",
			Help: "Authentication decisions",
		},
		[]string{"handler", "outcome"},
	)

	// LoginThrottledTotal counts login attempts rejected by the login limiter.
	LoginThrottledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mgmtapi_login_throttled_total",
			Help: "Throttled login attempts",
		},
	)

	// TokensIssuedTotal counts bearer tokens issued at login.
	TokensIssuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mgmtapi_tokens_issued_total",
			Help: "Issued tokens",
		},
	)

	// TokensRevokedTotal counts tokens revoked by logout.
	TokensRevokedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mgmtapi_tokens_revoked_total",
			Help: "Revoked tokens",
		},
	)

	// TokensEvictedTotal counts token records removed from the store by reason
	// (idle, revoked).
	TokensEvictedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mgmtapi_tokens_evicted_total",
			Help: "Evicted tokens",
		},
		[]string{"reason"},
	)

	// TokenValidationsTotal counts bearer token validations by result
	// (valid, unknown, revoked, expired).
	TokenValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mgmtapi_token_validations_total",
			Help: "Token validations",
		},
		[]string{"result"},
	)

	// TokensActive tracks the number of token records held by the store.
	TokensActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mgmtapi_tokens_active",
			Help: "Token records held",
		},
	)

	// UserStoreRequestsTotal counts user store calls by backend, operation
	// and status (ok, error).
	UserStoreRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mgmtapi_userstore_requests_total",
			Help: "User store requests",
		},
		[]string{"backend", "operation", "status"},
	)

	// UserStoreLatency records user store latency in seconds.
	UserStoreLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mgmtapi_userstore_latency_seconds",
			Help:    "User store latency",
			Buckets: APIBuckets,
		},
		[]string{"backend", "operation"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		RequestsInFlight,
		AuthDecisionsTotal,
		LoginThrottledTotal,
		TokensIssuedTotal,
		TokensRevokedTotal,
		TokensEvictedTotal,
		TokenValidationsTotal,
		TokensActive,
		UserStoreRequestsTotal,
		UserStoreLatency,
	)
}
