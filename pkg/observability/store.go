package observability

import "time"

// ObserveUserStore records the outcome and latency of a user store call.
func ObserveUserStore(backend, operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	UserStoreRequestsTotal.WithLabelValues(backend, operation, status).Inc()
	UserStoreLatency.WithLabelValues(backend, operation).Observe(time.Since(start).Seconds())
}
