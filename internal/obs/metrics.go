// internal/obs/metrics.go
package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authcore_sessions_issued_total",
		Help: "Sessions issued.",
	})

	SessionsRefreshed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authcore_sessions_refreshed_total",
		Help: "Successful refresh rotations.",
	})

	SessionsRevoked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authcore_sessions_revoked_total",
		Help: "Sessions revoked, including bulk revocations.",
	})

	ValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authcore_validation_failures_total",
		Help: "Access token validation failures by reason.",
	}, []string{"reason"})

	ReuseDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authcore_refresh_reuse_detected_total",
		Help: "Refresh tokens presented after rotation.",
	})

	SweeperExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authcore_sweeper_sessions_expired_total",
		Help: "Sessions transitioned to expired by the sweeper.",
	})

	SweeperPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authcore_sweeper_blacklist_purged_total",
		Help: "Blacklist rows purged after token expiry.",
	})
)
