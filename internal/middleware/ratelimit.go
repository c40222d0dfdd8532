package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/vitarenta/internal/metrics"
)

// RateLimit limits requests per client IP within a sliding window. name
// labels the limiter in metrics and logs.
func RateLimit(name string, requests int, window time.Duration) func(http.Handler) http.Handler {
	if requests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.APIRateLimitHits.WithLabelValues(name).Inc()
			log.WithFields(log.Fields{
				"limiter": name,
				"path":    r.URL.Path,
				"remote":  r.RemoteAddr,
			}).Warn("Rate limit exceeded")
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
		}),
	)
}
