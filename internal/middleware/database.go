package middleware

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// DatabaseHealth is the part of db.Manager the guard needs.
type DatabaseHealth interface {
	Healthy() bool
	Reconnect(ctx context.Context) error
}

// RequireDatabase answers 503 when the database is down and one reconnect
// attempt does not bring it back.
func RequireDatabase(dbh DatabaseHealth, timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !dbh.Healthy() {
				ctx, cancel := context.WithTimeout(r.Context(), timeout)
				err := dbh.Reconnect(ctx)
				cancel()
				if err != nil {
					log.WithError(err).WithField("path", r.URL.Path).Error("Database unavailable")
					writeError(w, http.StatusServiceUnavailable, "database unavailable")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
