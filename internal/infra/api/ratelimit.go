package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"gator-course-advisor/internal/infra/logging"
)

// Limiter is satisfied by the Redis fixed-window limiter.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit allows perMinute requests per caller. The caller is the token
// subject when auth is on, else the remote host. Limiter errors let the
// request through.
func RateLimit(l Limiter, perMinute int, keyFn func(subject string) string, logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		if l == nil || perMinute <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := Subject(r.Context())
			if subject == "" {
				subject = remoteHost(r)
			}
			ok, err := l.Allow(r.Context(), keyFn(subject), perMinute, time.Minute)
			if err != nil {
				logging.With(r.Context(), logger).Warn().Err(err).Msg("rate limiter unavailable")
			} else if !ok {
				w.Header().Set("Retry-After", "60")
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many submissions"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
