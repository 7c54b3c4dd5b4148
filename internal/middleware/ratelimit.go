package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

// RateLimit creates rate limiting middleware. Webhook traffic is limited per
// namespace; everything else per client IP.
func RateLimit(requestLimit int, windowLength time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestLimit,
		windowLength,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if namespace := chi.URLParam(r, "namespace"); namespace != "" {
				return "namespace:" + namespace, nil
			}
			return "ip:" + r.RemoteAddr, nil
		}),
	)
}
