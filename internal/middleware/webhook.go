package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/session-relay/internal/config"
)

// secretTokenHeader carries the platform's webhook secret on every delivery.
const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// WebhookSecret verifies the per-namespace webhook secret before the
// admission gate runs. Namespaces without a configured secret skip the
// check; unknown namespaces fall through to the handler's NotFound mapping.
func WebhookSecret(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ns, ok := cfg.Namespace(chi.URLParam(r, "namespace"))
			if ok && ns.WebhookSecret != "" {
				got := r.Header.Get(secretTokenHeader)
				if subtle.ConstantTimeCompare([]byte(got), []byte(ns.WebhookSecret)) != 1 {
					http.Error(w, `{"error":"invalid webhook secret"}`, http.StatusUnauthorized)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
