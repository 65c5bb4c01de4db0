package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	errors "github.com/frahmantamala/order-assistant/internal"
)

const WebhookSecretHeader = "X-Webhook-Secret"

// WebhookSecret rejects chat webhook calls that do not carry the shared secret.
func WebhookSecret(secret string, lg *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			given := r.Header.Get(WebhookSecretHeader)
			if secret == "" || subtle.ConstantTimeCompare([]byte(given), []byte(secret)) != 1 {
				lg.Warn("webhook rejected: bad secret", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				appErr := errors.NewUnauthorizedError("invalid webhook secret", errors.ErrCodeInvalidSignature)
				status, body := appErr.ToHTTPResponse()
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				_ = json.NewEncoder(w).Encode(body)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
