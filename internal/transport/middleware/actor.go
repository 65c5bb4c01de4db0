package middleware

import (
	"net/http"

	errors "github.com/frahmantamala/order-assistant/internal"
	"github.com/frahmantamala/order-assistant/pkg/logger"
)

// ActorLogger tags the request logger with the actor set by authentication.
func ActorLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := errors.ActorFromContext(r.Context())
		if actor == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := logger.With(r.Context(), "actor", actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
