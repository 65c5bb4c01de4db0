package auth

import (
	"log/slog"
	"net/http"

	errors "github.com/frahmantamala/order-assistant/internal"
	"github.com/frahmantamala/order-assistant/internal/transport"
)

type RBACAuthorization struct {
	*transport.BaseHandler
	logger *slog.Logger
}

func NewRBACAuthorization(baseHandler *transport.BaseHandler, logger *slog.Logger) *RBACAuthorization {
	return &RBACAuthorization{
		BaseHandler: baseHandler,
		logger:      logger,
	}
}

func (ra *RBACAuthorization) Check(next http.HandlerFunc, permission string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			ra.logger.Warn("authorization check failed: user not found in context")
			ra.HandleServiceError(w, errors.NewUnauthorizedError("authentication required", errors.ErrCodeInvalidToken))
			return
		}

		if !user.Allows(permission) {
			ra.logger.WarnContext(r.Context(), "access denied: insufficient permissions",
				"user_id", user.ID,
				"required_permission", permission,
				"user_permissions", user.Permissions)
			ra.HandleServiceError(w, errors.NewForbiddenError("insufficient permissions", errors.ErrCodeForbidden))
			return
		}

		next.ServeHTTP(w, r)
	}
}

func (ra *RBACAuthorization) Middleware(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return ra.Check(next.ServeHTTP, permission)
	}
}

func (ra *RBACAuthorization) RequireManageOrders() func(http.Handler) http.Handler {
	return ra.Middleware(PermissionManageOrders)
}

func (ra *RBACAuthorization) RequireRecordPayments() func(http.Handler) http.Handler {
	return ra.Middleware(PermissionRecordPayments)
}

func (ra *RBACAuthorization) RequireRunReminders() func(http.Handler) http.Handler {
	return ra.Middleware(PermissionRunReminders)
}

func (ra *RBACAuthorization) RequireAdmin() func(http.Handler) http.Handler {
	return ra.Middleware(PermissionAdmin)
}
