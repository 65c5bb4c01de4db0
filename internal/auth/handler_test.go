package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	errors "github.com/frahmantamala/order-assistant/internal"
	"github.com/frahmantamala/order-assistant/internal/auth"
	authPostgres "github.com/frahmantamala/order-assistant/internal/auth/postgres"
	"github.com/frahmantamala/order-assistant/internal/transport"
)

var _ = Describe("Auth Handlers", func() {
	var (
		router *chi.Mux
		actor  string
	)

	login := func(email string) string {
		req := httptest.NewRequest(http.MethodPost, "/auth/login",
			strings.NewReader(`{"email":"`+email+`","password":"`+password+`"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		Expect(rec.Code).To(Equal(http.StatusOK))

		var tokens auth.AuthTokens
		Expect(json.Unmarshal(rec.Body.Bytes(), &tokens)).To(Succeed())
		return tokens.AccessToken
	}

	get := func(path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	BeforeEach(func() {
		db := newTestDB()
		seedUser(db, "staff@example.com", true, auth.PermissionManageOrders)
		seedUser(db, "owner@example.com", true, auth.PermissionAdmin)

		tokenGen := auth.NewJWTTokenGenerator(accessSecret, refreshSecret, 15*time.Minute, time.Hour)
		service := auth.NewService(authPostgres.NewRepository(db), tokenGen, bcrypt.MinCost, quietLogger())
		base := transport.NewBaseHandler(quietLogger())
		handler := auth.NewHandler(base, service)
		rbac := auth.NewRBACAuthorization(base, quietLogger())

		actor = ""
		echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor = errors.ActorFromContext(r.Context())
			w.WriteHeader(http.StatusNoContent)
		})

		router = chi.NewRouter()
		router.Post("/auth/login", handler.Login)
		router.Post("/auth/refresh", handler.RefreshToken)
		router.Group(func(r chi.Router) {
			r.Use(handler.AuthMiddleware)
			r.With(rbac.RequireManageOrders()).Get("/orders", echo)
			r.With(rbac.RequireRunReminders()).Get("/reminders", echo)
		})
	})

	It("should answer 401 with the error body for bad credentials", func() {
		req := httptest.NewRequest(http.MethodPost, "/auth/login",
			strings.NewReader(`{"email":"staff@example.com","password":"wrong"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		Expect(rec.Body.String()).To(ContainSubstring(string(errors.ErrCodeInvalidCredentials)))
	})

	It("should reject requests without a bearer token", func() {
		Expect(get("/orders", "").Code).To(Equal(http.StatusUnauthorized))
	})

	It("should put the user id on the context as the actor", func() {
		rec := get("/orders", login("staff@example.com"))
		Expect(rec.Code).To(Equal(http.StatusNoContent))
		Expect(actor).To(HavePrefix("user:"))
	})

	It("should answer 403 when the permission is missing", func() {
		rec := get("/reminders", login("staff@example.com"))
		Expect(rec.Code).To(Equal(http.StatusForbidden))
	})

	It("should let admins through every permission check", func() {
		token := login("owner@example.com")
		Expect(get("/reminders", token).Code).To(Equal(http.StatusNoContent))
		Expect(get("/orders", token).Code).To(Equal(http.StatusNoContent))
	})

	It("should validate the refresh request", func() {
		req := httptest.NewRequest(http.MethodPost, "/auth/refresh", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})
})
