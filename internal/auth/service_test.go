package auth_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	errors "github.com/frahmantamala/order-assistant/internal"
	"github.com/frahmantamala/order-assistant/internal/auth"
	authPostgres "github.com/frahmantamala/order-assistant/internal/auth/postgres"
)

var _ = Describe("Auth Service", func() {
	var (
		ctx      context.Context
		service  *auth.Service
		tokenGen *auth.JWTTokenGenerator
		now      time.Time
		staffID  int64
	)

	BeforeEach(func() {
		ctx = context.Background()
		db := newTestDB()
		staffID = seedUser(db, "staff@example.com", true, auth.PermissionManageOrders, auth.PermissionRecordPayments)
		seedUser(db, "former@example.com", false, auth.PermissionManageOrders)

		now = time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
		tokenGen = auth.NewJWTTokenGenerator(accessSecret, refreshSecret, 15*time.Minute, 24*time.Hour).
			WithClock(func() time.Time { return now })
		service = auth.NewService(authPostgres.NewRepository(db), tokenGen, bcrypt.MinCost, quietLogger())
	})

	Describe("Authenticate", func() {
		It("should issue an access and a refresh token for valid credentials", func() {
			tokens, err := service.Authenticate(ctx, auth.LoginDTO{Email: "staff@example.com", Password: password})
			Expect(err).NotTo(HaveOccurred())
			Expect(tokens.AccessToken).NotTo(BeEmpty())
			Expect(tokens.RefreshToken).NotTo(Equal(tokens.AccessToken))
			Expect(tokens.ExpiresIn).To(Equal(int64(900)))

			claims, err := service.ValidateAccessToken(tokens.AccessToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(claims.UserID).To(Equal(staffID))
			Expect(claims.Email).To(Equal("staff@example.com"))
		})

		It("should reject a wrong password", func() {
			_, err := service.Authenticate(ctx, auth.LoginDTO{Email: "staff@example.com", Password: "nope"})
			Expect(err).To(Equal(errors.ErrInvalidCredentials))
		})

		It("should not reveal whether the email exists", func() {
			_, err := service.Authenticate(ctx, auth.LoginDTO{Email: "ghost@example.com", Password: password})
			Expect(err).To(Equal(errors.ErrInvalidCredentials))
		})

		It("should refuse inactive users", func() {
			_, err := service.Authenticate(ctx, auth.LoginDTO{Email: "former@example.com", Password: password})
			Expect(err).To(Equal(errors.ErrUserInactive))
		})

		It("should validate the request", func() {
			_, err := service.Authenticate(ctx, auth.LoginDTO{Email: "not-an-email"})
			Expect(errors.IsType(err, errors.ErrorTypeValidation)).To(BeTrue())
		})
	})

	Describe("Tokens", func() {
		var tokens auth.AuthTokens

		BeforeEach(func() {
			var err error
			tokens, err = service.Authenticate(ctx, auth.LoginDTO{Email: "staff@example.com", Password: password})
			Expect(err).NotTo(HaveOccurred())
		})

		It("should rotate both tokens on refresh", func() {
			now = now.Add(time.Minute)
			refreshed, err := service.RefreshTokens(ctx, tokens.RefreshToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(refreshed.AccessToken).NotTo(Equal(tokens.AccessToken))
		})

		It("should not accept an access token as a refresh token", func() {
			_, err := service.RefreshTokens(ctx, tokens.AccessToken)
			Expect(err).To(Equal(errors.ErrInvalidToken))
		})

		It("should not accept a refresh token as an access token", func() {
			_, err := service.ValidateAccessToken(tokens.RefreshToken)
			Expect(err).To(Equal(errors.ErrInvalidToken))
		})

		It("should report expiry", func() {
			now = now.Add(16 * time.Minute)
			_, err := service.ValidateAccessToken(tokens.AccessToken)
			Expect(err).To(Equal(errors.ErrTokenExpired))
		})

		It("should reject tokens signed with another secret", func() {
			other := auth.NewJWTTokenGenerator("another-access-secret-0123456789ab", refreshSecret, time.Minute, time.Hour)
			forged, err := other.GenerateAccessToken(staffID, "staff@example.com")
			Expect(err).NotTo(HaveOccurred())

			_, err = service.ValidateAccessToken(forged)
			Expect(err).To(Equal(errors.ErrInvalidToken))
		})
	})

	Describe("GetUserWithPermissions", func() {
		It("should load permissions sorted by name", func() {
			u, err := service.GetUserWithPermissions(ctx, staffID)
			Expect(err).NotTo(HaveOccurred())
			Expect(u.Permissions).To(Equal([]string{auth.PermissionManageOrders, auth.PermissionRecordPayments}))
			Expect(u.Allows(auth.PermissionRunReminders)).To(BeFalse())
		})

		It("should treat admin as every permission", func() {
			u := &auth.User{Permissions: []string{auth.PermissionAdmin}}
			Expect(u.Allows(auth.PermissionRunReminders)).To(BeTrue())
		})

		It("should return not found for unknown ids", func() {
			_, err := service.GetUserWithPermissions(ctx, 9999)
			Expect(errors.IsType(err, errors.ErrorTypeNotFound)).To(BeTrue())
		})
	})
})
