package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/Ibrahim99575/authentication-system/internal/auth"
	"github.com/Ibrahim99575/authentication-system/internal/handlers"
	"github.com/Ibrahim99575/authentication-system/internal/middleware"
	pkghttp "github.com/Ibrahim99575/authentication-system/pkg/http"
)

// RegisterRoutes registers all application routes under /api/v1
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	biometricHandler *handlers.BiometricHandler,
	userHandler *handlers.UserHandler,
	tokenManager *auth.TokenManager,
	users auth.UserFetcher,
	ipConfig *pkghttp.IPConfig,
) {
	// Rate limiting config for unauthenticated auth endpoints
	rateLimitConfig := middleware.DefaultAuthRateLimit()
	userRateLimit := middleware.DefaultAuthenticatedRateLimit()

	router.Route("/api/v1", func(r chi.Router) {
		// Public routes - no authentication required. Each route gets its own
		// per-IP bucket.
		r.With(middleware.RateLimitByIP(rateLimitConfig, ipConfig)).Post("/auth/register", authHandler.Register)
		r.With(middleware.RateLimitByIP(rateLimitConfig, ipConfig)).Post("/auth/register-biometric", authHandler.RegisterBiometric)
		r.With(middleware.RateLimitByIP(rateLimitConfig, ipConfig)).Post("/auth/login", authHandler.Login)
		r.With(middleware.RateLimitByIP(rateLimitConfig, ipConfig)).Post("/auth/login-biometric", authHandler.LoginBiometric)
		r.With(middleware.RateLimitByIP(rateLimitConfig, ipConfig)).Post("/auth/refresh", authHandler.RefreshToken)
		r.With(middleware.RateLimitByIP(rateLimitConfig, ipConfig)).Post("/auth/password-reset/request", authHandler.RequestPasswordReset)
		r.With(middleware.RateLimitByIP(rateLimitConfig, ipConfig)).Post("/auth/password-reset/confirm", authHandler.ConfirmPasswordReset)

		// Token introspection and logout read the bearer token themselves,
		// so an expired or malformed token still gets a clean 401 body
		r.Get("/auth/verify", authHandler.VerifyToken)
		r.Post("/auth/logout", authHandler.Logout)

		// Protected routes - authentication required
		r.Group(func(r chi.Router) {
			r.Use(auth.AuthMiddleware(tokenManager))
			r.Use(auth.RequireActiveUser(users))

			// Biometric pipeline endpoints carry the tightest per-user budget
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitByUserID(userRateLimit, "biometric", ipConfig))
				r.Post("/biometric/enroll", biometricHandler.Enroll)
				r.Post("/biometric/verify", biometricHandler.Verify)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitByUserID(userRateLimit, "read", ipConfig))
				r.Get("/biometric/status", biometricHandler.GetStatus)
				r.Get("/biometric/templates", biometricHandler.ListTemplates)
				r.Get("/users/profile", userHandler.GetProfile)
				r.Get("/users/stats", userHandler.GetStats)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitByUserID(userRateLimit, "write", ipConfig))
				r.Delete("/biometric/templates/{id}", biometricHandler.DeleteTemplate)
				r.Post("/biometric/templates/{id}/set-primary", biometricHandler.SetPrimary)
				r.Put("/users/profile", userHandler.UpdateProfile)
				r.Delete("/users/profile", userHandler.Delete)
				r.Post("/users/change-password", userHandler.ChangePassword)
				r.Post("/users/deactivate", userHandler.Deactivate)
			})
		})
	})
}
