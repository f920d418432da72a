package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/otpgate/otpgate/internal/auth"
	"github.com/otpgate/otpgate/internal/handlers"
	"github.com/otpgate/otpgate/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	tokenManager *auth.TokenManager,
	rateLimitConfig middleware.RateLimitConfig,
) {
	// Public routes - no authentication required. The per-IP ceiling here
	// is a blunt guard; the per-email and per-account windows are enforced
	// in the service layer.
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(rateLimitConfig))

		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/verify-registration", authHandler.VerifyRegistration)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/verify-login", authHandler.VerifyLogin)
		r.Post("/auth/resend-otp", authHandler.ResendOTP)
	})

	// Protected routes - valid session token required
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokenManager))

		r.Get("/auth/profile", authHandler.GetProfile)
		r.Get("/auth/verify-token", authHandler.VerifyToken)
	})
}
