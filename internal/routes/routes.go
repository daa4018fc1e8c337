package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/opsdesk/opsdesk/internal/auth"
	"github.com/opsdesk/opsdesk/internal/handlers"
	"github.com/opsdesk/opsdesk/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	adminHandler *handlers.AdminHandler,
	sessions auth.SessionValidator,
	edgeBackstop middleware.RateLimitConfig,
) {
	perUserLimits := middleware.DefaultAuthenticatedRateLimit()

	// Public routes - no authentication required. The edge limiter in
	// front of login sheds raw floods only; it is configured well above
	// the login rate limit, so the ordered checks inside the auth
	// service (IP block, then rate limit, then credentials) decide
	// every response a client actually sees.
	router.With(middleware.RateLimitByIP(edgeBackstop)).Post("/auth/login", authHandler.Login)

	// Logout works with or without a live session; it is idempotent.
	router.Post("/auth/logout", authHandler.Logout)

	// Protected routes - a valid session required
	router.Group(func(r chi.Router) {
		r.Use(auth.SessionMiddleware(sessions))

		r.With(middleware.RateLimitByUserID(perUserLimits, "read")).Get("/auth/me", authHandler.Me)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole("admin"))
			r.Use(middleware.RateLimitByUserID(perUserLimits, "admin"))

			r.Get("/admin/blocked-ips", adminHandler.ListBlockedIPs)
			r.Delete("/admin/blocked-ips/{id}", adminHandler.UnblockByID)
			r.Delete("/admin/blocked-ips/ip/{ip}", adminHandler.UnblockByIP)

			r.Post("/admin/users/{id}/lock", adminHandler.LockUser)
			r.Post("/admin/users/{id}/unlock", adminHandler.UnlockUser)
		})
	})
}
