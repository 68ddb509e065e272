package auth

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/questlog-app/questlog/internal/middleware"
)

// RegisterRoutes sets up all auth-related routes on the given Echo instance.
// Register and login are public; the middleware is exported separately for
// other plugins to use on their route groups.
//
// Credential endpoints are rate-limited to slow brute-force and credential
// stuffing: 10 attempts per IP per minute for login, 5 for register.
func RegisterRoutes(e *echo.Echo, h *Handler, svc AuthService) {
	e.POST("/register", h.Register, middleware.RateLimit(5, time.Minute))
	e.POST("/login", h.Login, middleware.RateLimit(10, time.Minute))
	e.POST("/logout", h.Logout)

	me := e.Group("/me", RequireAuth(svc))
	me.GET("", h.Me)
	me.PUT("", h.UpdateProfile)
	me.PUT("/password", h.ChangePassword)
}
