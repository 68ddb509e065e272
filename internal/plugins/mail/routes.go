package mail

import (
	"github.com/labstack/echo/v4"

	"github.com/questlog-app/questlog/internal/plugins/auth"
)

// RegisterRoutes sets up SMTP settings routes. Site admins only; regular
// users never see whether email is configured.
func RegisterRoutes(e *echo.Echo, h *Handler, authSvc auth.AuthService) {
	g := e.Group("/admin/smtp", auth.RequireAuth(authSvc), auth.RequireAdmin())
	g.GET("", h.Show)
	g.PUT("", h.Update)
	g.POST("/test", h.Test)
}
