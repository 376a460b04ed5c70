// routes.go - Route registration helpers
package api

import (
	"github.com/labstack/echo/v4"
)

// SessionMarkerHeader carries the browser session marker. When it changes,
// all persisted work items from the previous session are discarded before
// the request proceeds.
const SessionMarkerHeader = "X-Session-Marker"

// SessionMiddleware checks the session marker on every workspace request.
func SessionMiddleware(h *Handler) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if marker := c.Request().Header.Get(SessionMarkerHeader); marker != "" {
				h.orch.EnsureSession(marker)
			}
			return next(c)
		}
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.HTTPErrorHandler = ErrorHandler

	// Health check
	e.GET("/api/health", h.HandleHealth)

	// Workspace: upload, analyze, search and record list
	ws := e.Group("/api/workspace", SessionMiddleware(h))
	ws.POST("/upload", h.HandleSubmitFile)
	ws.POST("/analyze", h.HandleRequestAnalysis)
	ws.GET("/search", h.HandleSearch)
	ws.GET("/items", h.HandleListItems)
	ws.GET("/items/:id/status", h.HandleItemStatus)
	ws.GET("/items/:id/scores/msgpack", h.HandleItemScoresMsgpack)
	ws.GET("/pending", h.HandlePendingItem)
	ws.POST("/active", h.HandleSetActive)
	ws.POST("/reset", h.HandleReset)

	// Spooled uploads
	files := e.Group("/api/files", SessionMiddleware(h))
	files.GET("/recent", h.HandleRecentFiles)
	files.POST("/:id/resubmit", h.HandleResubmitFile)

	// Export proxy and account state
	e.POST("/api/export/:format", h.HandleExport)
	e.GET("/api/quota/balance", h.HandleQuotaBalance)
}
