// handlers.go - Handler wiring and health check
package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/score-analyzer/webapp/internal/account"
	"github.com/score-analyzer/webapp/internal/models"
	"github.com/score-analyzer/webapp/internal/orchestrator"
	"github.com/score-analyzer/webapp/internal/storage"
	"github.com/score-analyzer/webapp/internal/workspace"
)

// Exporter is the slice of the backend client the export proxy needs.
type Exporter interface {
	Export(ctx context.Context, format string, scores []models.StudentScore, originalFilename string) ([]byte, string, error)
}

// Handler handles API requests.
type Handler struct {
	orch        *orchestrator.Orchestrator
	store       *workspace.Store
	spool       storage.Store
	account     *account.Manager
	exporter    Exporter
	recentLimit int
	version     string
}

// NewHandler creates a new API handler.
func NewHandler(orch *orchestrator.Orchestrator, store *workspace.Store, spool storage.Store, acct *account.Manager, exporter Exporter, recentLimit int, version string) *Handler {
	if recentLimit <= 0 {
		recentLimit = 20
	}
	return &Handler{
		orch:        orch,
		store:       store,
		spool:       spool,
		account:     acct,
		exporter:    exporter,
		recentLimit: recentLimit,
		version:     version,
	}
}

// HandleHealth returns server health status
func (h *Handler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": h.version,
	})
}
