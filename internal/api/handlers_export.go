// handlers_export.go - Export proxy and quota balance handlers
package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/score-analyzer/webapp/internal/models"
)

type exportRequest struct {
	ItemID string `json:"item_id"`
}

// HandleExport renders a committed item's scores through the backend's
// export endpoint and streams the document back as a download.
func (h *Handler) HandleExport(c echo.Context) error {
	format := c.Param("format")
	if format != "xlsx" && format != "docx" {
		return NewValidationError(fmt.Sprintf("unsupported export format %q", format))
	}

	var req exportRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.ItemID == "" {
		return NewValidationError("item_id is required")
	}

	item, ok := h.store.Item(req.ItemID)
	if !ok {
		return NewNotFoundError("work item", req.ItemID)
	}
	if item.Stage != models.StageComplete {
		return NewStateViolationError("item is not complete yet")
	}

	blob, contentType, err := h.exporter.Export(c.Request().Context(), format, item.Scores, item.Filename)
	if err != nil {
		return NewUpstreamError(err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="%s-analysis.%s"`, baseName(item.Filename), format))
	return c.Blob(http.StatusOK, contentType, blob)
}

// HandleQuotaBalance returns the account's last-known quota state,
// refreshing it from the backend on first use.
func (h *Handler) HandleQuotaBalance(c echo.Context) error {
	balance, loaded := h.account.Balance()
	if !loaded {
		if err := h.account.Refresh(c.Request().Context()); err != nil {
			return NewUpstreamError(err)
		}
		balance, _ = h.account.Balance()
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"balance": balance,
		"is_vip":  h.account.VIP(),
	})
}

// baseName strips the extension from a display filename.
func baseName(filename string) string {
	if idx := strings.LastIndex(filename, "."); idx > 0 {
		return filename[:idx]
	}
	return filename
}
