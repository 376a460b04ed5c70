// handlers_workspace.go - Upload, analyze and search operation handlers
package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/score-analyzer/webapp/internal/orchestrator"
)

// HandleSubmitFile accepts a spreadsheet as multipart form data, spools it
// locally and drives it through the backend parse step. The response is the
// pending work item; it is not yet part of the record list.
func (h *Handler) HandleSubmitFile(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	info, err := h.spool.Save(file.Filename, src)
	if err != nil {
		return NewInternalError("failed to spool file", err)
	}

	spooled, err := h.spool.Open(info.ID)
	if err != nil {
		return NewInternalError("failed to read spooled file", err)
	}
	defer spooled.Close()

	item, err := h.orch.SubmitFile(c.Request().Context(), file.Filename, spooled)
	if err != nil {
		return mapSubmitError(err)
	}

	return c.JSON(http.StatusOK, item)
}

// HandleResubmitFile re-runs the parse step on a previously spooled upload.
func (h *Handler) HandleResubmitFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id is required")
	}

	info, err := h.spool.Get(id)
	if err != nil {
		return NewNotFoundError("file", id)
	}

	spooled, err := h.spool.Open(id)
	if err != nil {
		return NewInternalError("failed to read spooled file", err)
	}
	defer spooled.Close()

	item, err := h.orch.SubmitFile(c.Request().Context(), info.Name, spooled)
	if err != nil {
		return mapSubmitError(err)
	}

	return c.JSON(http.StatusOK, item)
}

type analyzeRequest struct {
	OneShotText string `json:"one_shot_text"`
}

// HandleRequestAnalysis commits the pending item and runs the AI analyze
// step on it.
func (h *Handler) HandleRequestAnalysis(c echo.Context) error {
	var req analyzeRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	item, err := h.orch.RequestAnalysis(c.Request().Context(), req.OneShotText)
	switch {
	case errors.Is(err, orchestrator.ErrNothingToAnalyze):
		return NewStateViolationError("no parsed file is ready to analyze")
	case errors.Is(err, orchestrator.ErrAnalysisInFlight):
		return NewStateViolationError("an analysis is already in progress")
	case errors.Is(err, orchestrator.ErrSuperseded):
		return NewStateViolationError("the analysis was superseded by a session reset")
	case err != nil:
		return NewUpstreamError(err)
	}

	return c.JSON(http.StatusOK, item)
}

// HandleSearch filters the active item's scores by student name.
func (h *Handler) HandleSearch(c echo.Context) error {
	result, err := h.orch.Search(c.QueryParam("student"))
	if errors.Is(err, orchestrator.ErrNotReady) {
		return NewStateViolationError("no completed analysis is active")
	}
	if err != nil {
		return NewInternalError("search failed", err)
	}

	return c.JSON(http.StatusOK, result)
}

// HandleListItems returns the committed record list in commit order.
func (h *Handler) HandleListItems(c echo.Context) error {
	return c.JSON(http.StatusOK, h.store.Items())
}

// HandlePendingItem returns the parsed-but-unanalyzed item, if any.
func (h *Handler) HandlePendingItem(c echo.Context) error {
	item, ok := h.store.Pending()
	if !ok {
		return NewNotFoundError("pending item", "none")
	}
	return c.JSON(http.StatusOK, item)
}

// HandleItemStatus returns one item's stage and simulated progress. Poll
// targets skip request logging, see cmd/server.
func (h *Handler) HandleItemStatus(c echo.Context) error {
	id := c.Param("id")
	item, ok := h.store.Item(id)
	if !ok {
		return NewNotFoundError("work item", id)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":            item.ID,
		"stage":         item.Stage,
		"progress":      item.Progress,
		"statusMessage": item.StatusMessage,
	})
}

// HandleItemScoresMsgpack returns an item's score rows msgpack-encoded, for
// bulk consumers that want to skip JSON overhead.
func (h *Handler) HandleItemScoresMsgpack(c echo.Context) error {
	id := c.Param("id")
	item, ok := h.store.Item(id)
	if !ok {
		return NewNotFoundError("work item", id)
	}

	data, err := msgpack.Marshal(item.Scores)
	if err != nil {
		return NewInternalError("failed to encode scores", err)
	}

	return c.Blob(http.StatusOK, "application/x-msgpack", data)
}

type setActiveRequest struct {
	ID string `json:"id"`
}

// HandleSetActive selects a committed item as the one search operates on.
func (h *Handler) HandleSetActive(c echo.Context) error {
	var req setActiveRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.ID == "" {
		return NewValidationError("id is required")
	}

	if !h.store.SetActive(req.ID) {
		return NewNotFoundError("work item", req.ID)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleReset discards the whole workspace within the current session.
func (h *Handler) HandleReset(c echo.Context) error {
	h.orch.Reset()
	return c.NoContent(http.StatusNoContent)
}

// HandleRecentFiles lists recently spooled uploads available for re-submit.
func (h *Handler) HandleRecentFiles(c echo.Context) error {
	files, err := h.spool.List(h.recentLimit)
	if err != nil {
		return NewInternalError("failed to list files", err)
	}
	return c.JSON(http.StatusOK, files)
}

// mapSubmitError converts orchestrator submit failures to API errors.
func mapSubmitError(err error) error {
	var vErr *orchestrator.ValidationError
	if errors.As(err, &vErr) {
		return NewValidationError(vErr.Error())
	}
	if errors.Is(err, orchestrator.ErrSuperseded) {
		return NewStateViolationError("upload superseded by a newer file")
	}
	return NewUpstreamError(err)
}
