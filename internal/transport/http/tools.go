package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keti-tsn/trafficd/internal/domain"
	"github.com/keti-tsn/trafficd/internal/service"
)

// StartTool starts a named tool with the JSON parameter payload.
func (h *Handler) StartTool(c echo.Context) error {
	tool := domain.Tool(c.Param("tool"))

	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return fail(c, "failed to read request body")
	}

	if err := h.service.StartTool(tool, payload); err != nil {
		if errors.Is(err, service.ErrUnknownTool) {
			return c.JSON(http.StatusNotFound, commandResult{Success: false, Message: err.Error()})
		}
		return fail(c, err.Error())
	}
	return ok(c, string(tool)+" started")
}

// StopTool stops a named tool; stopping an idle tool still succeeds.
func (h *Handler) StopTool(c echo.Context) error {
	tool := domain.Tool(c.Param("tool"))
	if err := h.service.StopTool(tool); err != nil {
		return c.JSON(http.StatusNotFound, commandResult{Success: false, Message: err.Error()})
	}
	return ok(c, string(tool)+" stopped")
}

// GetToolStats returns the latest stats snapshot of one tool.
func (h *Handler) GetToolStats(c echo.Context) error {
	tool := domain.Tool(c.Param("tool"))
	stats, err := h.service.ToolStats(tool)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"stats": stats})
}

// GetToolStatus returns a tool's running flag and binary availability.
func (h *Handler) GetToolStatus(c echo.Context) error {
	tool := domain.Tool(c.Param("tool"))
	status, err := h.service.ToolStatus(tool)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	available, _ := h.service.ToolAvailable(tool)
	return c.JSON(http.StatusOK, map[string]any{
		"running":   status.Running,
		"available": available,
	})
}
