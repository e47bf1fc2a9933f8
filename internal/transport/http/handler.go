// Package http exposes the service's command and query surface over echo.
package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keti-tsn/trafficd/internal/service"
)

// Handler serves the REST API.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new API handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

// RegisterRoutes registers all API routes.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/status", h.GetStatus)

	e.POST("/api/tools/:tool/start", h.StartTool)
	e.POST("/api/tools/:tool/stop", h.StopTool)
	e.GET("/api/tools/:tool/stats", h.GetToolStats)
	e.GET("/api/tools/:tool/status", h.GetToolStatus)

	e.POST("/api/sudo/auth", h.SudoAuth)
	e.GET("/api/sudo/session", h.GetSudoSession)
	e.POST("/api/sudo/clear", h.ClearSudoSession)

	e.GET("/api/interfaces", h.GetInterfaces)
	e.GET("/api/interfaces/:name", h.GetInterface)
	e.POST("/api/interfaces/:name/state", h.SetInterfaceState)
}

// GetStatus returns every tool's run state plus the sudo session info.
func (h *Handler) GetStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.Status())
}

// commandResult is the uniform command response shape.
type commandResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func ok(c echo.Context, message string) error {
	return c.JSON(http.StatusOK, commandResult{Success: true, Message: message})
}

func fail(c echo.Context, message string) error {
	// Command failures are carried in the body; the transport status stays
	// 200 as the UI keys off the success flag.
	return c.JSON(http.StatusOK, commandResult{Success: false, Message: message})
}
