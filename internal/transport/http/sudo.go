package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type sudoAuthRequest struct {
	Password string `json:"password"`
}

// SudoAuth verifies the submitted credential and opens a session.
func (h *Handler) SudoAuth(c echo.Context) error {
	var req sudoAuthRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, "invalid request body")
	}
	if req.Password == "" {
		return fail(c, "Password required")
	}

	if err := h.service.Session().Verify(req.Password); err != nil {
		return fail(c, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "Password verified successfully",
		"session": h.service.Session().Info(),
	})
}

// GetSudoSession returns the session status without refreshing its window.
func (h *Handler) GetSudoSession(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"session":        h.service.Session().Info(),
		"sudo_available": h.service.Session().Available(),
	})
}

// ClearSudoSession wipes the stored credential.
func (h *Handler) ClearSudoSession(c echo.Context) error {
	h.service.Session().Clear()
	return ok(c, "Session cleared")
}
