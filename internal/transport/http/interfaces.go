package http

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// GetInterfaces lists network interfaces; ?active=true filters to up ones.
func (h *Handler) GetInterfaces(c echo.Context) error {
	mgr := h.service.Interfaces()

	var list any
	var err error
	var count int
	if c.QueryParam("active") == "true" {
		ifaces, e := mgr.Active()
		list, err, count = ifaces, e, len(ifaces)
	} else {
		ifaces, e := mgr.List()
		list, err, count = ifaces, e, len(ifaces)
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"interfaces": list,
		"count":      count,
	})
}

// GetInterface returns details for one interface.
func (h *Handler) GetInterface(c echo.Context) error {
	name := c.Param("name")
	ifc, err := h.service.Interfaces().Get(name)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if ifc == nil {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": fmt.Sprintf("Interface %s not found", name),
		})
	}
	return c.JSON(http.StatusOK, ifc)
}

type interfaceStateRequest struct {
	State string `json:"state"`
}

// SetInterfaceState brings an interface up or down through the sudo session.
func (h *Handler) SetInterfaceState(c echo.Context) error {
	name := c.Param("name")
	var req interfaceStateRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, "invalid request body")
	}
	if req.State == "" {
		req.State = "up"
	}

	if err := h.service.Interfaces().SetState(name, req.State); err != nil {
		return fail(c, fmt.Sprintf("Failed to set interface %s to %s: %v", name, req.State, err))
	}
	return ok(c, fmt.Sprintf("Interface %s set to %s", name, req.State))
}
