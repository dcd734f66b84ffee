package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"reqbench/internal/service"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	store   *service.Persistence
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(store *service.Persistence, v Version) *HealthHandler {
	return &HealthHandler{store: store, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status reports the build version and which storage backend was bound at
// startup.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": string(h.version),
		"storage": h.store.Backend(),
	})
}
