package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"reqbench/internal/model"
	"reqbench/internal/service"
)

// AdminHandler serves the clear and stats endpoints.
type AdminHandler struct {
	store  *service.Persistence
	logger *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(store *service.Persistence, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		store:  store,
		logger: logger.With("component", "admin_handler"),
	}
}

// Clear removes the caller's data and reports removed counts. Passing
// ?all=true wipes every user's data; without it an absent user identifier
// is scoped to the anonymous user so a bare DELETE cannot wipe the store.
func (h *AdminHandler) Clear(c echo.Context) error {
	scope := userID(c)
	if c.QueryParam("all") == "true" {
		scope = ""
	} else if scope == "" {
		scope = model.AnonymousUser
	}

	counts, err := h.store.Clear(c.Request().Context(), scope)
	if err != nil {
		return mapStorageError(c, h.logger, err)
	}

	h.logger.Info("storage cleared",
		"user_id", scope,
		"history", counts.History,
		"collections", counts.Collections,
		"requests", counts.Requests,
	)
	return c.JSON(http.StatusOK, counts)
}

// Stats reports entity counts: the caller's own when X-User-ID is set,
// global totals otherwise.
func (h *AdminHandler) Stats(c echo.Context) error {
	counts, err := h.store.Stats(c.Request().Context(), userID(c))
	if err != nil {
		return mapStorageError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, counts)
}
