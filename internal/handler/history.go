package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"reqbench/internal/model"
	"reqbench/internal/service"
)

// HistoryHandler serves the request-history endpoints.
type HistoryHandler struct {
	store  *service.Persistence
	logger *slog.Logger
}

// NewHistoryHandler creates a HistoryHandler.
func NewHistoryHandler(store *service.Persistence, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{
		store:  store,
		logger: logger.With("component", "history_handler"),
	}
}

// Save stores one history item for the caller.
func (h *HistoryHandler) Save(c echo.Context) error {
	var item model.HistoryItem
	if err := c.Bind(&item); err != nil {
		return writeError(c, http.StatusBadRequest, "invalid request body")
	}
	if item.URL == "" {
		return writeError(c, http.StatusBadRequest, "url is required")
	}
	item.UserID = userID(c)

	saved, err := h.store.SaveHistory(c.Request().Context(), &item)
	if err != nil {
		return mapStorageError(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, saved)
}

// List returns the caller's history, newest first, bounded by ?limit=.
func (h *HistoryHandler) List(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	items, err := h.store.ListHistory(c.Request().Context(), userID(c), limit)
	if err != nil {
		return mapStorageError(c, h.logger, err)
	}
	if items == nil {
		items = []*model.HistoryItem{}
	}
	return c.JSON(http.StatusOK, items)
}

// Delete removes one history item. Deletion is idempotent: absent or
// foreign-owned items still return success.
func (h *HistoryHandler) Delete(c echo.Context) error {
	id := c.Param("id")

	if err := h.store.DeleteHistory(c.Request().Context(), id, userID(c)); err != nil {
		return mapStorageError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"deleted": id})
}
