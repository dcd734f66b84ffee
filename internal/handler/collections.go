package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"reqbench/internal/model"
	"reqbench/internal/service"
)

// CollectionHandler serves the collection and collection-request endpoints.
type CollectionHandler struct {
	store  *service.Persistence
	logger *slog.Logger
}

// NewCollectionHandler creates a CollectionHandler.
func NewCollectionHandler(store *service.Persistence, logger *slog.Logger) *CollectionHandler {
	return &CollectionHandler{
		store:  store,
		logger: logger.With("component", "collection_handler"),
	}
}

type createCollectionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Create stores a named collection for the caller. Empty or whitespace-only
// names are rejected with no side effects.
func (h *CollectionHandler) Create(c echo.Context) error {
	var req createCollectionRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, http.StatusBadRequest, "invalid request body")
	}

	col, err := h.store.CreateCollection(c.Request().Context(), req.Name, req.Description, userID(c))
	if err != nil {
		return mapStorageError(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, col)
}

// List returns the caller's collections, newest first.
func (h *CollectionHandler) List(c echo.Context) error {
	cols, err := h.store.ListCollections(c.Request().Context(), userID(c))
	if err != nil {
		return mapStorageError(c, h.logger, err)
	}
	if cols == nil {
		cols = []*model.Collection{}
	}
	return c.JSON(http.StatusOK, cols)
}

// Delete removes a collection and every request it owns. Idempotent.
func (h *CollectionHandler) Delete(c echo.Context) error {
	id := c.Param("id")

	if err := h.store.DeleteCollection(c.Request().Context(), id, userID(c)); err != nil {
		return mapStorageError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"deleted": id})
}

// AddRequest stores a request under an existing collection; a missing
// collection is a 404.
func (h *CollectionHandler) AddRequest(c echo.Context) error {
	var req model.CollectionRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, http.StatusBadRequest, "invalid request body")
	}
	if req.URL == "" {
		return writeError(c, http.StatusBadRequest, "url is required")
	}

	added, err := h.store.AddCollectionRequest(c.Request().Context(), c.Param("id"), &req)
	if err != nil {
		return mapStorageError(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, added)
}

// ListRequests returns a collection's requests in insertion order.
func (h *CollectionHandler) ListRequests(c echo.Context) error {
	reqs, err := h.store.ListCollectionRequests(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapStorageError(c, h.logger, err)
	}
	if reqs == nil {
		reqs = []*model.CollectionRequest{}
	}
	return c.JSON(http.StatusOK, reqs)
}
