// Package handler exposes the REST boundary: request relaying, history,
// collections and service status.
package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"reqbench/internal/storage"
)

// userHeader carries the caller-supplied user identifier. Authentication is
// handled outside this service; the identifier is trusted as given.
const userHeader = "X-User-ID"

func userID(c echo.Context) string {
	return c.Request().Header.Get(userHeader)
}

func writeError(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

// mapStorageError translates the storage error taxonomy into HTTP responses:
// validation failures are client errors, missing parents are 404, anything
// else is a server-side storage failure (logged, never swallowed).
func mapStorageError(c echo.Context, logger *slog.Logger, err error) error {
	var verr *storage.ValidationError
	if errors.As(err, &verr) {
		return writeError(c, http.StatusBadRequest, verr.Error())
	}
	if errors.Is(err, storage.ErrNotFound) {
		return writeError(c, http.StatusNotFound, "not found")
	}

	logger.Error("storage failure",
		"err", err,
		"path", c.Request().URL.Path,
		"user_id", userID(c),
	)
	return writeError(c, http.StatusInternalServerError, "storage failure")
}
