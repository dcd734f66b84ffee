package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"reqbench/internal/model"
	"reqbench/internal/relay"
)

// RelayHandler forwards caller-described requests to their targets.
type RelayHandler struct {
	relay  *relay.Relay
	logger *slog.Logger
}

// NewRelayHandler creates a RelayHandler.
func NewRelayHandler(r *relay.Relay, logger *slog.Logger) *RelayHandler {
	return &RelayHandler{
		relay:  r,
		logger: logger.With("component", "relay_handler"),
	}
}

// Proxy relays the described request and returns the result envelope.
// Malformed target URLs are client errors; target-side failures arrive
// inside the envelope with status 500 and are still a 200 here, keeping
// "the target call failed" distinct from "the relay is broken".
func (h *RelayHandler) Proxy(c echo.Context) error {
	var spec model.RequestSpec
	if err := c.Bind(&spec); err != nil {
		return writeError(c, http.StatusBadRequest, "invalid request body")
	}
	if spec.URL == "" {
		return writeError(c, http.StatusBadRequest, "url is required")
	}

	result, err := h.relay.Do(c.Request().Context(), &spec)
	if err != nil {
		var rerr *relay.Error
		if errors.As(err, &rerr) && rerr.Kind == relay.KindInvalidURL {
			return writeError(c, http.StatusBadRequest, "invalid target url")
		}
		h.logger.Error("relay error", "err", err, "url", spec.URL)
		return writeError(c, http.StatusInternalServerError, "relay failed")
	}

	return c.JSON(http.StatusOK, result)
}
