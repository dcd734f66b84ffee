package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reqbench/internal/config"
	"reqbench/internal/metrics"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, m *metrics.Metrics,
	relay *RelayHandler, history *HistoryHandler, collections *CollectionHandler,
	admin *AdminHandler, health *HealthHandler) {

	e.GET("/healthz", health.Healthz)
	e.GET("/status", health.Status)

	api := e.Group("/api")
	api.POST("/proxy", relay.Proxy)

	api.POST("/history", history.Save)
	api.GET("/history", history.List)
	api.DELETE("/history/:id", history.Delete)

	api.POST("/collections", collections.Create)
	api.GET("/collections", collections.List)
	api.DELETE("/collections/:id", collections.Delete)
	api.POST("/collections/:id/requests", collections.AddRequest)
	api.GET("/collections/:id/requests", collections.ListRequests)

	api.DELETE("/data", admin.Clear)
	api.GET("/stats", admin.Stats)

	if cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(
			promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}
}
