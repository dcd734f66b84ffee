package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"reqbench/internal/config"
	"reqbench/internal/metrics"
	"reqbench/internal/relay"
)

func TestRegisterRoutes_Wiring(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer target.Close()

	cfg := &config.Config{
		Relay: config.RelayConfig{
			TimeoutSeconds:   10,
			IdleConnections:  10,
			MaxResponseBytes: 1 << 20,
		},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
	logger := discardLogger()
	m := metrics.New()
	store := testStore(t)

	e := echo.New()
	RegisterRoutes(e, cfg, m,
		NewRelayHandler(relay.New(cfg, logger, m), logger),
		NewHistoryHandler(store, logger),
		NewCollectionHandler(store, logger),
		NewAdminHandler(store, logger),
		NewHealthHandler(store, "test"),
	)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"GET /healthz", http.MethodGet, "/healthz", "", http.StatusOK},
		{"GET /status", http.MethodGet, "/status", "", http.StatusOK},
		{"POST /api/proxy", http.MethodPost, "/api/proxy", `{"url":"` + target.URL + `"}`, http.StatusOK},
		{"POST /api/history", http.MethodPost, "/api/history", `{"url":"https://x","method":"GET"}`, http.StatusCreated},
		{"GET /api/history", http.MethodGet, "/api/history", "", http.StatusOK},
		{"DELETE /api/history/:id", http.MethodDelete, "/api/history/some-id", "", http.StatusOK},
		{"POST /api/collections", http.MethodPost, "/api/collections", `{"name":"apis"}`, http.StatusCreated},
		{"GET /api/collections", http.MethodGet, "/api/collections", "", http.StatusOK},
		{"DELETE /api/collections/:id", http.MethodDelete, "/api/collections/some-id", "", http.StatusOK},
		{"POST requests under missing collection", http.MethodPost, "/api/collections/missing/requests", `{"url":"https://x"}`, http.StatusNotFound},
		{"GET requests of collection", http.MethodGet, "/api/collections/missing/requests", "", http.StatusOK},
		{"GET /api/stats", http.MethodGet, "/api/stats", "", http.StatusOK},
		{"DELETE /api/data", http.MethodDelete, "/api/data", "", http.StatusOK},
		{"GET /metrics", http.MethodGet, "/metrics", "", http.StatusOK},
		{"GET /unknown returns 404", http.MethodGet, "/unknown", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req *http.Request
			if tt.body != "" {
				req = httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
				req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			} else {
				req = httptest.NewRequest(tt.method, tt.path, http.NoBody)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRegisterRoutes_MetricsDisabled(t *testing.T) {
	cfg := &config.Config{
		Relay: config.RelayConfig{TimeoutSeconds: 10, IdleConnections: 10, MaxResponseBytes: 1 << 20},
	}
	logger := discardLogger()
	m := metrics.New()
	store := testStore(t)

	e := echo.New()
	RegisterRoutes(e, cfg, m,
		NewRelayHandler(relay.New(cfg, logger, m), logger),
		NewHistoryHandler(store, logger),
		NewCollectionHandler(store, logger),
		NewAdminHandler(store, logger),
		NewHealthHandler(store, "test"),
	)

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when metrics disabled", rec.Code)
	}
}
