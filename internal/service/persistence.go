// Package service implements the persistence facade over the selected
// storage backend.
package service

import (
	"context"
	"errors"
	"log/slog"

	"reqbench/internal/config"
	"reqbench/internal/metrics"
	"reqbench/internal/model"
	"reqbench/internal/storage"
)

// Persistence is the single entry point for all entity storage. Exactly one
// backend is selected when the facade is constructed and the binding never
// changes for the process lifetime; there is no runtime failover. Beyond
// delegation the facade only defaults absent user identifiers and derives
// default request names.
type Persistence struct {
	backend storage.Backend
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewPersistence selects the backend once: the durable SQLite store when a
// database path is configured and the database opens, otherwise the
// in-process ephemeral store. An unopenable database falls back to the
// ephemeral store with a warning rather than failing startup.
// The metrics parameter is optional; pass nil to disable storage metrics.
func NewPersistence(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *Persistence {
	logger = logger.With("component", "persistence")

	var backend storage.Backend
	if cfg.Storage.Path != "" {
		db, err := storage.OpenSQLite(cfg.Storage.Path)
		if err != nil {
			logger.Warn("durable store unavailable, falling back to in-memory storage",
				"path", cfg.Storage.Path,
				"err", err,
			)
			backend = storage.NewMemory()
		} else {
			backend = db
		}
	} else {
		backend = storage.NewMemory()
	}

	logger.Info("storage backend selected", "backend", backend.Kind())

	return &Persistence{
		backend: backend,
		logger:  logger,
		metrics: m,
	}
}

// NewPersistenceWithBackend binds the facade to an already-constructed
// backend. This is intended for tests.
func NewPersistenceWithBackend(b storage.Backend, logger *slog.Logger) *Persistence {
	return &Persistence{
		backend: b,
		logger:  logger.With("component", "persistence"),
	}
}

// Backend reports the active backend kind ("sqlite" or "memory").
func (p *Persistence) Backend() string { return p.backend.Kind() }

// Close releases the bound backend's resources.
func (p *Persistence) Close() error { return p.backend.Close() }

// SaveHistory stores a history item for the (possibly defaulted) user.
func (p *Persistence) SaveHistory(ctx context.Context, item *model.HistoryItem) (*model.HistoryItem, error) {
	item.UserID = defaultUser(item.UserID)
	saved, err := p.backend.InsertHistory(ctx, item)
	p.record(ctx, "insert_history", err)
	return saved, err
}

// ListHistory returns the user's history, newest first.
func (p *Persistence) ListHistory(ctx context.Context, userID string, limit int) ([]*model.HistoryItem, error) {
	items, err := p.backend.ListHistory(ctx, defaultUser(userID), limit)
	p.record(ctx, "list_history", err)
	return items, err
}

// DeleteHistory removes one history item; absent items are a no-op.
func (p *Persistence) DeleteHistory(ctx context.Context, id, userID string) error {
	err := p.backend.DeleteHistory(ctx, id, defaultUser(userID))
	p.record(ctx, "delete_history", err)
	return err
}

// CreateCollection stores a named collection for the user.
func (p *Persistence) CreateCollection(ctx context.Context, name, description, userID string) (*model.Collection, error) {
	col := &model.Collection{
		Name:        name,
		Description: description,
		UserID:      defaultUser(userID),
	}
	created, err := p.backend.InsertCollection(ctx, col)
	p.record(ctx, "insert_collection", err)
	return created, err
}

// ListCollections returns the user's collections, newest first.
func (p *Persistence) ListCollections(ctx context.Context, userID string) ([]*model.Collection, error) {
	cols, err := p.backend.ListCollections(ctx, defaultUser(userID))
	p.record(ctx, "list_collections", err)
	return cols, err
}

// DeleteCollection removes a collection and cascades to its requests.
func (p *Persistence) DeleteCollection(ctx context.Context, id, userID string) error {
	err := p.backend.DeleteCollection(ctx, id, defaultUser(userID))
	p.record(ctx, "delete_collection", err)
	return err
}

// AddCollectionRequest stores a request under an existing collection,
// failing with storage.ErrNotFound when the collection is missing.
func (p *Persistence) AddCollectionRequest(ctx context.Context, collectionID string, req *model.CollectionRequest) (*model.CollectionRequest, error) {
	added, err := p.backend.InsertCollectionRequest(ctx, collectionID, req)
	p.record(ctx, "insert_collection_request", err)
	return added, err
}

// ListCollectionRequests returns a collection's requests, oldest first.
func (p *Persistence) ListCollectionRequests(ctx context.Context, collectionID string) ([]*model.CollectionRequest, error) {
	reqs, err := p.backend.ListCollectionRequests(ctx, collectionID)
	p.record(ctx, "list_collection_requests", err)
	return reqs, err
}

// Clear removes one user's data, or everything when userID is empty.
// Unlike the read/write operations the user identifier is NOT defaulted:
// an empty identifier means a full wipe.
func (p *Persistence) Clear(ctx context.Context, userID string) (*model.Counts, error) {
	counts, err := p.backend.Clear(ctx, userID)
	p.record(ctx, "clear", err)
	return counts, err
}

// Stats reports entity counts, scoped to one user when userID is non-empty.
func (p *Persistence) Stats(ctx context.Context, userID string) (*model.Counts, error) {
	counts, err := p.backend.Counts(ctx, userID)
	p.record(ctx, "counts", err)
	return counts, err
}

// record counts the operation outcome and logs storage failures with the
// originating operation name. Validation and not-found outcomes are expected
// client errors and are counted but not logged as failures.
func (p *Persistence) record(_ context.Context, op string, err error) {
	var verr *storage.ValidationError

	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		result = "not_found"
	case errors.As(err, &verr):
		result = "invalid"
	default:
		result = "error"
		p.logger.Error("storage operation failed", "op", op, "backend", p.backend.Kind(), "err", err)
	}
	if p.metrics != nil {
		p.metrics.StorageOps.WithLabelValues(op, p.backend.Kind(), result).Inc()
	}
}

func defaultUser(userID string) string {
	if userID == "" {
		return model.AnonymousUser
	}
	return userID
}
