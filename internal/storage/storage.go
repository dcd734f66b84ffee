// Package storage defines the persistence contract shared by the durable
// SQLite backend and the in-process ephemeral backend, plus the error
// taxonomy both report through.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"reqbench/internal/model"
)

// DefaultHistoryLimit is applied when a caller requests history without a
// positive limit.
const DefaultHistoryLimit = 50

// ErrNotFound is returned when a referenced entity does not exist, e.g. when
// adding a request to a missing collection. Deletions never return it:
// deleting an absent entity is an idempotent no-op.
var ErrNotFound = errors.New("not found")

// ValidationError reports a missing or malformed required field. No side
// effects are performed when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// StorageError wraps a failure of the underlying durable datastore.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Backend is the persistence contract. Both implementations must behave
// identically from the caller's point of view: newest-first history and
// collections, oldest-first collection requests, idempotent deletes, and
// cascade deletion of a collection's requests.
type Backend interface {
	// InsertHistory stores an item, assigning ID and CreatedAt when absent.
	InsertHistory(ctx context.Context, item *model.HistoryItem) (*model.HistoryItem, error)
	// ListHistory returns the user's items newest first, at most limit
	// (DefaultHistoryLimit when limit <= 0).
	ListHistory(ctx context.Context, userID string, limit int) ([]*model.HistoryItem, error)
	// DeleteHistory removes one item. No-op when the item is missing or
	// owned by another user.
	DeleteHistory(ctx context.Context, id, userID string) error

	// InsertCollection stores a collection. The name must be non-empty
	// after trimming whitespace.
	InsertCollection(ctx context.Context, col *model.Collection) (*model.Collection, error)
	// ListCollections returns the user's collections newest first.
	ListCollections(ctx context.Context, userID string) ([]*model.Collection, error)
	// DeleteCollection removes a collection and every request it owns.
	// No-op when missing or owned by another user.
	DeleteCollection(ctx context.Context, id, userID string) error

	// InsertCollectionRequest stores a request under an existing collection,
	// failing with ErrNotFound when the collection does not exist.
	InsertCollectionRequest(ctx context.Context, collectionID string, req *model.CollectionRequest) (*model.CollectionRequest, error)
	// ListCollectionRequests returns a collection's requests oldest first.
	ListCollectionRequests(ctx context.Context, collectionID string) ([]*model.CollectionRequest, error)

	// Clear removes the given user's data, or everything when userID is
	// empty. It reports how many entities were removed.
	Clear(ctx context.Context, userID string) (*model.Counts, error)
	// Counts reports entity totals, scoped to one user when userID is
	// non-empty.
	Counts(ctx context.Context, userID string) (*model.Counts, error)

	// Kind identifies the backend ("sqlite" or "memory") for logs and the
	// status endpoint.
	Kind() string
	// Close releases backend resources.
	Close() error
}

// validateCollection enforces the shared invariants on a collection before
// either backend stores it. The name is trimmed in place.
func validateCollection(col *model.Collection) error {
	col.Name = strings.TrimSpace(col.Name)
	if col.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	return nil
}
