// Package model defines shared types for the request workbench.
package model

import (
	"encoding/json"
	"net/url"
	"time"
)

// AnonymousUser is the user identifier assigned when a caller supplies none.
const AnonymousUser = "anonymous"

// RequestSpec describes an HTTP request to be relayed to its target.
// It is constructed per relay call and never persisted unless the caller
// explicitly saves it as history.
type RequestSpec struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
	Params  map[string]string `json:"params,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

// RelayResult is the uniform envelope produced by a relay call. Header keys
// are lower-cased. Body holds the decoded response body: a parsed JSON value
// when the target declared JSON, raw text otherwise.
type RelayResult struct {
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers"`
	Body       any               `json:"body"`
	ElapsedMs  int64             `json:"elapsedMs"`
	SizeBytes  int64             `json:"sizeBytes"`
}

// HistoryItem is a saved request, scoped to a user. Immutable after creation.
type HistoryItem struct {
	ID        string            `json:"id"`
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers,omitempty"`
	Params    map[string]string `json:"params,omitempty"`
	Body      json.RawMessage   `json:"body,omitempty"`
	UserID    string            `json:"userId"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Collection is a named group of saved requests owned by one user.
// Deleting a collection deletes its requests.
type Collection struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	UserID      string    `json:"userId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CollectionRequest is a saved request owned by exactly one collection.
type CollectionRequest struct {
	ID           string            `json:"id"`
	CollectionID string            `json:"collectionId"`
	Name         string            `json:"name"`
	URL          string            `json:"url"`
	Method       string            `json:"method"`
	Headers      map[string]string `json:"headers,omitempty"`
	Params       map[string]string `json:"params,omitempty"`
	Body         json.RawMessage   `json:"body,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
}

// Counts reports per-entity totals, used by the stats and clear operations.
type Counts struct {
	History     int64 `json:"historyCount"`
	Collections int64 `json:"collectionsCount"`
	Requests    int64 `json:"requestsCount"`
}

// DefaultRequestName derives a display name for a collection request that
// was saved without one: "{METHOD} {path-of-url}".
func DefaultRequestName(method, rawURL string) string {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		path = u.Path
	}
	if method == "" {
		method = "GET"
	}
	return method + " " + path
}
