package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"reqbench/internal/model"
)

// SQLite is the durable backend. Consistency is delegated to the engine;
// no in-process locking is held across operations.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and ensures the schema
// exists. The connection pool is capped at one connection: the driver
// serializes writers anyway and a single connection avoids SQLITE_BUSY
// contention between pooled handles.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS history (
			id         TEXT PRIMARY KEY,
			url        TEXT NOT NULL,
			method     TEXT NOT NULL,
			headers    TEXT,
			params     TEXT,
			body       TEXT,
			user_id    TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_history_user ON history(user_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS collections (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			description TEXT,
			user_id     TEXT NOT NULL,
			created_at  TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_collections_user ON collections(user_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS collection_requests (
			id            TEXT PRIMARY KEY,
			collection_id TEXT NOT NULL,
			name          TEXT NOT NULL,
			url           TEXT NOT NULL,
			method        TEXT NOT NULL,
			headers       TEXT,
			params        TEXT,
			body          TEXT,
			created_at    TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_requests_collection ON collection_requests(collection_id);
	`)
	if err != nil {
		return &StorageError{Op: "create tables", Err: err}
	}
	return nil
}

// Kind implements Backend.
func (s *SQLite) Kind() string { return "sqlite" }

// Close implements Backend.
func (s *SQLite) Close() error { return s.db.Close() }

// InsertHistory implements Backend.
func (s *SQLite) InsertHistory(ctx context.Context, item *model.HistoryItem) (*model.HistoryItem, error) {
	stored := *item
	fillIdentity(&stored.ID, &stored.CreatedAt)
	if stored.UserID == "" {
		stored.UserID = model.AnonymousUser
	}

	headers, params, body, err := encodeFields(stored.Headers, stored.Params, stored.Body)
	if err != nil {
		return nil, &StorageError{Op: "insert history", Err: err}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO history (id, url, method, headers, params, body, user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		stored.ID, stored.URL, stored.Method, headers, params, body,
		stored.UserID, formatTime(stored.CreatedAt),
	)
	if err != nil {
		return nil, &StorageError{Op: "insert history", Err: err}
	}
	return &stored, nil
}

// ListHistory implements Backend.
func (s *SQLite) ListHistory(ctx context.Context, userID string, limit int) ([]*model.HistoryItem, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url, method, headers, params, body, user_id, created_at
		FROM history
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, &StorageError{Op: "list history", Err: err}
	}
	defer rows.Close()

	var items []*model.HistoryItem
	for rows.Next() {
		var (
			it                    model.HistoryItem
			headers, params, body sql.NullString
			createdAt             string
		)
		if err := rows.Scan(&it.ID, &it.URL, &it.Method, &headers, &params, &body, &it.UserID, &createdAt); err != nil {
			return nil, &StorageError{Op: "scan history", Err: err}
		}
		if err := decodeFields(headers, params, body, &it.Headers, &it.Params, &it.Body); err != nil {
			return nil, &StorageError{Op: "decode history", Err: err}
		}
		it.CreatedAt = parseTime(createdAt)
		items = append(items, &it)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list history", Err: err}
	}
	return items, nil
}

// DeleteHistory implements Backend. Deleting an absent or foreign item is a
// no-op.
func (s *SQLite) DeleteHistory(ctx context.Context, id, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM history WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return &StorageError{Op: "delete history", Err: err}
	}
	return nil
}

// InsertCollection implements Backend.
func (s *SQLite) InsertCollection(ctx context.Context, col *model.Collection) (*model.Collection, error) {
	stored := *col
	if err := validateCollection(&stored); err != nil {
		return nil, err
	}
	fillIdentity(&stored.ID, &stored.CreatedAt)
	if stored.UserID == "" {
		stored.UserID = model.AnonymousUser
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collections (id, name, description, user_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		stored.ID, stored.Name, stored.Description, stored.UserID, formatTime(stored.CreatedAt),
	)
	if err != nil {
		return nil, &StorageError{Op: "insert collection", Err: err}
	}
	return &stored, nil
}

// ListCollections implements Backend.
func (s *SQLite) ListCollections(ctx context.Context, userID string) ([]*model.Collection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, user_id, created_at
		FROM collections
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, &StorageError{Op: "list collections", Err: err}
	}
	defer rows.Close()

	var cols []*model.Collection
	for rows.Next() {
		var (
			c           model.Collection
			description sql.NullString
			createdAt   string
		)
		if err := rows.Scan(&c.ID, &c.Name, &description, &c.UserID, &createdAt); err != nil {
			return nil, &StorageError{Op: "scan collection", Err: err}
		}
		c.Description = description.String
		c.CreatedAt = parseTime(createdAt)
		cols = append(cols, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list collections", Err: err}
	}
	return cols, nil
}

// DeleteCollection implements Backend. Requests are removed in the same
// transaction so the cascade is atomic.
func (s *SQLite) DeleteCollection(ctx context.Context, id, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StorageError{Op: "delete collection", Err: err}
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM collections WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return &StorageError{Op: "delete collection", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Absent or foreign collection: idempotent no-op, leave requests alone.
		return nil
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM collection_requests WHERE collection_id = ?`, id); err != nil {
		return &StorageError{Op: "delete collection requests", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &StorageError{Op: "delete collection", Err: err}
	}
	return nil
}

// InsertCollectionRequest implements Backend.
func (s *SQLite) InsertCollectionRequest(ctx context.Context, collectionID string, req *model.CollectionRequest) (*model.CollectionRequest, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM collections WHERE id = ?`, collectionID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StorageError{Op: "lookup collection", Err: err}
	}

	stored := *req
	stored.CollectionID = collectionID
	fillIdentity(&stored.ID, &stored.CreatedAt)
	if stored.Name == "" {
		stored.Name = model.DefaultRequestName(stored.Method, stored.URL)
	}

	headers, params, body, err := encodeFields(stored.Headers, stored.Params, stored.Body)
	if err != nil {
		return nil, &StorageError{Op: "insert collection request", Err: err}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO collection_requests (id, collection_id, name, url, method, headers, params, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stored.ID, stored.CollectionID, stored.Name, stored.URL, stored.Method,
		headers, params, body, formatTime(stored.CreatedAt),
	)
	if err != nil {
		return nil, &StorageError{Op: "insert collection request", Err: err}
	}
	return &stored, nil
}

// ListCollectionRequests implements Backend.
func (s *SQLite) ListCollectionRequests(ctx context.Context, collectionID string) ([]*model.CollectionRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, collection_id, name, url, method, headers, params, body, created_at
		FROM collection_requests
		WHERE collection_id = ?
		ORDER BY created_at ASC, rowid ASC`, collectionID)
	if err != nil {
		return nil, &StorageError{Op: "list collection requests", Err: err}
	}
	defer rows.Close()

	var reqs []*model.CollectionRequest
	for rows.Next() {
		var (
			r                     model.CollectionRequest
			headers, params, body sql.NullString
			createdAt             string
		)
		if err := rows.Scan(&r.ID, &r.CollectionID, &r.Name, &r.URL, &r.Method, &headers, &params, &body, &createdAt); err != nil {
			return nil, &StorageError{Op: "scan collection request", Err: err}
		}
		if err := decodeFields(headers, params, body, &r.Headers, &r.Params, &r.Body); err != nil {
			return nil, &StorageError{Op: "decode collection request", Err: err}
		}
		r.CreatedAt = parseTime(createdAt)
		reqs = append(reqs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list collection requests", Err: err}
	}
	return reqs, nil
}

// Clear implements Backend.
func (s *SQLite) Clear(ctx context.Context, userID string) (*model.Counts, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &StorageError{Op: "clear", Err: err}
	}
	defer tx.Rollback()

	counts := &model.Counts{}

	requestsQ := `DELETE FROM collection_requests`
	collectionsQ := `DELETE FROM collections`
	historyQ := `DELETE FROM history`
	var args []any
	if userID != "" {
		requestsQ += ` WHERE collection_id IN (SELECT id FROM collections WHERE user_id = ?)`
		collectionsQ += ` WHERE user_id = ?`
		historyQ += ` WHERE user_id = ?`
		args = []any{userID}
	}

	// Requests first: the scoped variant resolves owners via the
	// collections table, which must still be populated.
	res, err := tx.ExecContext(ctx, requestsQ, args...)
	if err != nil {
		return nil, &StorageError{Op: "clear requests", Err: err}
	}
	counts.Requests, _ = res.RowsAffected()

	res, err = tx.ExecContext(ctx, collectionsQ, args...)
	if err != nil {
		return nil, &StorageError{Op: "clear collections", Err: err}
	}
	counts.Collections, _ = res.RowsAffected()

	res, err = tx.ExecContext(ctx, historyQ, args...)
	if err != nil {
		return nil, &StorageError{Op: "clear history", Err: err}
	}
	counts.History, _ = res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return nil, &StorageError{Op: "clear", Err: err}
	}
	return counts, nil
}

// Counts implements Backend.
func (s *SQLite) Counts(ctx context.Context, userID string) (*model.Counts, error) {
	counts := &model.Counts{}

	historyQ := `SELECT COUNT(*) FROM history`
	collectionsQ := `SELECT COUNT(*) FROM collections`
	requestsQ := `SELECT COUNT(*) FROM collection_requests`
	var args []any
	if userID != "" {
		historyQ += ` WHERE user_id = ?`
		collectionsQ += ` WHERE user_id = ?`
		requestsQ += ` WHERE collection_id IN (SELECT id FROM collections WHERE user_id = ?)`
		args = []any{userID}
	}

	if err := s.db.QueryRowContext(ctx, historyQ, args...).Scan(&counts.History); err != nil {
		return nil, &StorageError{Op: "count history", Err: err}
	}
	if err := s.db.QueryRowContext(ctx, collectionsQ, args...).Scan(&counts.Collections); err != nil {
		return nil, &StorageError{Op: "count collections", Err: err}
	}
	if err := s.db.QueryRowContext(ctx, requestsQ, args...).Scan(&counts.Requests); err != nil {
		return nil, &StorageError{Op: "count requests", Err: err}
	}
	return counts, nil
}

// encodeFields marshals map and body fields to their TEXT column forms.
// Empty maps and bodies persist as NULL.
func encodeFields(headers, params map[string]string, body []byte) (h, p, b sql.NullString, err error) {
	if len(headers) > 0 {
		data, merr := json.Marshal(headers)
		if merr != nil {
			return h, p, b, merr
		}
		h = sql.NullString{String: string(data), Valid: true}
	}
	if len(params) > 0 {
		data, merr := json.Marshal(params)
		if merr != nil {
			return h, p, b, merr
		}
		p = sql.NullString{String: string(data), Valid: true}
	}
	if len(body) > 0 {
		b = sql.NullString{String: string(body), Valid: true}
	}
	return h, p, b, nil
}

// decodeFields is the inverse of encodeFields.
func decodeFields(h, p, b sql.NullString, headers, params *map[string]string, body *json.RawMessage) error {
	if h.Valid {
		if err := json.Unmarshal([]byte(h.String), headers); err != nil {
			return err
		}
	}
	if p.Valid {
		if err := json.Unmarshal([]byte(p.String), params); err != nil {
			return err
		}
	}
	if b.Valid {
		*body = json.RawMessage(b.String)
	}
	return nil
}

// sortableTimeLayout keeps fractional seconds fixed-width (RFC3339Nano trims
// trailing zeros) so lexicographic ORDER BY matches chronological order.
const sortableTimeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(sortableTimeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
