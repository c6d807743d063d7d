package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	// modernc.org/sqlite registers the "sqlite" driver without cgo.
	_ "modernc.org/sqlite"

	"broker-agent/internal/domain"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteClient reads knowledge-base chunks from a local SQLite table with at
// least a text column.
type SQLiteClient struct {
	db    *sql.DB
	query string
}

// OpenSQLite opens the database file at path and verifies the connection.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("repository: sqlite path must not be empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("repository: open sqlite %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("repository: ping sqlite %s: %w", path, err)
	}
	return db, nil
}

// NewSQLite creates a SQLiteClient for tableName. The name is interpolated into
// the query, so it must be a plain identifier.
func NewSQLite(db *sql.DB, tableName string) (*SQLiteClient, error) {
	if db == nil {
		return nil, errors.New("repository: db must not be nil")
	}
	if !identifierRe.MatchString(tableName) {
		return nil, fmt.Errorf("repository: invalid table name %q", tableName)
	}
	return &SQLiteClient{
		db:    db,
		query: "SELECT text FROM " + tableName + " LIMIT ?",
	}, nil
}

// TopChunks returns the text column of the first limit rows. NULL text yields
// an empty fragment.
func (c *SQLiteClient) TopChunks(ctx context.Context, limit int) ([]domain.ContextFragment, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("repository: TopChunks: limit must be positive, got %d", limit)
	}

	rows, err := c.db.QueryContext(ctx, c.query, limit)
	if err != nil {
		return nil, fmt.Errorf("repository: TopChunks query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var chunks []domain.ContextFragment
	for rows.Next() {
		var text sql.NullString
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("repository: TopChunks scan: %w", err)
		}
		chunks = append(chunks, domain.ContextFragment(text.String))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: TopChunks rows: %w", err)
	}
	return chunks, nil
}
