package kvstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"stockwatch/pkg/database"
	"stockwatch/pkg/models"
)

// SQLite stores documents in the kv table of a local SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := database.Open(database.Config{Path: path})
	if err != nil {
		return nil, &models.PersistenceError{Op: "open", Key: path, Err: err}
	}
	if err := database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, &models.PersistenceError{Op: "migrate", Key: path, Err: err}
	}
	return &SQLite{db: db}, nil
}

// NewSQLite wraps an already migrated database.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

func (s *SQLite) Get(ctx context.Context, key string, out any) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, &models.PersistenceError{Op: "get", Key: key, Err: err}
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, &models.PersistenceError{Op: "decode", Key: key, Err: err}
	}
	return true, nil
}

func (s *SQLite) Put(ctx context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return &models.PersistenceError{Op: "encode", Key: key, Err: err}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
		  value = excluded.value,
		  updated_at = excluded.updated_at
	`, key, string(b), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return &models.PersistenceError{Op: "put", Key: key, Err: err}
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return &models.PersistenceError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &models.PersistenceError{Op: "ping", Err: err}
	}
	return nil
}

func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
