package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"
)

var sqliteDialect = sqlDialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id          TEXT PRIMARY KEY,
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL,
			priority    TEXT NOT NULL,
			tags        TEXT NOT NULL DEFAULT '[]',
			created_at  INTEGER NOT NULL,
			updated_at  INTEGER NOT NULL,
			due_date    INTEGER NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at)`,
	},
	isDuplicate: func(err error) bool {
		sqliteErr, ok := errorAs[sqlite3.Error](err)
		return ok && sqliteErr.Code == sqlite3.ErrConstraint &&
			(sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique)
	},
}

// SQLiteStorage persists tasks in a local SQLite database file.
type SQLiteStorage struct {
	*sqlStorage
}

var _ Storage = (*SQLiteStorage)(nil)

// OpenSQLite opens (creating if needed) the database at path and migrates
// it. Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStorage, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	s, err := newSQLStorage(ctx, db, sqliteDialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStorage{sqlStorage: s}, nil
}
