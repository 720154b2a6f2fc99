package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

// errDuplicateEntry is MySQL's ER_DUP_ENTRY.
const errDuplicateEntry = 1062

var mysqlDialect = sqlDialect{
	name: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id          VARCHAR(64) NOT NULL PRIMARY KEY,
			title       VARCHAR(500) NOT NULL,
			description TEXT NOT NULL,
			status      VARCHAR(20) NOT NULL,
			priority    VARCHAR(20) NOT NULL,
			tags        TEXT NOT NULL,
			created_at  BIGINT NOT NULL,
			updated_at  BIGINT NOT NULL,
			due_date    BIGINT NULL,
			INDEX idx_tasks_created_at (created_at)
		)`,
	},
	isDuplicate: func(err error) bool {
		mysqlErr, ok := errorAs[*mysql.MySQLError](err)
		return ok && mysqlErr.Number == errDuplicateEntry
	},
}

// MySQLStorage persists tasks in a MySQL database.
type MySQLStorage struct {
	*sqlStorage
}

var _ Storage = (*MySQLStorage)(nil)

// OpenMySQL connects using dsn (go-sql-driver format), verifies the
// connection and migrates the schema.
func OpenMySQL(ctx context.Context, dsn string) (*MySQLStorage, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid MySQL DSN: %w", err)
	}
	// report matched rather than changed rows, so an update that rewrites
	// identical values is not mistaken for a missing task
	cfg.ClientFoundRows = true

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating MySQL connector: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetConnMaxLifetime(3 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	s, err := newSQLStorage(ctx, db, mysqlDialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &MySQLStorage{sqlStorage: s}, nil
}
