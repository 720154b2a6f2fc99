package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"task-manager/tasks"
)

// sqlDialect holds what differs between the SQL backends.
type sqlDialect struct {
	name        string
	schema      []string
	isDuplicate func(err error) bool
}

// sqlStorage implements Storage over database/sql. Timestamps are stored
// as Unix nanoseconds so they round-trip exactly and sort numerically;
// tags are a JSON array.
type sqlStorage struct {
	db      *sql.DB
	dialect sqlDialect
}

const selectColumns = `id, title, description, status, priority, tags, created_at, updated_at, due_date`

func newSQLStorage(ctx context.Context, db *sql.DB, dialect sqlDialect) (*sqlStorage, error) {
	s := &sqlStorage{db: db, dialect: dialect}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *sqlStorage) migrate(ctx context.Context) error {
	for _, ddl := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("running %s migration: %w", s.dialect.name, err)
		}
	}
	return nil
}

func (s *sqlStorage) GetAll(ctx context.Context) ([]tasks.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM tasks ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var out []tasks.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}
	return out, nil
}

func (s *sqlStorage) Save(ctx context.Context, task tasks.Task) error {
	tags, err := json.Marshal(tagsOrEmpty(task.Tags))
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO tasks (`+selectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Title, task.Description, string(task.Status), string(task.Priority), string(tags),
		task.CreatedAt.UnixNano(), task.UpdatedAt.UnixNano(), nanosOrNull(task.DueDate))
	if err != nil {
		if s.dialect.isDuplicate(err) {
			return fmt.Errorf("save task %s: %w", task.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("inserting task %s: %w", task.ID, err)
	}
	return nil
}

func (s *sqlStorage) Update(ctx context.Context, task tasks.Task) error {
	tags, err := json.Marshal(tagsOrEmpty(task.Tags))
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `UPDATE tasks
		SET title = ?, description = ?, status = ?, priority = ?, tags = ?, updated_at = ?, due_date = ?
		WHERE id = ?`,
		task.Title, task.Description, string(task.Status), string(task.Priority), string(tags),
		task.UpdatedAt.UnixNano(), nanosOrNull(task.DueDate), task.ID)
	if err != nil {
		return fmt.Errorf("updating task %s: %w", task.ID, err)
	}
	return expectOneRow(res, "update", task.ID)
}

func (s *sqlStorage) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	return expectOneRow(res, "delete", id)
}

func (s *sqlStorage) Close() error {
	return s.db.Close()
}

func expectOneRow(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s task %s: reading affected rows: %w", op, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s task %s: %w", op, id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (tasks.Task, error) {
	var (
		t                  tasks.Task
		status, priority   string
		rawTags            string
		createdAt, updated int64
		due                sql.NullInt64
	)
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &status, &priority, &rawTags, &createdAt, &updated, &due); err != nil {
		return tasks.Task{}, fmt.Errorf("scanning task: %w", err)
	}

	t.Status = tasks.TaskStatus(status)
	t.Priority = tasks.Priority(priority)
	t.CreatedAt = time.Unix(0, createdAt).UTC()
	t.UpdatedAt = time.Unix(0, updated).UTC()
	if due.Valid {
		d := time.Unix(0, due.Int64).UTC()
		t.DueDate = &d
	}
	if err := json.Unmarshal([]byte(rawTags), &t.Tags); err != nil {
		return tasks.Task{}, fmt.Errorf("decoding tags of task %s: %w", t.ID, err)
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	return t, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func nanosOrNull(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

// errorAs is errors.As for a concrete driver error type.
func errorAs[T error](err error) (T, bool) {
	var target T
	ok := errors.As(err, &target)
	return target, ok
}
