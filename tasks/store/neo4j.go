package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"task-manager/tasks"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const constraintViolation = "Neo.ClientError.Schema.ConstraintValidationFailed"

// Neo4jStorage stores each task as a (:Task) node. Timestamps are Unix
// nanoseconds, matching the SQL backends.
type Neo4jStorage struct {
	driver   neo4j.DriverWithContext
	database string
}

var _ Storage = (*Neo4jStorage)(nil)

// OpenNeo4j connects to uri, verifies connectivity and ensures the id
// uniqueness constraint exists. An empty database uses the server default.
func OpenNeo4j(ctx context.Context, uri, user, password, database string) (*Neo4jStorage, error) {
	auth := neo4j.NoAuth()
	if user != "" {
		auth = neo4j.BasicAuth(user, password, "")
	}

	driver, err := neo4j.NewDriverWithContext(uri, auth)
	if err != nil {
		return nil, fmt.Errorf("creating Neo4j driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to Neo4j: %w", err)
	}

	s := &Neo4jStorage{driver: driver, database: database}
	if _, err := s.run(ctx, `CREATE CONSTRAINT task_id_unique IF NOT EXISTS FOR (t:Task) REQUIRE t.id IS UNIQUE`, nil); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("creating Neo4j constraint: %w", err)
	}
	return s, nil
}

func (s *Neo4jStorage) run(ctx context.Context, cypher string, params map[string]any) (*neo4j.EagerResult, error) {
	opts := []neo4j.ExecuteQueryConfigurationOption{}
	if s.database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(s.database))
	}
	return neo4j.ExecuteQuery(ctx, s.driver, cypher, params, neo4j.EagerResultTransformer, opts...)
}

func (s *Neo4jStorage) GetAll(ctx context.Context) ([]tasks.Task, error) {
	result, err := s.run(ctx,
		"MATCH (t:Task) "+
			"RETURN t.id AS id, t.title AS title, t.description AS description, t.status AS status, "+
			"t.priority AS priority, t.tags AS tags, t.createdAt AS createdAt, t.updatedAt AS updatedAt, "+
			"t.dueDate AS dueDate "+
			"ORDER BY t.createdAt, t.id",
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}

	out := make([]tasks.Task, 0, len(result.Records))
	for _, record := range result.Records {
		t, err := taskFromRecord(record)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Neo4jStorage) Save(ctx context.Context, task tasks.Task) error {
	_, err := s.run(ctx,
		"CREATE (t:Task {id: $id, title: $title, description: $description, status: $status, "+
			"priority: $priority, tags: $tags, createdAt: $createdAt, updatedAt: $updatedAt, dueDate: $dueDate})",
		taskParams(task),
	)
	if err != nil {
		var neoErr *neo4j.Neo4jError
		if errors.As(err, &neoErr) && neoErr.Code == constraintViolation {
			return fmt.Errorf("save task %s: %w", task.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("creating task %s: %w", task.ID, err)
	}
	return nil
}

func (s *Neo4jStorage) Update(ctx context.Context, task tasks.Task) error {
	result, err := s.run(ctx,
		"MATCH (t:Task {id: $id}) "+
			"SET t.title = $title, t.description = $description, t.status = $status, t.priority = $priority, "+
			"t.tags = $tags, t.updatedAt = $updatedAt, t.dueDate = $dueDate "+
			"RETURN t.id AS id",
		taskParams(task),
	)
	if err != nil {
		return fmt.Errorf("updating task %s: %w", task.ID, err)
	}
	if len(result.Records) == 0 {
		return fmt.Errorf("update task %s: %w", task.ID, ErrNotFound)
	}
	return nil
}

func (s *Neo4jStorage) Delete(ctx context.Context, id string) error {
	result, err := s.run(ctx, "MATCH (t:Task {id: $id}) DETACH DELETE t", map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	if result.Summary.Counters().NodesDeleted() == 0 {
		return fmt.Errorf("delete task %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Neo4jStorage) Close() error {
	return s.driver.Close(context.Background())
}

func taskParams(task tasks.Task) map[string]any {
	var due any
	if task.DueDate != nil {
		due = task.DueDate.UnixNano()
	}
	return map[string]any{
		"id":          task.ID,
		"title":       task.Title,
		"description": task.Description,
		"status":      string(task.Status),
		"priority":    string(task.Priority),
		"tags":        tagsOrEmpty(task.Tags),
		"createdAt":   task.CreatedAt.UnixNano(),
		"updatedAt":   task.UpdatedAt.UnixNano(),
		"dueDate":     due,
	}
}

func taskFromRecord(record *neo4j.Record) (tasks.Task, error) {
	values := record.AsMap()

	str := func(key string) string {
		s, _ := values[key].(string)
		return s
	}

	id := str("id")
	if id == "" {
		return tasks.Task{}, errors.New("task record without id")
	}

	createdAt, ok := values["createdAt"].(int64)
	if !ok {
		return tasks.Task{}, fmt.Errorf("task %s: createdAt is %T, want int64", id, values["createdAt"])
	}
	updatedAt, ok := values["updatedAt"].(int64)
	if !ok {
		return tasks.Task{}, fmt.Errorf("task %s: updatedAt is %T, want int64", id, values["updatedAt"])
	}

	t := tasks.Task{
		ID:          id,
		Title:       str("title"),
		Description: str("description"),
		Status:      tasks.TaskStatus(str("status")),
		Priority:    tasks.Priority(str("priority")),
		Tags:        []string{},
		CreatedAt:   time.Unix(0, createdAt).UTC(),
		UpdatedAt:   time.Unix(0, updatedAt).UTC(),
	}
	if rawTags, ok := values["tags"].([]any); ok {
		for _, tag := range rawTags {
			if s, ok := tag.(string); ok {
				t.Tags = append(t.Tags, s)
			}
		}
	}
	if due, ok := values["dueDate"].(int64); ok {
		d := time.Unix(0, due).UTC()
		t.DueDate = &d
	}
	return t, nil
}
