package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"task-manager/tasks"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisKey = "tasks"

// updateIfExists replaces a hash field only when it is already present.
var updateIfExists = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return 1
`)

// RedisStorage keeps every task as a JSON value in a single Redis hash
// keyed by task id.
type RedisStorage struct {
	client *redis.Client
	key    string
}

var _ Storage = (*RedisStorage)(nil)

func NewRedisStorage(url, key string) (*RedisStorage, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	if key == "" {
		key = DefaultRedisKey
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStorage{client: client, key: key}, nil
}

func (s *RedisStorage) GetAll(ctx context.Context) ([]tasks.Task, error) {
	values, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}

	out := make([]tasks.Task, 0, len(values))
	for id, raw := range values {
		var t tasks.Task
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, fmt.Errorf("failed to unmarshal task %s: %w", id, err)
		}
		out = append(out, t)
	}

	// hash fields carry no order
	slices.SortFunc(out, func(a, b tasks.Task) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *RedisStorage) Save(ctx context.Context, task tasks.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	created, err := s.client.HSetNX(ctx, s.key, task.ID, data).Result()
	if err != nil {
		return fmt.Errorf("failed to save task %s: %w", task.ID, err)
	}
	if !created {
		return fmt.Errorf("save task %s: %w", task.ID, ErrAlreadyExists)
	}
	return nil
}

func (s *RedisStorage) Update(ctx context.Context, task tasks.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	updated, err := updateIfExists.Run(ctx, s.client, []string{s.key}, task.ID, data).Int()
	if err != nil {
		return fmt.Errorf("failed to update task %s: %w", task.ID, err)
	}
	if updated == 0 {
		return fmt.Errorf("update task %s: %w", task.ID, ErrNotFound)
	}
	return nil
}

func (s *RedisStorage) Delete(ctx context.Context, id string) error {
	removed, err := s.client.HDel(ctx, s.key, id).Result()
	if err != nil {
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}
	if removed == 0 {
		return fmt.Errorf("delete task %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *RedisStorage) Close() error {
	return s.client.Close()
}
