package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is a FIFO list: LPUSH to enqueue, BRPOP to dequeue.
type RedisQueue struct {
	client    *redis.Client
	queueName string
}

var _ Queue = (*RedisQueue)(nil)

func NewRedisQueue(url, queueName string) (*RedisQueue, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisQueue{
		client:    client,
		queueName: queueName,
	}, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return q.client.LPush(ctx, q.queueName, data).Err()
}

func (q *RedisQueue) Dequeue(ctx context.Context) (Envelope, error) {
	// 0 timeout blocks until ctx is done
	result, err := q.client.BRPop(ctx, 0, q.queueName).Result()
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to dequeue envelope: %w", err)
	}

	// BRPop returns [queueName, value]
	if len(result) != 2 {
		return Envelope{}, fmt.Errorf("unexpected BRPop result format: want 2 elements, got %d", len(result))
	}

	var env Envelope
	if err := json.Unmarshal([]byte(result[1]), &env); err != nil {
		return Envelope{}, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	return env, nil
}

func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.queueName).Result()
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
