//go:build integration

package events

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedisTestcontainer(t *testing.T) (*RedisQueue, func()) {
	ctx := context.Background()

	uniqueQueueName := fmt.Sprintf("test_events_%s_%d", t.Name(), time.Now().UnixNano())

	redisContainer, err := redis.Run(ctx, "redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("6379/tcp").WithStartupTimeout(30*time.Second),
			wait.ForLog("Ready to accept connections").WithOccurrence(1).WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("Failed to start Redis testcontainer: %v", err)
	}

	connStr, err := redisContainer.ConnectionString(ctx)
	if err != nil {
		redisContainer.Terminate(ctx)
		t.Fatalf("Failed to get Redis connection string: %v", err)
	}
	redisURL := connStr + "/1"

	var queue *RedisQueue
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		queue, err = NewRedisQueue(redisURL, uniqueQueueName)
		if err == nil {
			break
		}
		t.Logf("Failed to connect to Redis, retrying... (%d/%d): %v", i+1, maxRetries, err)
		time.Sleep(time.Duration(i+1) * 500 * time.Millisecond)
	}
	if queue == nil {
		redisContainer.Terminate(ctx)
		t.Fatalf("Failed to create Redis queue after %d retries: %v", maxRetries, err)
	}

	cleanup := func() {
		ctx := context.Background()
		queue.client.Del(ctx, uniqueQueueName)
		queue.Close()
		if terminateErr := redisContainer.Terminate(ctx); terminateErr != nil {
			t.Logf("Failed to terminate container: %v", terminateErr)
		}
	}

	return queue, cleanup
}
