package store

import (
	"context"
	"testing"
	"time"

	"task-manager/tasks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var contractBase = time.Date(2026, 4, 1, 10, 0, 0, 123456789, time.UTC)

func newTestTask(id string, offset time.Duration) tasks.Task {
	return tasks.Task{
		ID:          id,
		Title:       "task " + id,
		Description: "",
		Status:      tasks.StatusPending,
		Priority:    tasks.PriorityMedium,
		Tags:        []string{},
		CreatedAt:   contractBase.Add(offset),
		UpdatedAt:   contractBase.Add(offset),
	}
}

func assertSameTask(t *testing.T, expected, got tasks.Task) {
	t.Helper()
	assert.Equal(t, expected.ID, got.ID)
	assert.Equal(t, expected.Title, got.Title)
	assert.Equal(t, expected.Description, got.Description)
	assert.Equal(t, expected.Status, got.Status)
	assert.Equal(t, expected.Priority, got.Priority)
	assert.ElementsMatch(t, expected.Tags, got.Tags)
	assert.True(t, expected.CreatedAt.Equal(got.CreatedAt), "createdAt %v != %v", expected.CreatedAt, got.CreatedAt)
	assert.True(t, expected.UpdatedAt.Equal(got.UpdatedAt), "updatedAt %v != %v", expected.UpdatedAt, got.UpdatedAt)
	if expected.DueDate == nil {
		assert.Nil(t, got.DueDate)
	} else {
		require.NotNil(t, got.DueDate)
		assert.True(t, expected.DueDate.Equal(*got.DueDate))
	}
}

// runStorageContract checks the behaviour every Storage backend promises.
// open must return an empty storage.
func runStorageContract(t *testing.T, open func(t *testing.T) Storage) {
	t.Run("save then get all in creation order", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		due := contractBase.Add(48 * time.Hour)
		second := newTestTask("b", time.Minute)
		second.Tags = []string{"docs", "review"}
		second.DueDate = &due
		second.Description = "with details"
		first := newTestTask("a", 0)

		require.NoError(t, s.Save(ctx, first))
		require.NoError(t, s.Save(ctx, second))

		all, err := s.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assertSameTask(t, first, all[0])
		assertSameTask(t, second, all[1])
	})

	t.Run("save duplicate", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		task := newTestTask("dup", 0)
		require.NoError(t, s.Save(ctx, task))
		err := s.Save(ctx, task)
		require.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("update existing", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		task := newTestTask("u", 0)
		require.NoError(t, s.Save(ctx, task))

		due := contractBase.Add(time.Hour)
		task.Title = "renamed"
		task.Status = tasks.StatusCompleted
		task.Tags = []string{"done"}
		task.DueDate = &due
		task.UpdatedAt = contractBase.Add(time.Second)
		require.NoError(t, s.Update(ctx, task))

		all, err := s.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assertSameTask(t, task, all[0])

		// identical rewrite still counts as found
		require.NoError(t, s.Update(ctx, task))

		task.DueDate = nil
		require.NoError(t, s.Update(ctx, task))
		all, err = s.GetAll(ctx)
		require.NoError(t, err)
		assert.Nil(t, all[0].DueDate)
	})

	t.Run("update missing", func(t *testing.T) {
		s := open(t)
		err := s.Update(context.Background(), newTestTask("missing", 0))
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		require.NoError(t, s.Save(ctx, newTestTask("d1", 0)))
		require.NoError(t, s.Save(ctx, newTestTask("d2", time.Second)))
		require.NoError(t, s.Delete(ctx, "d1"))

		all, err := s.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "d2", all[0].ID)

		require.ErrorIs(t, s.Delete(ctx, "d1"), ErrNotFound)
	})

	t.Run("empty", func(t *testing.T) {
		s := open(t)
		all, err := s.GetAll(context.Background())
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}
