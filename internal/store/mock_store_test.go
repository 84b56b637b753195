// ABOUTME: Unit tests for MockStore to ensure behavior matches SQLiteStore
// ABOUTME: Focuses on copy semantics, duplicate detection and injected failures

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockStore_AppendMessage_Duplicate(t *testing.T) {
	s := NewMockStore()
	ctx := context.Background()

	msg := &Message{ID: "m-1", ThreadID: "t-1", Body: "hi", CreatedAt: time.Now()}
	require.NoError(t, s.AppendMessage(ctx, msg))
	assert.ErrorIs(t, s.AppendMessage(ctx, msg), ErrDuplicateID)
	assert.Len(t, s.Messages(), 1)
}

func TestMockStore_ReturnsCopies(t *testing.T) {
	s := NewMockStore()
	ctx := context.Background()

	require.NoError(t, s.AppendMessage(ctx, &Message{ID: "m-1", ThreadID: "t-1", Body: "original"}))

	msgs, err := s.GetThreadMessages(ctx, "t-1")
	require.NoError(t, err)
	msgs[0].Body = "mutated"

	msgs, err = s.GetThreadMessages(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, "original", msgs[0].Body)

	due := time.Now()
	require.NoError(t, s.CreateTask(ctx, &Task{ID: "task-1", Description: "x", DueAt: &due}))
	got, err := s.GetTask(ctx, "task-1")
	require.NoError(t, err)
	*got.DueAt = due.Add(time.Hour)

	got, err = s.GetTask(ctx, "task-1")
	require.NoError(t, err)
	assert.True(t, due.Equal(*got.DueAt))
}

func TestMockStore_CompleteTask_Idempotent(t *testing.T) {
	s := NewMockStore()
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateTask(ctx, &Task{ID: "task-1", Description: "x"}))

	first, err := s.CompleteTask(ctx, "task-1", at)
	require.NoError(t, err)
	second, err := s.CompleteTask(ctx, "task-1", at.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, TaskCompleted, second.Status)
	assert.Equal(t, first.CompletedAt, second.CompletedAt)

	_, err = s.CompleteTask(ctx, "missing", at)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMockStore_InjectedErrors(t *testing.T) {
	s := NewMockStore()
	ctx := context.Background()
	boom := errors.New("disk on fire")

	s.AppendErr = boom
	assert.ErrorIs(t, s.AppendMessage(ctx, &Message{ID: "m-1"}), boom)
	_, err := s.Snapshot(ctx)
	assert.NoError(t, err, "AppendErr only affects appends")

	s.Err = boom
	_, err = s.Snapshot(ctx)
	assert.ErrorIs(t, err, boom)
	_, err = s.ListTasks(ctx, "")
	assert.ErrorIs(t, err, boom)
}
