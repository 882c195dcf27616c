package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivekverma239/superfast-ai/agent/persistence"
	"github.com/vivekverma239/superfast-ai/types"
)

func TestTodoManager_Ephemeral(t *testing.T) {
	ctx := context.Background()
	m := NewTodoManager("u1", "t1", testOpts()...)
	assert.False(t, m.Persistent())

	todo, err := m.AddTodo(ctx, "collect sources", "")
	require.NoError(t, err)
	assert.Equal(t, TodoPending, todo.Status)
	assert.Equal(t, PriorityMedium, todo.Priority)

	// 新实例看不到旧实例的数据
	fresh, err := NewTodoManager("u1", "t1").Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, fresh)

	// Load 返回副本
	list, err := m.Load(ctx)
	require.NoError(t, err)
	list[0].Task = "mutated"
	again, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "collect sources", again[0].Task)

	require.NoError(t, m.Clear(ctx))
	list, err = m.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestTodoManager_StatusTransitions(t *testing.T) {
	ctx := context.Background()
	m := NewTodoManager("u1", "t1", testOpts()...)

	a, err := m.AddTodo(ctx, "a", PriorityHigh)
	require.NoError(t, err)
	b, err := m.AddTodo(ctx, "b", PriorityLow)
	require.NoError(t, err)

	inProgress := TodoInProgress
	require.NoError(t, m.UpdateTodo(ctx, a.ID, TodoPatch{Status: &inProgress}))
	done := TodoCompleted
	task := "b2"
	require.NoError(t, m.UpdateTodo(ctx, b.ID, TodoPatch{Status: &done, Task: &task}))

	list, err := m.Load(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, TodoInProgress, list[0].Status)
	assert.Equal(t, PriorityHigh, list[0].Priority)
	assert.Equal(t, TodoCompleted, list[1].Status)
	assert.Equal(t, "b2", list[1].Task)
	assert.NotNil(t, list[1].UpdatedAt)

	bogus := TodoStatus("blocked")
	err = m.UpdateTodo(ctx, a.ID, TodoPatch{Status: &bogus})
	assert.True(t, types.IsErrorCode(err, types.ErrValidation))

	_, err = m.AddTodo(ctx, "c", Priority("urgent"))
	assert.True(t, types.IsErrorCode(err, types.ErrValidation))

	assert.ErrorIs(t, m.UpdateTodo(ctx, "missing", TodoPatch{Status: &done}), ErrNotFound)

	require.NoError(t, m.DeleteTodo(ctx, a.ID))
	list, err = m.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestTodoManager_Persistent(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	opts := append(testOpts(), WithTodoStore(store))

	m := NewTodoManager("u1", "t1", opts...)
	assert.True(t, m.Persistent())
	_, err := m.AddTodo(ctx, "survive restart", "")
	require.NoError(t, err)

	list, err := NewTodoManager("u1", "t1", WithTodoStore(store)).Load(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "survive restart", list[0].Task)

	other, err := NewTodoManager("u1", "t2", WithTodoStore(store)).Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, m.Clear(ctx))
	assert.Equal(t, 0, store.Len())
}
