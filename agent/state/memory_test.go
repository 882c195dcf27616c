package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivekverma239/superfast-ai/agent/persistence"
)

func TestMemoryManager_CRUD(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	m := NewMemoryManager(store, "u1", testOpts()...)

	list, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NotNil(t, list)

	a, err := m.AddMemory(ctx, "prefers short answers", []string{"style"})
	require.NoError(t, err)
	assert.Equal(t, "id-1", a.ID)

	require.NoError(t, m.UpdateMemory(ctx, a.ID, "prefers very short answers"))
	list, err = m.Load(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "prefers very short answers", list[0].Details)
	assert.Equal(t, []string{"style"}, list[0].Tags)
	require.NotNil(t, list[0].UpdatedAt)

	err = m.UpdateMemory(ctx, "missing", "x")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.DeleteMemory(ctx, a.ID))
	list, err = m.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemoryManager_SharedAcrossInstances(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()

	_, err := NewMemoryManager(store, "u1", testOpts()...).AddMemory(ctx, "works at acme", nil)
	require.NoError(t, err)

	list, err := NewMemoryManager(store, "u1").Load(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	other, err := NewMemoryManager(store, "u2").Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, NewMemoryManager(store, "u1").Clear(ctx))
	list, err = NewMemoryManager(store, "u1").Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemoryManager_Apply(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryManager(persistence.NewMemoryStore(), "u1", testOpts()...)

	keep, err := m.AddMemory(ctx, "keep", nil)
	require.NoError(t, err)
	edit, err := m.AddMemory(ctx, "old", nil)
	require.NoError(t, err)
	drop, err := m.AddMemory(ctx, "drop", nil)
	require.NoError(t, err)

	result, err := m.Apply(ctx, []MemoryUpdate{
		{ID: edit.ID, Details: "new"},
		{Details: "fresh"},
		{ID: "unknown", Details: "also fresh"},
	}, []string{drop.ID})
	require.NoError(t, err)

	details := make([]string, len(result))
	for i, r := range result {
		details[i] = r.Details
	}
	assert.Equal(t, []string{"keep", "new", "fresh", "also fresh"}, details)
	assert.Equal(t, keep.ID, result[0].ID)
	assert.Equal(t, edit.ID, result[1].ID)
	assert.NotNil(t, result[1].UpdatedAt)
	assert.Nil(t, result[0].UpdatedAt)

	loaded, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, result, loaded)
}
