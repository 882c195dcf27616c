package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/vivekverma239/superfast-ai/agent/persistence"
	"github.com/vivekverma239/superfast-ai/types"
)

var testNow = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

// testOpts 返回固定时钟与递增 id
func testOpts() []Option {
	var mu sync.Mutex
	n := 0
	return []Option{
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func() string {
			mu.Lock()
			defer mu.Unlock()
			n++
			return fmt.Sprintf("id-%d", n)
		}),
	}
}

// failingStore 所有操作都返回同一个错误
type failingStore struct{ err error }

func (f failingStore) Get(context.Context, persistence.Key) (*persistence.Record, error) {
	return nil, f.err
}
func (f failingStore) Put(context.Context, *persistence.Record) error { return f.err }
func (f failingStore) List(context.Context, persistence.Query) ([]*persistence.Record, error) {
	return nil, f.err
}
func (f failingStore) Delete(context.Context, persistence.Key) error      { return f.err }
func (f failingStore) DeleteAll(context.Context, persistence.Query) error { return f.err }
func (f failingStore) Ping(context.Context) error                         { return f.err }
func (f failingStore) Close() error                                       { return nil }

func TestStateError(t *testing.T) {
	ctx := context.Background()
	disk := errors.New("disk gone")
	m := NewMemoryManager(failingStore{err: disk}, "u1")

	_, err := m.Load(ctx)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrState))
	assert.True(t, types.IsRetryable(err))
	assert.ErrorIs(t, err, disk)

	err = m.Save(ctx, nil)
	assert.True(t, types.IsErrorCode(err, types.ErrState))

	// context 错误保持原样，交给分类器处理
	cancelled := NewMemoryManager(failingStore{err: context.Canceled}, "u1")
	_, err = cancelled.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, types.IsErrorCode(err, types.ErrState))
}

func TestCompositeStateManager(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	opts := testOpts()

	c := &CompositeStateManager{
		Memory:    NewMemoryManager(store, "u1", opts...),
		Todos:     NewTodoManager("u1", "t1", opts...),
		Artifacts: NewArtifactManager(store, "u1", "t1", opts...),
		Messages:  NewMessageManager(store, "u1", "t1", opts...),
	}

	_, err := c.Memory.AddMemory(ctx, "likes go", nil)
	require.NoError(t, err)
	_, err = c.Todos.AddTodo(ctx, "read paper", "")
	require.NoError(t, err)
	_, err = c.Artifacts.CreateArtifact(ctx, "Report", "", nil, nil)
	require.NoError(t, err)
	_, err = c.Messages.Append(ctx, &types.Message{Role: types.RoleUser, Parts: []types.Part{{Type: types.PartText, Text: "hi"}}})
	require.NoError(t, err)

	snap, err := c.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Memory, 1)
	assert.Len(t, snap.Todos, 1)
	assert.Len(t, snap.Artifacts, 1)
	assert.Len(t, snap.Messages, 1)

	require.NoError(t, c.ClearAll(ctx))
	snap, err = c.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Memory)
	assert.Empty(t, snap.Todos)
	assert.Empty(t, snap.Artifacts)
	assert.Empty(t, snap.Messages)
}

func TestCompositeStateManager_PartialAndErrors(t *testing.T) {
	ctx := context.Background()

	partial := &CompositeStateManager{Todos: NewTodoManager("u1", "t1")}
	snap, err := partial.LoadAll(ctx)
	require.NoError(t, err)
	assert.NotNil(t, snap.Memory)
	assert.Nil(t, snap.Messages)

	broken := &CompositeStateManager{
		Todos:  NewTodoManager("u1", "t1"),
		Memory: NewMemoryManager(failingStore{err: errors.New("down")}, "u1"),
	}
	_, err = broken.LoadAll(ctx)
	assert.True(t, types.IsErrorCode(err, types.ErrState))
}

// update(transform) 之后 load 等于 transform(之前的 load)
func TestMemoryManager_UpdateRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		m := NewMemoryManager(persistence.NewMemoryStore(), "u1", testOpts()...)

		initial := rapid.SliceOfN(rapid.StringMatching(`[a-z]{1,8}`), 0, 5).Draw(rt, "initial")
		for _, d := range initial {
			_, err := m.AddMemory(ctx, d, nil)
			require.NoError(rt, err)
		}

		op := rapid.IntRange(0, 2).Draw(rt, "op")
		transform := func(list []MemoryState) ([]MemoryState, error) {
			out := append([]MemoryState{}, list...)
			switch {
			case op == 0:
				out = append(out, MemoryState{ID: "new", Details: "added", CreatedAt: testNow})
			case op == 1 && len(out) > 0:
				out[0].Details = "edited"
			case op == 2 && len(out) > 0:
				out = out[1:]
			}
			return out, nil
		}

		before, err := m.Load(ctx)
		require.NoError(rt, err)
		want, _ := transform(before)

		require.NoError(rt, m.Update(ctx, transform))
		got, err := m.Load(ctx)
		require.NoError(rt, err)
		assert.Equal(rt, want, got)
	})
}
