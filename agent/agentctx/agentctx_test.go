package agentctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivekverma239/superfast-ai/agent/knowledge"
	"github.com/vivekverma239/superfast-ai/agent/persistence"
	"github.com/vivekverma239/superfast-ai/agent/state"
	"github.com/vivekverma239/superfast-ai/types"
)

var constEmbedder = knowledge.EmbedderFunc(func(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
})

func newDeps() Dependencies {
	return Dependencies{
		Store:       persistence.NewMemoryStore(),
		Storage:     NewMemoryStorage(),
		VectorStore: knowledge.NewInMemoryVectorStore(nil),
	}
}

func TestFactory_CreateBase(t *testing.T) {
	deps := newDeps()
	base := NewFactory(deps).CreateBase("u1")
	assert.Equal(t, "u1", base.UserID)
	assert.Same(t, deps.Store.(*persistence.MemoryStore), base.DB.(*persistence.MemoryStore))
	assert.NotNil(t, base.Storage)
	assert.NotNil(t, base.VectorStore)
}

func TestFactory_CreateThreadDefaults(t *testing.T) {
	c := NewFactory(newDeps()).CreateThread(DefaultThreadOptions("u1", "t1"))

	assert.Equal(t, "t1", c.ThreadID)
	assert.NotNil(t, c.Memory)
	assert.NotNil(t, c.Todos)
	assert.False(t, c.Todos.Persistent())
	assert.NotNil(t, c.Artifacts)
	assert.NotNil(t, c.Messages)
	// 没有 embedder 时退回 mock
	assert.IsType(t, knowledge.MockKnowledgeBase{}, c.KnowledgeBase)
}

func TestFactory_CreateThreadSelective(t *testing.T) {
	deps := newDeps()
	deps.Embedder = constEmbedder
	opts := ThreadOptions{UserID: "u1", ThreadID: "t1", UseKnowledgeBase: true, UseTodos: true, PersistTodos: true}
	c := NewFactory(deps).CreateThread(opts)

	assert.Nil(t, c.Memory)
	assert.Nil(t, c.Artifacts)
	assert.Nil(t, c.Messages)
	require.NotNil(t, c.Todos)
	assert.True(t, c.Todos.Persistent())
	assert.IsType(t, &knowledge.VectorKnowledgeBase{}, c.KnowledgeBase)

	c = NewFactory(deps).CreateThread(ThreadOptions{UserID: "u1"})
	assert.Nil(t, c.KnowledgeBase)
}

func TestFactory_ExplicitKnowledgeBaseWins(t *testing.T) {
	deps := newDeps()
	deps.Embedder = constEmbedder
	deps.KnowledgeBase = knowledge.MockKnowledgeBase{}
	c := NewFactory(deps).CreateThread(DefaultThreadOptions("u1", "t1"))
	assert.IsType(t, knowledge.MockKnowledgeBase{}, c.KnowledgeBase)
}

func TestFactory_CreateCustom(t *testing.T) {
	deps := newDeps()
	f := NewFactory(deps)
	mem := state.NewMemoryManager(deps.Store, "u1")

	c := f.CreateCustom(f.CreateBase("u1"), func(c *Context) {
		c.ThreadID = "t9"
		c.Memory = mem
	})
	assert.Equal(t, "t9", c.ThreadID)
	assert.Same(t, mem, c.Memory)
	assert.Nil(t, c.Todos)
}

func TestContext_StateSnapshot(t *testing.T) {
	ctx := context.Background()
	c := NewFactory(newDeps()).CreateThread(DefaultThreadOptions("u1", "t1"))
	_, err := c.Memory.AddMemory(ctx, "prefers tea", nil)
	require.NoError(t, err)

	snap, err := c.State().LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Memory, 1)
	assert.Equal(t, "prefers tea", snap.Memory[0].Details)
}

func TestBuilder(t *testing.T) {
	deps := newDeps()

	t.Run("missing dependencies", func(t *testing.T) {
		_, err := NewBuilder().WithStore(deps.Store).Build()
		require.Error(t, err)
		assert.True(t, types.IsErrorCode(err, types.ErrConfiguration))
		assert.Contains(t, err.Error(), "storage, vector store, user")
	})

	t.Run("complete", func(t *testing.T) {
		c, err := NewBuilder().
			WithStore(deps.Store).
			WithStorage(deps.Storage).
			WithVectorStore(deps.VectorStore).
			WithUser("u1").
			WithThread("t1").
			WithFolder("f1").
			WithStateManagers(true, false, true).
			WithMessages(false).
			Build()
		require.NoError(t, err)
		assert.Equal(t, "f1", c.FolderID)
		assert.NotNil(t, c.Memory)
		assert.Nil(t, c.Todos)
		assert.NotNil(t, c.Artifacts)
		assert.Nil(t, c.Messages)
		assert.NotNil(t, c.KnowledgeBase)
	})
}

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	require.Error(t, s.Put(ctx, Object{}))
	require.NoError(t, s.Put(ctx, Object{Key: "u1/b.pdf", Data: []byte("b")}))
	require.NoError(t, s.Put(ctx, Object{Key: "u1/a.pdf", ContentType: "application/pdf", Data: []byte("a")}))
	require.NoError(t, s.Put(ctx, Object{Key: "u2/c.pdf"}))

	obj, err := s.Get(ctx, "u1/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", obj.ContentType)
	obj.Data[0] = 'z'
	again, _ := s.Get(ctx, "u1/a.pdf")
	assert.Equal(t, []byte("a"), again.Data)

	keys, err := s.List(ctx, "u1/")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1/a.pdf", "u1/b.pdf"}, keys)

	require.NoError(t, s.Delete(ctx, "u1/a.pdf"))
	_, err = s.Get(ctx, "u1/a.pdf")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}
