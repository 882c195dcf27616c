package agentctx

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/vivekverma239/superfast-ai/agent/knowledge"
	"github.com/vivekverma239/superfast-ai/agent/persistence"
	"github.com/vivekverma239/superfast-ai/agent/state"
	"github.com/vivekverma239/superfast-ai/types"
)

// Builder 链式构造线程上下文
//
//	ctx, err := agentctx.NewBuilder().
//		WithStore(store).WithStorage(storage).WithVectorStore(vs).
//		WithUser("u1").WithThread("t1").
//		Build()
type Builder struct {
	deps Dependencies
	opts ThreadOptions
}

// NewBuilder returns a builder with every manager enabled.
func NewBuilder() *Builder {
	return &Builder{opts: DefaultThreadOptions("", "")}
}

func (b *Builder) WithStore(store persistence.Store) *Builder {
	b.deps.Store = store
	return b
}

func (b *Builder) WithStorage(storage ObjectStorage) *Builder {
	b.deps.Storage = storage
	return b
}

func (b *Builder) WithVectorStore(vs knowledge.VectorStore) *Builder {
	b.deps.VectorStore = vs
	return b
}

func (b *Builder) WithEmbedder(e knowledge.Embedder) *Builder {
	b.deps.Embedder = e
	return b
}

func (b *Builder) WithUser(userID string) *Builder {
	b.opts.UserID = userID
	return b
}

func (b *Builder) WithThread(threadID string) *Builder {
	b.opts.ThreadID = threadID
	return b
}

func (b *Builder) WithFolder(folderID string) *Builder {
	b.opts.FolderID = folderID
	return b
}

// WithKnowledgeBase sets an explicit knowledge base.
func (b *Builder) WithKnowledgeBase(kb knowledge.KnowledgeBase) *Builder {
	b.deps.KnowledgeBase = kb
	b.opts.UseKnowledgeBase = true
	return b
}

// WithStateManagers toggles the memory, todo and artifact managers.
func (b *Builder) WithStateManagers(memory, todos, artifacts bool) *Builder {
	b.opts.UseMemory = memory
	b.opts.UseTodos = todos
	b.opts.UseArtifacts = artifacts
	return b
}

func (b *Builder) WithMessages(enabled bool) *Builder {
	b.opts.UseMessages = enabled
	return b
}

func (b *Builder) WithPersistentTodos(enabled bool) *Builder {
	b.opts.PersistTodos = enabled
	return b
}

func (b *Builder) WithStateOptions(opts ...state.Option) *Builder {
	b.deps.StateOptions = append(b.deps.StateOptions, opts...)
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.deps.Logger = logger
	return b
}

// Build validates the dependencies and creates the context.
func (b *Builder) Build() (*Context, error) {
	var missing []string
	if b.deps.Store == nil {
		missing = append(missing, "store")
	}
	if b.deps.Storage == nil {
		missing = append(missing, "storage")
	}
	if b.deps.VectorStore == nil {
		missing = append(missing, "vector store")
	}
	if b.opts.UserID == "" {
		missing = append(missing, "user")
	}
	if len(missing) > 0 {
		return nil, types.NewConfigurationError(fmt.Sprintf("missing required dependencies: %s", strings.Join(missing, ", "))).
			WithContext("missing", missing)
	}
	return NewFactory(b.deps).CreateThread(b.opts), nil
}
