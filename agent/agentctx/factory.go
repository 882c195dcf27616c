package agentctx

import (
	"go.uber.org/zap"

	"github.com/vivekverma239/superfast-ai/agent/knowledge"
	"github.com/vivekverma239/superfast-ai/agent/persistence"
	"github.com/vivekverma239/superfast-ai/agent/state"
	"github.com/vivekverma239/superfast-ai/llm"
)

// Dependencies 创建上下文所需的外部依赖
type Dependencies struct {
	Store       persistence.Store
	Storage     ObjectStorage
	VectorStore knowledge.VectorStore

	// KnowledgeBase 为空时由 VectorStore + Embedder 构造，二者缺一则使用 mock
	KnowledgeBase knowledge.KnowledgeBase
	Embedder      knowledge.Embedder
	// AnswerProvider/AnswerModel 用于文档问答
	AnswerProvider llm.Provider
	AnswerModel    string

	StateOptions []state.Option
	Logger       *zap.Logger
}

// ThreadOptions 线程上下文选项
type ThreadOptions struct {
	UserID   string
	ThreadID string
	FolderID string

	UseKnowledgeBase bool
	UseMemory        bool
	UseTodos         bool
	UseArtifacts     bool
	UseMessages      bool
	// PersistTodos 将待办列表写入记录存储，默认只保存在进程内
	PersistTodos bool
}

// DefaultThreadOptions enables every manager and the knowledge base.
func DefaultThreadOptions(userID, threadID string) ThreadOptions {
	return ThreadOptions{
		UserID:           userID,
		ThreadID:         threadID,
		UseKnowledgeBase: true,
		UseMemory:        true,
		UseTodos:         true,
		UseArtifacts:     true,
		UseMessages:      true,
	}
}

// Factory 按依赖创建上下文
type Factory struct {
	deps   Dependencies
	logger *zap.Logger
}

// NewFactory creates a context factory.
func NewFactory(deps Dependencies) *Factory {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{deps: deps, logger: logger.With(zap.String("component", "context_factory"))}
}

// CreateBase returns a context with only the user and the dependencies.
func (f *Factory) CreateBase(userID string) BaseContext {
	return BaseContext{
		UserID:      userID,
		DB:          f.deps.Store,
		Storage:     f.deps.Storage,
		VectorStore: f.deps.VectorStore,
	}
}

// CreateThread builds a thread context with the managers opts enables.
func (f *Factory) CreateThread(opts ThreadOptions) *Context {
	c := &Context{
		BaseContext: f.CreateBase(opts.UserID),
		ThreadID:    opts.ThreadID,
		FolderID:    opts.FolderID,
	}
	if opts.UseKnowledgeBase {
		c.KnowledgeBase = f.knowledgeBase()
	}
	if opts.UseMemory {
		c.Memory = state.NewMemoryManager(f.deps.Store, opts.UserID, f.deps.StateOptions...)
	}
	if opts.UseTodos {
		todoOpts := f.deps.StateOptions
		if opts.PersistTodos {
			todoOpts = append(append([]state.Option{}, todoOpts...), state.WithTodoStore(f.deps.Store))
		}
		c.Todos = state.NewTodoManager(opts.UserID, opts.ThreadID, todoOpts...)
	}
	if opts.UseArtifacts {
		c.Artifacts = state.NewArtifactManager(f.deps.Store, opts.UserID, opts.ThreadID, f.deps.StateOptions...)
	}
	if opts.UseMessages {
		c.Messages = state.NewMessageManager(f.deps.Store, opts.UserID, opts.ThreadID, f.deps.StateOptions...)
	}
	f.logger.Debug("thread context created",
		zap.String("user_id", opts.UserID),
		zap.String("thread_id", opts.ThreadID),
		zap.Bool("memory", c.Memory != nil),
		zap.Bool("todos", c.Todos != nil),
		zap.Bool("artifacts", c.Artifacts != nil),
		zap.Bool("messages", c.Messages != nil))
	return c
}

// CreateCustom builds a bare thread context on base and lets fn inject
// custom managers or a knowledge base.
func (f *Factory) CreateCustom(base BaseContext, fn func(*Context)) *Context {
	c := &Context{BaseContext: base}
	if fn != nil {
		fn(c)
	}
	return c
}

func (f *Factory) knowledgeBase() knowledge.KnowledgeBase {
	switch {
	case f.deps.KnowledgeBase != nil:
		return f.deps.KnowledgeBase
	case f.deps.VectorStore != nil && f.deps.Embedder != nil:
		return knowledge.NewVectorKnowledgeBase(f.deps.Embedder, f.deps.VectorStore, f.deps.AnswerProvider, f.deps.AnswerModel, f.deps.Logger)
	default:
		return knowledge.MockKnowledgeBase{}
	}
}
