package agentctx

import (
	"github.com/vivekverma239/superfast-ai/agent/knowledge"
	"github.com/vivekverma239/superfast-ai/agent/persistence"
	"github.com/vivekverma239/superfast-ai/agent/state"
)

// BaseContext 所有智能体都需要的上下文
type BaseContext struct {
	UserID      string
	DB          persistence.Store
	Storage     ObjectStorage
	VectorStore knowledge.VectorStore
}

// Context 线程级上下文。未启用的管理器为 nil。
type Context struct {
	BaseContext

	ThreadID string
	FolderID string

	KnowledgeBase knowledge.KnowledgeBase
	Memory        *state.MemoryManager
	Todos         *state.TodoManager
	Artifacts     *state.ArtifactManager
	Messages      *state.MessageManager
}

// State returns a composite manager over the enabled managers.
func (c *Context) State() *state.CompositeStateManager {
	return &state.CompositeStateManager{
		Memory:    c.Memory,
		Todos:     c.Todos,
		Artifacts: c.Artifacts,
		Messages:  c.Messages,
	}
}
