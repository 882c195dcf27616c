package stateful

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vivekverma239/superfast-ai/agent"
	"github.com/vivekverma239/superfast-ai/agent/state"
	"github.com/vivekverma239/superfast-ai/config"
	"github.com/vivekverma239/superfast-ai/llm/tools"
	"github.com/vivekverma239/superfast-ai/types"
)

// Config 带四个工具开关的智能体配置
type Config = config.StatefulAgentConfig

// Option 配置有状态智能体
type Option func(*options)

type options struct {
	agentOpts  []agent.Option
	web        tools.WebSearcher
	webLimiter *rate.Limiter
	logger     *zap.Logger
}

// WithAgentOptions 透传给 agent.New
func WithAgentOptions(opts ...agent.Option) Option {
	return func(o *options) { o.agentOpts = append(o.agentOpts, opts...) }
}

// WithWebSearcher 设置 web 工具使用的搜索能力
func WithWebSearcher(w tools.WebSearcher) Option {
	return func(o *options) { o.web = w }
}

// WithWebRateLimit 限制 web 工具的调用速率，nil 表示不限
func WithWebRateLimit(l *rate.Limiter) Option {
	return func(o *options) { o.webLimiter = l }
}

// WithLogger 设置日志，同时传给内部 agent
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Agent 是注册了内置状态工具的 agent.Agent
type Agent struct {
	*agent.Agent

	flags Config
}

// New 创建有状态智能体并按开关注册工具工厂
func New(cfg Config, deps agent.Deps, opts ...Option) (*Agent, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	base := cfg.SystemPrompt
	if base == "" {
		base = DefaultSystemPrompt
	}
	instructions := agent.StaticInstructions(base)
	if cfg.IncludeMemory {
		instructions = memoryInstructions(base)
	}

	agentOpts := append([]agent.Option{
		agent.WithLogger(o.logger),
		agent.WithInstructions(instructions),
	}, o.agentOpts...)

	core, err := agent.New(cfg.AgentConfig, deps, agentOpts...)
	if err != nil {
		return nil, err
	}

	a := &Agent{Agent: core, flags: cfg}
	a.flags.AgentConfig = core.Config()
	for _, f := range factories(cfg, o.web, o.webLimiter) {
		if err := core.RegisterToolFactory(f); err != nil {
			return nil, err
		}
	}

	o.logger.Debug("stateful agent created",
		zap.Bool("memory", cfg.IncludeMemory),
		zap.Bool("todos", cfg.IncludeTodoList),
		zap.Bool("artifacts", cfg.IncludeArtifacts),
		zap.Bool("web", cfg.IncludeWebTools),
		zap.Strings("tools", core.ToolNames()))
	return a, nil
}

// Flags returns the tool switches the agent was built with.
func (a *Agent) Flags() Config {
	return a.flags
}

// LoadState returns memory, todos and artifacts of the bound thread.
// Messages are not included.
func (a *Agent) LoadState(ctx context.Context) (*state.Snapshot, error) {
	c := a.Context()
	composite := &state.CompositeStateManager{
		Memory:    c.Memory,
		Todos:     c.Todos,
		Artifacts: c.Artifacts,
	}
	return composite.LoadAll(ctx)
}

// LoadMessages returns the thread history in creation order.
func (a *Agent) LoadMessages(ctx context.Context) ([]types.Message, error) {
	c := a.Context()
	if c.Messages == nil {
		return nil, nil
	}
	return c.Messages.Load(ctx)
}
