package agent

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vivekverma239/superfast-ai/agent/agentctx"
	"github.com/vivekverma239/superfast-ai/config"
	"github.com/vivekverma239/superfast-ai/internal/metrics"
	"github.com/vivekverma239/superfast-ai/internal/telemetry"
	"github.com/vivekverma239/superfast-ai/llm"
	"github.com/vivekverma239/superfast-ai/llm/circuitbreaker"
	"github.com/vivekverma239/superfast-ai/llm/retry"
	"github.com/vivekverma239/superfast-ai/llm/tokenizer"
	"github.com/vivekverma239/superfast-ai/llm/tools"
)

// Config 智能体运行参数，构造时复制
type Config = config.AgentConfig

// ToolFactory 在绑定上下文后物化的工具工厂
type ToolFactory = tools.Factory[*agentctx.Context]

// Health status values.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Deps 智能体依赖
type Deps struct {
	Provider llm.Provider
	Context  *agentctx.Context
}

// Agent 有状态的工具调用智能体。一个实例只服务一轮进行中的对话。
type Agent struct {
	config       Config
	provider     llm.Provider
	actx         *agentctx.Context
	registry     *tools.FactoryRegistry[*agentctx.Context]
	runner       *tools.Runner
	breaker      *circuitbreaker.Breaker
	retrier      *retry.Manager
	tokenizer    tokenizer.Tokenizer
	instructions Instructions

	metrics *metrics.Collector
	tracer  trace.Tracer
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string

	pluginMu    sync.RWMutex
	plugins     map[string]Plugin
	pluginOrder []string
}

// New 校验配置并创建智能体。MaxSteps 为 0 时取 config.DefaultMaxSteps。
func New(cfg Config, deps Deps, opts ...Option) (*Agent, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	cfg = cfg.Clone()
	if cfg.MaxSteps == 0 {
		cfg.MaxSteps = config.DefaultMaxSteps
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Provider == nil {
		return nil, configError("llm provider is required")
	}
	if deps.Context == nil {
		return nil, configError("agent context is required")
	}

	logger := o.logger.With(
		zap.String("component", "agent"),
		zap.String("model", cfg.Model),
		zap.String("user_id", deps.Context.UserID),
		zap.String("thread_id", deps.Context.ThreadID),
	)

	a := &Agent{
		config:   cfg,
		provider: deps.Provider,
		actx:     deps.Context,
		metrics:  o.metrics,
		tracer:   o.tracer,
		logger:   logger,
		now:      o.now,
		newID:    o.newID,
		plugins:  make(map[string]Plugin),
	}
	if a.tracer == nil {
		a.tracer = telemetry.Tracer()
	}

	a.instructions = StaticInstructions(cfg.SystemPrompt)
	if o.instructions != nil {
		a.instructions = *o.instructions
	}

	a.tokenizer = o.tokenizer
	if a.tokenizer == nil && cfg.MaxHistoryTokens > 0 {
		a.tokenizer = tokenizer.ForModel(cfg.Model, logger)
	}

	a.registry = tools.NewFactoryRegistry[*agentctx.Context](logger)
	a.registry.OnFactoryError = func(name string, err error) {
		a.metrics.RecordToolFailure(name, "materialize")
	}
	a.registry.SetContext(deps.Context)

	a.runner = tools.NewRunner(deps.Provider, logger)
	a.runner.OnToolError = func(name string, err error) {
		a.metrics.RecordToolFailure(name, "execute")
	}

	a.breaker = circuitbreaker.New(a.breakerConfig(o.breaker), logger, circuitbreaker.WithClock(o.now))
	a.metrics.SetBreakerState(a.breaker.State().String())

	var retryOpts []retry.Option
	if o.sleep != nil {
		retryOpts = append(retryOpts, retry.WithSleep(o.sleep))
	}
	a.retrier = retry.NewManager(a.retryPolicy(o.retryPolicy), logger, retryOpts...)

	return a, nil
}

func (a *Agent) breakerConfig(override *circuitbreaker.Config) circuitbreaker.Config {
	cfg := circuitbreaker.DefaultConfig()
	if override != nil {
		cfg = *override
	}
	next := cfg.OnStateChange
	cfg.OnStateChange = func(from, to circuitbreaker.State) {
		a.metrics.SetBreakerState(to.String())
		if next != nil {
			next(from, to)
		}
	}
	return cfg
}

func (a *Agent) retryPolicy(override *retry.Policy) retry.Policy {
	p := retry.DefaultPolicy()
	if override != nil {
		p = *override
	}
	p.MaxRetries = DefaultRetries
	if a.config.Retries != nil {
		p.MaxRetries = *a.config.Retries
	}
	next := p.OnRetry
	p.OnRetry = func(label string, attempt int, err error, delay time.Duration) {
		a.metrics.RecordRetry(label)
		if next != nil {
			next(label, attempt, err, delay)
		}
	}
	return p
}

// Config returns a copy of the agent's configuration.
func (a *Agent) Config() Config {
	return a.config.Clone()
}

// Context 返回绑定的上下文
func (a *Agent) Context() *agentctx.Context {
	return a.actx
}

// Logger returns the agent's scoped logger.
func (a *Agent) Logger() *zap.Logger {
	return a.logger
}

// =============================================================================
// 工具管理
// =============================================================================

// RegisterTool 注册已物化的工具
func (a *Agent) RegisterTool(tool *tools.Tool) error {
	return a.registry.Register(tool)
}

// RegisterToolFactory 注册工具工厂，首次 GetTools 时物化
func (a *Agent) RegisterToolFactory(f ToolFactory) error {
	return a.registry.RegisterFactory(f)
}

// UnregisterTool 同时移除工具与工厂
func (a *Agent) UnregisterTool(name string) bool {
	return a.registry.Unregister(name)
}

// GetTools 物化所有待处理工厂并按 filter 返回工具
func (a *Agent) GetTools(ctx context.Context, filter tools.Filter) (map[string]*tools.Tool, error) {
	return a.registry.GetTools(ctx, filter)
}

// ToolNames 返回排序后的工具名（含未物化的工厂）
func (a *Agent) ToolNames() []string {
	return a.registry.List()
}

// =============================================================================
// 状态与健康检查
// =============================================================================

// State 智能体状态快照
type State struct {
	Config          Config                  `json:"config"`
	Breaker         circuitbreaker.Snapshot `json:"circuitBreaker"`
	Tools           []string                `json:"tools"`
	Plugins         []string                `json:"plugins"`
	FailedToolCount int                     `json:"failedToolCount"`
	FailedTools     []string                `json:"failedTools,omitempty"`
	Instructions    string                  `json:"instructions"`
}

// GetState 返回当前状态快照
func (a *Agent) GetState() State {
	failures := a.registry.Failures()
	failed := make([]string, 0, len(failures))
	for name := range failures {
		failed = append(failed, name)
	}
	sort.Strings(failed)

	kind := "static"
	if a.instructions.IsDerived() {
		kind = "derived"
	}
	return State{
		Config:          a.Config(),
		Breaker:         a.breaker.Snapshot(),
		Tools:           a.registry.List(),
		Plugins:         a.Plugins(),
		FailedToolCount: len(failed),
		FailedTools:     failed,
		Instructions:    kind,
	}
}

// HealthStatus 健康检查结果
type HealthStatus struct {
	Status              string               `json:"status"`
	CircuitBreakerState circuitbreaker.State `json:"circuitBreakerState"`
	ToolCount           int                  `json:"toolCount"`
	PluginCount         int                  `json:"pluginCount"`
	FailedToolCount     int                  `json:"failedToolCount"`
	StoreError          string               `json:"storeError,omitempty"`
	Config              Config               `json:"config"`
}

// HealthCheck 熔断器 OPEN 或存储不可达时为 unhealthy
func (a *Agent) HealthCheck(ctx context.Context) HealthStatus {
	state := a.breaker.State()
	h := HealthStatus{
		Status:              StatusHealthy,
		CircuitBreakerState: state,
		ToolCount:           a.registry.Len(),
		PluginCount:         a.pluginCount(),
		FailedToolCount:     a.registry.FailedCount(),
		Config:              a.Config(),
	}
	if state == circuitbreaker.StateOpen {
		h.Status = StatusUnhealthy
	}
	if a.actx.DB != nil {
		if err := a.actx.DB.Ping(ctx); err != nil {
			h.Status = StatusUnhealthy
			h.StoreError = err.Error()
		}
	}
	return h
}

// ResetCircuitBreaker 手动关闭熔断器
func (a *Agent) ResetCircuitBreaker() {
	a.breaker.Reset()
	a.metrics.SetBreakerState(a.breaker.State().String())
}

// Cleanup 按安装逆序卸载所有插件（失败只记录日志），然后清空工具注册表
func (a *Agent) Cleanup(ctx context.Context) {
	a.pluginMu.Lock()
	order := append([]string(nil), a.pluginOrder...)
	plugins := a.plugins
	a.plugins = make(map[string]Plugin)
	a.pluginOrder = nil
	a.pluginMu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		a.uninstallQuietly(ctx, plugins[order[i]])
	}

	a.registry.Clear()
	a.logger.Debug("agent cleaned up", zap.Int("plugins", len(order)))
}

// uninstallQuietly 卸载单个插件，错误与 panic 只记录日志
func (a *Agent) uninstallQuietly(ctx context.Context, p Plugin) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("plugin uninstall panicked during cleanup",
				zap.String("plugin", p.Name()),
				zap.Any("panic", r),
			)
		}
	}()
	if err := p.Uninstall(ctx, a); err != nil {
		a.logger.Warn("plugin uninstall failed during cleanup",
			zap.String("plugin", p.Name()),
			zap.Error(err),
		)
	}
}
