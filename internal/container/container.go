package container

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vivekverma239/superfast-ai/agent"
	"github.com/vivekverma239/superfast-ai/agent/agentctx"
	"github.com/vivekverma239/superfast-ai/agent/knowledge"
	"github.com/vivekverma239/superfast-ai/agent/persistence"
	"github.com/vivekverma239/superfast-ai/agent/plugins"
	"github.com/vivekverma239/superfast-ai/agent/provider"
	"github.com/vivekverma239/superfast-ai/agent/stateful"
	"github.com/vivekverma239/superfast-ai/config"
	"github.com/vivekverma239/superfast-ai/internal/cache"
	"github.com/vivekverma239/superfast-ai/internal/database"
	"github.com/vivekverma239/superfast-ai/internal/metrics"
	"github.com/vivekverma239/superfast-ai/internal/telemetry"
	"github.com/vivekverma239/superfast-ai/llm"
	"github.com/vivekverma239/superfast-ai/llm/circuitbreaker"
	"github.com/vivekverma239/superfast-ai/llm/providers/openaicompat"
	"github.com/vivekverma239/superfast-ai/llm/retry"
	"github.com/vivekverma239/superfast-ai/llm/tools"
	"github.com/vivekverma239/superfast-ai/types"
)

// Container holds the resolved service singletons.
type Container struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     persistence.Store
	remote    remoteCache
	registry  *prometheus.Registry
	metrics   *metrics.Collector
	telemetry *telemetry.Providers
	model     llm.Provider
	contexts  *agentctx.Factory
	presets   *config.PresetRegistry
	providers *provider.ProviderManager
	plugins   *plugins.Catalog
	web       webTools
}

// remoteCache 可选的 Redis 二级缓存，m 为 nil 表示未启用
type remoteCache struct{ m *cache.Manager }

// webTools 可选的 web 搜索能力与限速器
type webTools struct {
	searcher tools.WebSearcher
	limiter  *rate.Limiter
}

// Option overrides a service, mainly for tests.
type Option func(*overrides)

type overrides struct {
	logger   *zap.Logger
	model    llm.Provider
	store    persistence.Store
	registry *prometheus.Registry
	web      tools.WebSearcher
}

// WithLogger replaces the logger built from cfg.Log.
func WithLogger(l *zap.Logger) Option { return func(o *overrides) { o.logger = l } }

// WithModelProvider replaces the OpenAI-compatible provider built from cfg.LLM.
func WithModelProvider(p llm.Provider) Option { return func(o *overrides) { o.model = p } }

// WithStore replaces the record store built from cfg.Store.
func WithStore(s persistence.Store) Option { return func(o *overrides) { o.store = s } }

// WithRegistry sets the Prometheus registry metrics are registered on.
func WithRegistry(r *prometheus.Registry) Option { return func(o *overrides) { o.registry = r } }

// WithWebSearcher replaces the HTTP web client built from cfg.Web.
func WithWebSearcher(w tools.WebSearcher) Option { return func(o *overrides) { o.web = w } }

// New builds and wires all services from cfg. ctx bounds the connection
// attempts made while opening stores.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Container, error) {
	var o overrides
	for _, opt := range opts {
		opt(&o)
	}

	d := dig.New()
	constructors := []any{
		func() *config.Config { return cfg },
		func(cfg *config.Config) (*zap.Logger, error) {
			if o.logger != nil {
				return o.logger, nil
			}
			return NewLogger(cfg.Log)
		},
		func() *prometheus.Registry {
			if o.registry != nil {
				return o.registry
			}
			return prometheus.NewRegistry()
		},
		newMetrics,
		newTelemetry,
		func(cfg *config.Config, logger *zap.Logger) (persistence.Store, error) {
			if o.store != nil {
				return o.store, nil
			}
			return newStore(ctx, cfg, logger)
		},
		newRemoteCache,
		func(cfg *config.Config, logger *zap.Logger) llm.Provider {
			if o.model != nil {
				return o.model
			}
			return newModelProvider(cfg, logger)
		},
		newContextFactory,
		config.NewPresetRegistry,
		newProviderManager,
		func(logger *zap.Logger) *plugins.Catalog { return plugins.DefaultCatalog(logger) },
		func(cfg *config.Config, logger *zap.Logger) webTools {
			return newWebTools(cfg, o.web, logger)
		},
	}
	for _, c := range constructors {
		if err := d.Provide(c); err != nil {
			return nil, err
		}
	}

	var result *Container
	err := d.Invoke(func(
		logger *zap.Logger,
		registry *prometheus.Registry,
		collector *metrics.Collector,
		tel *telemetry.Providers,
		store persistence.Store,
		remote remoteCache,
		model llm.Provider,
		contexts *agentctx.Factory,
		presets *config.PresetRegistry,
		providers *provider.ProviderManager,
		catalog *plugins.Catalog,
		web webTools,
	) {
		result = &Container{
			cfg:       cfg,
			logger:    logger,
			store:     store,
			remote:    remote,
			registry:  registry,
			metrics:   collector,
			telemetry: tel,
			model:     model,
			contexts:  contexts,
			presets:   presets,
			providers: providers,
			plugins:   catalog,
			web:       web,
		}
	})
	if err != nil {
		return nil, fmt.Errorf("wire services: %w", dig.RootCause(err))
	}
	return result, nil
}

func (c *Container) Config() *config.Config               { return c.cfg }
func (c *Container) Logger() *zap.Logger                  { return c.logger }
func (c *Container) Store() persistence.Store             { return c.store }
func (c *Container) Registry() *prometheus.Registry       { return c.registry }
func (c *Container) Metrics() *metrics.Collector          { return c.metrics }
func (c *Container) ModelProvider() llm.Provider          { return c.model }
func (c *Container) ContextFactory() *agentctx.Factory    { return c.contexts }
func (c *Container) Presets() *config.PresetRegistry      { return c.presets }
func (c *Container) Providers() *provider.ProviderManager { return c.providers }
func (c *Container) Plugins() *plugins.Catalog            { return c.plugins }

// =============================================================================
// 构造函数
// =============================================================================

func newMetrics(cfg *config.Config, reg *prometheus.Registry, logger *zap.Logger) *metrics.Collector {
	if !cfg.Metrics.Enabled {
		// 未启用时注册到独立的 registry，方法调用照常但不对外暴露
		reg = prometheus.NewRegistry()
	}
	return metrics.NewCollector(cfg.Metrics.Namespace, reg, logger)
}

func newTelemetry(cfg *config.Config, logger *zap.Logger) (*telemetry.Providers, error) {
	return telemetry.Init(cfg.Telemetry, logger)
}

// StoreConfig maps the flat config sections onto persistence.StoreConfig.
func StoreConfig(cfg *config.Config) persistence.StoreConfig {
	pool := database.DefaultPoolConfig()
	if cfg.Database.MaxOpenConns > 0 {
		pool.MaxOpenConns = cfg.Database.MaxOpenConns
	}
	if cfg.Database.MaxIdleConns > 0 {
		pool.MaxIdleConns = cfg.Database.MaxIdleConns
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		pool.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
	}
	return persistence.StoreConfig{
		Type: persistence.StoreType(cfg.Store.Type),
		Redis: persistence.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			PoolSize:  cfg.Redis.PoolSize,
			KeyPrefix: cfg.Store.KeyPrefix,
		},
		Database: database.Config{
			Driver: cfg.Database.Driver,
			DSN:    cfg.Database.DSNString(),
			Pool:   pool,
		},
		Mongo: persistence.MongoConfig{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
			Timeout:    cfg.Mongo.Timeout,
		},
	}
}

func newStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (persistence.Store, error) {
	return persistence.NewStore(ctx, StoreConfig(cfg), logger)
}

func newRemoteCache(cfg *config.Config, logger *zap.Logger) (remoteCache, error) {
	if !cfg.Cache.Enabled || cfg.Cache.Backend != "redis" {
		return remoteCache{}, nil
	}
	m, err := cache.NewManager(cache.Config{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		KeyPrefix:  cfg.Cache.KeyPrefix,
		DefaultTTL: cfg.Cache.TTL,
	}, logger)
	if err != nil {
		return remoteCache{}, err
	}
	return remoteCache{m: m}, nil
}

func newModelProvider(cfg *config.Config, logger *zap.Logger) llm.Provider {
	return openaicompat.New(openaicompat.Config{
		ProviderName:   cfg.LLM.Provider,
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		DefaultModel:   cfg.Agent.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Timeout:        cfg.LLM.Timeout,
	}, logger)
}

// embedder 是支持向量化的模型服务
type embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

func newContextFactory(cfg *config.Config, store persistence.Store, model llm.Provider, logger *zap.Logger) *agentctx.Factory {
	deps := agentctx.Dependencies{
		Store:          store,
		Storage:        agentctx.NewMemoryStorage(),
		VectorStore:    knowledge.NewInMemoryVectorStore(logger),
		AnswerProvider: model,
		AnswerModel:    cfg.Agent.Model,
		Logger:         logger,
	}
	if e, ok := model.(embedder); ok {
		deps.Embedder = knowledge.EmbedderFunc(e.Embed)
	}
	return agentctx.NewFactory(deps)
}

func newProviderManager(cfg *config.Config, store persistence.Store, remote remoteCache, collector *metrics.Collector, logger *zap.Logger) *provider.ProviderManager {
	f := &provider.ProviderFactory{
		Store:    store,
		Cache:    remote.m,
		TTL:      cfg.Cache.TTL,
		Cached:   cfg.Cache.Enabled,
		Logger:   logger,
		Observer: collector.RecordCacheRequest,
	}
	m := provider.NewProviderManager()
	f.RegisterAll(m)
	return m
}

func newWebTools(cfg *config.Config, override tools.WebSearcher, logger *zap.Logger) webTools {
	w := webTools{searcher: override}
	if w.searcher == nil && cfg.Web.SearchEndpoint != "" {
		w.searcher = tools.NewHTTPWebClient(tools.HTTPWebClientConfig{
			SearchEndpoint: cfg.Web.SearchEndpoint,
			Readability:    cfg.Web.Readability,
		}, logger)
	}
	if cfg.Web.RateLimit > 0 {
		burst := cfg.Web.Burst
		if burst < 1 {
			burst = 1
		}
		w.limiter = rate.NewLimiter(rate.Limit(cfg.Web.RateLimit), burst)
	}
	return w
}

// =============================================================================
// 智能体
// =============================================================================

// AgentRequest identifies the thread an agent serves.
type AgentRequest struct {
	// Preset 为空时使用 cfg.Agent
	Preset   string
	UserID   string
	ThreadID string
	FolderID string
	// Plugins 从插件目录安装的插件名
	Plugins []string
}

// AgentConfig returns the agent config a request resolves to.
func (c *Container) AgentConfig(req AgentRequest) (stateful.Config, error) {
	if req.Preset == "" {
		return c.cfg.Agent.Clone(), nil
	}
	preset, ok := c.presets.Get(req.Preset)
	if !ok {
		return stateful.Config{}, types.NewConfigurationError(fmt.Sprintf("preset %s not found", req.Preset)).
			WithContext("preset", req.Preset)
	}
	return preset, nil
}

// NewAgent builds a stateful agent bound to a fresh thread context.
func (c *Container) NewAgent(ctx context.Context, req AgentRequest) (*stateful.Agent, error) {
	if req.UserID == "" {
		return nil, types.NewConfigurationError("user id is required")
	}
	cfg, err := c.AgentConfig(req)
	if err != nil {
		return nil, err
	}

	opts := agentctx.DefaultThreadOptions(req.UserID, req.ThreadID)
	opts.FolderID = req.FolderID
	opts.PersistTodos = c.cfg.Store.PersistTodos
	actx := c.contexts.CreateThread(opts)

	res := c.cfg.Resilience
	a, err := stateful.New(cfg, agent.Deps{Provider: c.model, Context: actx},
		stateful.WithLogger(c.logger),
		stateful.WithWebSearcher(c.web.searcher),
		stateful.WithWebRateLimit(c.web.limiter),
		stateful.WithAgentOptions(
			agent.WithMetrics(c.metrics),
			agent.WithBreakerConfig(circuitbreaker.Config{
				FailureThreshold: res.Breaker.FailureThreshold,
				ResetTimeout:     res.Breaker.ResetTimeout,
			}),
			agent.WithRetryPolicy(retry.Policy{
				MaxRetries:        agent.DefaultRetries,
				BaseDelay:         res.Retry.BaseDelay,
				MaxDelay:          res.Retry.MaxDelay,
				BackoffMultiplier: res.Retry.BackoffMultiplier,
				Jitter:            res.Retry.Jitter,
			}),
		),
	)
	if err != nil {
		return nil, err
	}

	if len(req.Plugins) > 0 {
		ps, err := c.plugins.Build(req.Plugins...)
		if err != nil {
			return nil, err
		}
		if err := plugins.InstallAll(ctx, a.Agent, ps, c.logger); err != nil {
			a.Cleanup(ctx)
			return nil, err
		}
	}
	return a, nil
}

// =============================================================================
// 健康检查与关闭
// =============================================================================

// ServiceHealth reports the backing services.
type ServiceHealth struct {
	Store string              `json:"store"`
	Cache string              `json:"cache,omitempty"`
	Pool  *database.PoolStats `json:"pool,omitempty"`
}

// Healthy reports whether every backing service answered.
func (h ServiceHealth) Healthy() bool {
	return h.Store == agent.StatusHealthy && (h.Cache == "" || h.Cache == agent.StatusHealthy)
}

// CheckServices pings the store and cache and refreshes the pool gauges.
func (c *Container) CheckServices(ctx context.Context) ServiceHealth {
	h := ServiceHealth{Store: agent.StatusHealthy}
	if err := c.store.Ping(ctx); err != nil {
		c.logger.Warn("store ping failed", zap.Error(err))
		h.Store = agent.StatusUnhealthy
	}
	if c.remote.m != nil {
		h.Cache = agent.StatusHealthy
		if err := c.remote.m.Ping(ctx); err != nil {
			c.logger.Warn("cache ping failed", zap.Error(err))
			h.Cache = agent.StatusUnhealthy
		}
	}
	if sql, ok := c.store.(*persistence.SQLStore); ok {
		stats := sql.PoolStats()
		h.Pool = &stats
		c.metrics.RecordDBConnections(stats.OpenConnections, stats.InUse, stats.Idle)
	}
	return h
}

// Close releases every service in reverse construction order.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if c.remote.m != nil {
		errs = append(errs, c.remote.m.Close())
	}
	errs = append(errs, c.store.Close())
	if c.telemetry != nil {
		errs = append(errs, c.telemetry.Shutdown(ctx))
	}
	_ = c.logger.Sync()
	return errors.Join(errs...)
}
