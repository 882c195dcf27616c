package agent

import (
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vivekverma239/superfast-ai/internal/metrics"
	"github.com/vivekverma239/superfast-ai/llm/circuitbreaker"
	"github.com/vivekverma239/superfast-ai/llm/retry"
	"github.com/vivekverma239/superfast-ai/llm/tokenizer"
)

// Option 配置 Agent
type Option func(*options)

type options struct {
	logger       *zap.Logger
	metrics      *metrics.Collector
	tracer       trace.Tracer
	instructions *Instructions
	breaker      *circuitbreaker.Config
	retryPolicy  *retry.Policy
	sleep        retry.SleepFunc
	tokenizer    tokenizer.Tokenizer
	now          func() time.Time
	newID        func() string
}

func defaultOptions() options {
	return options{
		logger: zap.NewNop(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics 设置 Prometheus 指标收集器
func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) { o.metrics = c }
}

// WithTracer 设置 OpenTelemetry tracer，默认使用全局 provider
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithInstructions 覆盖 cfg.SystemPrompt
func WithInstructions(i Instructions) Option {
	return func(o *options) { o.instructions = &i }
}

// WithBreakerConfig 设置熔断器参数
func WithBreakerConfig(cfg circuitbreaker.Config) Option {
	return func(o *options) { o.breaker = &cfg }
}

// WithRetryPolicy 设置退避策略；cfg.Retries 设置时覆盖 MaxRetries
func WithRetryPolicy(p retry.Policy) Option {
	return func(o *options) { o.retryPolicy = &p }
}

// WithSleep 替换重试退避的等待函数
func WithSleep(fn retry.SleepFunc) Option {
	return func(o *options) { o.sleep = fn }
}

// WithTokenizer 设置历史裁剪使用的分词器，默认按模型选择
func WithTokenizer(t tokenizer.Tokenizer) Option {
	return func(o *options) { o.tokenizer = t }
}

// WithClock 注入时钟（消息时间戳、熔断器）
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDGenerator 注入消息 id 生成器
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
		}
	}
}
