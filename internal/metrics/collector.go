package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// DefaultNamespace 默认指标命名空间
const DefaultNamespace = "agent"

// Turn outcomes.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Collector 指标收集器
type Collector struct {
	turnsTotal    *prometheus.CounterVec
	turnDuration  *prometheus.HistogramVec
	retriesTotal  *prometheus.CounterVec
	toolFailures  *prometheus.CounterVec
	cacheRequests *prometheus.CounterVec
	breakerState  prometheus.Gauge
	llmTokens     *prometheus.CounterVec
	dbConnections *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器并注册到 reg；reg 为 nil 时使用默认注册表。
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	f := promauto.With(reg)

	c := &Collector{logger: logger.With(zap.String("component", "metrics"))}

	c.turnsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of agent turns",
		},
		[]string{"mode", "status"},
	)

	c.turnDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Agent turn duration in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"mode"},
	)

	c.retriesTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Total number of retried operations",
		},
		[]string{"label"},
	)

	c.toolFailures = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_failures_total",
			Help:      "Tool failures by tool and phase (materialize, execute)",
		},
		[]string{"tool", "phase"},
	)

	c.cacheRequests = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Provider cache lookups by result",
		},
		[]string{"result"},
	)

	c.breakerState = f.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	c.llmTokens = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Model tokens used",
		},
		[]string{"model", "type"},
	)

	c.dbConnections = f.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections",
			Help:      "Database pool connections by state",
		},
		[]string{"state"},
	)

	c.logger.Debug("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// RecordTurn 记录一次 Run/Stream
func (c *Collector) RecordTurn(mode, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.turnsTotal.WithLabelValues(mode, status).Inc()
	c.turnDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordRetry 记录一次重试
func (c *Collector) RecordRetry(label string) {
	if c == nil {
		return
	}
	c.retriesTotal.WithLabelValues(label).Inc()
}

// RecordToolFailure 记录工具失败，phase 为 materialize 或 execute
func (c *Collector) RecordToolFailure(tool, phase string) {
	if c == nil {
		return
	}
	c.toolFailures.WithLabelValues(tool, phase).Inc()
}

// RecordCacheRequest 记录缓存查询结果（hit/miss/remote_hit）
func (c *Collector) RecordCacheRequest(result string) {
	if c == nil {
		return
	}
	c.cacheRequests.WithLabelValues(result).Inc()
}

// SetBreakerState 记录熔断器状态
func (c *Collector) SetBreakerState(state string) {
	if c == nil {
		return
	}
	c.breakerState.Set(breakerValue(state))
}

// RecordTokens 记录 token 用量
func (c *Collector) RecordTokens(model string, prompt, completion int) {
	if c == nil {
		return
	}
	if prompt > 0 {
		c.llmTokens.WithLabelValues(model, "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		c.llmTokens.WithLabelValues(model, "completion").Add(float64(completion))
	}
}

// RecordDBConnections 记录连接池状态
func (c *Collector) RecordDBConnections(open, inUse, idle int) {
	if c == nil {
		return
	}
	c.dbConnections.WithLabelValues("open").Set(float64(open))
	c.dbConnections.WithLabelValues("in_use").Set(float64(inUse))
	c.dbConnections.WithLabelValues("idle").Set(float64(idle))
}

func breakerValue(state string) float64 {
	switch state {
	case "HALF_OPEN":
		return 1
	case "OPEN":
		return 2
	default:
		return 0
	}
}
