package circuitbreaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vivekverma239/superfast-ai/types"
	"go.uber.org/zap"
)

// State 熔断器状态
type State string

const (
	// StateClosed 关闭状态（正常工作）
	StateClosed State = "CLOSED"
	// StateOpen 打开状态（熔断中，快速拒绝）
	StateOpen State = "OPEN"
	// StateHalfOpen 半开状态（试探性恢复）
	StateHalfOpen State = "HALF_OPEN"
)

func (s State) String() string { return string(s) }

// Config 熔断器配置
type Config struct {
	// FailureThreshold 连续失败次数阈值（触发熔断）
	FailureThreshold int

	// ResetTimeout 熔断后到允许试探调用的等待时间，固定时长
	ResetTimeout time.Duration

	// OnStateChange 状态变更回调，在锁外同步调用
	OnStateChange func(from State, to State)
}

// DefaultConfig 返回默认配置：5 次失败熔断，30 秒后试探
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
}

// Snapshot 熔断器状态快照
type Snapshot struct {
	State           State     `json:"state"`
	FailureCount    int       `json:"failureCount"`
	LastFailureTime time.Time `json:"lastFailureTime,omitempty"`
	NextAttemptTime time.Time `json:"nextAttemptTime,omitempty"`
}

// Breaker 三态熔断器。
//
// 运行或拒绝的决定、调用结束后的状态转换都在同一把锁内完成，
// Execute 返回时本次调用引起的状态转换已经提交。
type Breaker struct {
	config Config
	logger *zap.Logger
	now    func() time.Time

	mu              sync.Mutex
	state           State
	failureCount    int
	lastFailureTime time.Time
	nextAttemptTime time.Time
}

// Option 配置 Breaker
type Option func(*Breaker)

// WithClock 注入时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// New 创建熔断器，非法参数回落到默认值
func New(config Config, logger *zap.Logger, opts ...Option) *Breaker {
	def := DefaultConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = def.ResetTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &Breaker{
		config: config,
		logger: logger.With(zap.String("component", "circuit_breaker")),
		now:    time.Now,
		state:  StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type transition struct {
	from, to State
}

// Execute 在熔断器保护下执行 op。
//
// OPEN 且未到 nextAttemptTime 时直接返回可重试的 CIRCUIT_BREAKER_OPEN，
// 不会调用 op；op 的错误在记录失败后原样返回。
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	if err := b.beforeCall(); err != nil {
		return err
	}

	err := op(ctx)
	b.afterCall(err == nil)
	return err
}

// beforeCall 调用前检查
func (b *Breaker) beforeCall() error {
	var changed *transition

	b.mu.Lock()
	if b.state == StateOpen {
		now := b.now()
		if now.Before(b.nextAttemptTime) {
			next := b.nextAttemptTime
			b.mu.Unlock()
			return types.NewError(types.ErrCircuitBreakerOpen, "Circuit breaker is OPEN").
				WithRetryable(true).
				WithContext("nextAttemptTime", next)
		}
		changed = b.setStateLocked(StateHalfOpen)
		b.logger.Info("circuit breaker half-open")
	}
	b.mu.Unlock()

	b.notify(changed)
	return nil
}

// afterCall 调用后处理
func (b *Breaker) afterCall(success bool) {
	var changed *transition

	b.mu.Lock()
	if success {
		changed = b.onSuccessLocked()
	} else {
		changed = b.onFailureLocked()
	}
	b.mu.Unlock()

	b.notify(changed)
}

func (b *Breaker) onSuccessLocked() *transition {
	b.failureCount = 0
	if b.state == StateHalfOpen {
		b.logger.Info("circuit breaker closed after successful probe")
		return b.setStateLocked(StateClosed)
	}
	return nil
}

func (b *Breaker) onFailureLocked() *transition {
	now := b.now()
	b.failureCount++
	b.lastFailureTime = now

	switch b.state {
	case StateHalfOpen:
		b.nextAttemptTime = now.Add(b.config.ResetTimeout)
		b.logger.Warn("circuit breaker probe failed, reopening",
			zap.Int("failure_count", b.failureCount),
			zap.Time("next_attempt", b.nextAttemptTime),
		)
		return b.setStateLocked(StateOpen)
	case StateClosed:
		if b.failureCount >= b.config.FailureThreshold {
			b.nextAttemptTime = now.Add(b.config.ResetTimeout)
			b.logger.Warn("circuit breaker opened",
				zap.Int("failure_count", b.failureCount),
				zap.Int("threshold", b.config.FailureThreshold),
				zap.Time("next_attempt", b.nextAttemptTime),
			)
			return b.setStateLocked(StateOpen)
		}
	}
	return nil
}

func (b *Breaker) setStateLocked(to State) *transition {
	from := b.state
	if from == to {
		return nil
	}
	b.state = to
	return &transition{from: from, to: to}
}

func (b *Breaker) notify(t *transition) {
	if t != nil && b.config.OnStateChange != nil {
		b.config.OnStateChange(t.from, t.to)
	}
}

// State 返回当前状态
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot 返回状态快照
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		State:           b.state,
		FailureCount:    b.failureCount,
		LastFailureTime: b.lastFailureTime,
		NextAttemptTime: b.nextAttemptTime,
	}
}

// Reset 手动恢复到 CLOSED 并清空计数
func (b *Breaker) Reset() {
	b.mu.Lock()
	changed := b.setStateLocked(StateClosed)
	b.failureCount = 0
	b.lastFailureTime = time.Time{}
	b.nextAttemptTime = time.Time{}
	b.mu.Unlock()

	b.logger.Info("circuit breaker reset")
	b.notify(changed)
}

// String 便于日志输出
func (s Snapshot) String() string {
	return fmt.Sprintf("%s(failures=%d)", s.State, s.FailureCount)
}
