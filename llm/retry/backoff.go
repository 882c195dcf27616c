package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/vivekverma239/superfast-ai/types"
	"go.uber.org/zap"
)

// Policy 定义重试策略配置
type Policy struct {
	MaxRetries        int           // 最大重试次数（0 表示不重试）
	BaseDelay         time.Duration // 初始延迟时间
	MaxDelay          time.Duration // 最大延迟时间
	BackoffMultiplier float64       // 延迟时间倍增因子（指数退避）
	Jitter            bool          // 是否添加随机抖动（最多 +10%）

	// OnRetry 在每次退避等待前调用
	OnRetry func(label string, attempt int, err error, delay time.Duration)
}

// DefaultPolicy 返回默认的重试策略：3 次重试，1s 起步，10s 封顶，倍数 2
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:        3,
		BaseDelay:         1 * time.Second,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// SleepFunc 等待 d，或在 ctx 取消时提前返回
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Manager 基于指数退避的重试管理器
type Manager struct {
	policy Policy
	logger *zap.Logger
	sleep  SleepFunc
}

// Option 配置 Manager
type Option func(*Manager)

// WithSleep 替换退避等待函数（测试中用于记录延迟而不真正休眠）
func WithSleep(fn SleepFunc) Option {
	return func(m *Manager) { m.sleep = fn }
}

// NewManager 创建重试管理器，非法参数回落到默认值
func NewManager(policy Policy, logger *zap.Logger, opts ...Option) *Manager {
	def := DefaultPolicy()
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = def.BaseDelay
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = def.MaxDelay
	}
	if policy.BackoffMultiplier < 1.0 {
		policy.BackoffMultiplier = def.BackoffMultiplier
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		policy: policy,
		logger: logger.With(zap.String("component", "retry_manager")),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Policy 返回生效的策略
func (m *Manager) Policy() Policy {
	return m.policy
}

// ExecuteWithRetry 最多执行 op MaxRetries+1 次。
//
// 每次失败都会经 types.ClassifyError 分类：不可重试的错误立即返回；
// 重试次数耗尽后返回 MAX_RETRIES_EXCEEDED，并包装最后一次错误。
func (m *Manager) ExecuteWithRetry(ctx context.Context, op func(ctx context.Context) error, label string) error {
	var lastErr *types.Error

	for attempt := 0; attempt <= m.policy.MaxRetries; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 0 {
				m.logger.Info("retry succeeded",
					zap.String("label", label),
					zap.Int("attempt", attempt+1),
				)
			}
			return nil
		}

		lastErr = types.ClassifyError(err)
		if !lastErr.Retryable {
			m.logger.Debug("non-retryable error",
				zap.String("label", label),
				zap.String("code", string(lastErr.Code)),
				zap.Error(err),
			)
			return lastErr
		}

		if attempt == m.policy.MaxRetries {
			break
		}

		delay := m.Delay(attempt)
		m.logger.Warn("operation failed, retrying",
			zap.String("label", label),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", m.policy.MaxRetries),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if m.policy.OnRetry != nil {
			m.policy.OnRetry(label, attempt+1, lastErr, delay)
		}

		if err := m.sleep(ctx, delay); err != nil {
			return types.ClassifyError(fmt.Errorf("%s: retry aborted: %w", label, err))
		}
	}

	attempts := m.policy.MaxRetries + 1
	m.logger.Warn("retries exhausted",
		zap.String("label", label),
		zap.Int("attempts", attempts),
		zap.Error(lastErr),
	)
	return types.NewExecutionError(types.ErrMaxRetriesExceeded,
		fmt.Sprintf("%s failed after %d attempts", label, attempts), false).
		WithCause(lastErr).
		WithContext("label", label).
		WithContext("attempts", attempts)
}

// Delay 计算第 attempt 次失败（从 0 开始）之后的等待时间：
// min(BaseDelay * BackoffMultiplier^attempt, MaxDelay)
func (m *Manager) Delay(attempt int) time.Duration {
	delay := float64(m.policy.BaseDelay) * math.Pow(m.policy.BackoffMultiplier, float64(attempt))
	if delay > float64(m.policy.MaxDelay) {
		delay = float64(m.policy.MaxDelay)
	}
	if m.policy.Jitter {
		delay += rand.Float64() * delay * 0.1
	}
	return time.Duration(delay)
}
