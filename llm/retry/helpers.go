package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/vivekverma239/superfast-ai/types"
	"go.uber.org/zap"
)

// WithTimeout 以 d 为硬性期限运行 op；超时返回可重试的 TIMEOUT_ERROR。
// op 收到的 ctx 在超时时被取消，超时后其返回值被丢弃。
func WithTimeout[T any](ctx context.Context, d time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := op(ctx)
		done <- result{v: v, err: err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		if ctx.Err() == context.DeadlineExceeded {
			return zero, types.NewError(types.ErrTimeout,
				fmt.Sprintf("Operation timed out after %dms", d.Milliseconds())).
				WithRetryable(true)
		}
		return zero, types.ClassifyError(ctx.Err())
	}
}

// WithFallback 运行 primary，失败时记录日志并改用 fallback。
// 两者都失败时返回 fallback 的错误，并包装 primary 的错误。
func WithFallback[T any](ctx context.Context, logger *zap.Logger,
	primary, fallback func(ctx context.Context) (T, error)) (T, error) {
	v, err := primary(ctx)
	if err == nil {
		return v, nil
	}
	if logger != nil {
		logger.Warn("primary operation failed, using fallback", zap.Error(err))
	}

	fv, ferr := fallback(ctx)
	if ferr != nil {
		var zero T
		return zero, fmt.Errorf("fallback failed: %w (primary: %w)", ferr, err)
	}
	return fv, nil
}
