package tools

import (
	"context"
	"encoding/json"

	"golang.org/x/time/rate"

	"github.com/vivekverma239/superfast-ai/types"
)

// RateLimited wraps tool so each execution first waits on limiter.
// A wait that cannot be satisfied (context done, burst exceeded) returns a
// retryable RATE_LIMIT_ERROR.
func RateLimited(tool *Tool, limiter *rate.Limiter) *Tool {
	if limiter == nil {
		return tool
	}
	next := tool.Execute
	return &Tool{
		Name:        tool.Name,
		Description: tool.Description,
		InputSchema: tool.InputSchema,
		Category:    tool.Category,
		Execute: func(ctx context.Context, input json.RawMessage) (any, error) {
			if err := limiter.Wait(ctx); err != nil {
				return nil, types.NewError(types.ErrRateLimit, "tool rate limit exceeded").
					WithCause(err).
					WithRetryable(true).
					WithContext("toolName", tool.Name)
			}
			return next(ctx, input)
		},
	}
}
