package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vivekverma239/superfast-ai/types"
)

func TestWithTimeout(t *testing.T) {
	t.Run("completes in time", func(t *testing.T) {
		v, err := WithTimeout(context.Background(), time.Second, func(context.Context) (string, error) {
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", v)
	})

	t.Run("times out", func(t *testing.T) {
		_, err := WithTimeout(context.Background(), 20*time.Millisecond, func(ctx context.Context) (string, error) {
			<-ctx.Done()
			time.Sleep(10 * time.Millisecond)
			return "late", nil
		})
		require.Error(t, err)
		e, ok := types.AsError(err)
		require.True(t, ok)
		assert.Equal(t, types.ErrTimeout, e.Code)
		assert.True(t, e.Retryable)
		assert.Contains(t, e.Message, "20ms")
	})

	t.Run("operation error passes through", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := WithTimeout(context.Background(), time.Second, func(context.Context) (int, error) {
			return 0, boom
		})
		assert.ErrorIs(t, err, boom)
	})
}

func TestWithFallback(t *testing.T) {
	logger := zap.NewNop()
	primaryErr := errors.New("primary down")

	v, err := WithFallback(context.Background(), logger,
		func(context.Context) (string, error) { return "primary", nil },
		func(context.Context) (string, error) { return "fallback", nil })
	require.NoError(t, err)
	assert.Equal(t, "primary", v)

	v, err = WithFallback(context.Background(), logger,
		func(context.Context) (string, error) { return "", primaryErr },
		func(context.Context) (string, error) { return "fallback", nil })
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)

	fallbackErr := errors.New("fallback down")
	_, err = WithFallback(context.Background(), logger,
		func(context.Context) (string, error) { return "", primaryErr },
		func(context.Context) (string, error) { return "", fallbackErr })
	assert.ErrorIs(t, err, fallbackErr)
	assert.ErrorIs(t, err, primaryErr)
}
