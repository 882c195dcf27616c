package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/vivekverma239/superfast-ai/types"
)

func echoTool() *Tool {
	return &Tool{
		Name:        "echo",
		Description: "echoes the message",
		Category:    CategoryUtility,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {"message": {"type": "string", "minLength": 1}},
			"required": ["message"],
			"additionalProperties": false
		}`),
		Execute: func(_ context.Context, input json.RawMessage) (any, error) {
			in, err := ParseInput[struct {
				Message string `json:"message"`
			}](input)
			if err != nil {
				return nil, err
			}
			return map[string]string{"echo": in.Message}, nil
		},
	}
}

func TestTool_Invoke(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantOut  string
		wantCode types.ErrorCode
	}{
		{name: "valid input", input: `{"message":"hi"}`, wantOut: `{"echo":"hi"}`},
		{name: "missing required field", input: `{}`, wantCode: types.ErrValidation},
		{name: "wrong type", input: `{"message":3}`, wantCode: types.ErrValidation},
		{name: "unknown property", input: `{"message":"a","x":1}`, wantCode: types.ErrValidation},
		{name: "malformed json", input: `{"message":`, wantCode: types.ErrValidation},
		{name: "empty input treated as object", input: ``, wantCode: types.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := echoTool().Invoke(context.Background(), json.RawMessage(tt.input))
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, types.GetErrorCode(err))
				assert.False(t, types.IsRetryable(err))
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.wantOut, string(out))
		})
	}
}

func TestTool_InvokeExecutionError(t *testing.T) {
	boom := errors.New("kaboom")
	tool := &Tool{
		Name: "updateMemory",
		Execute: func(context.Context, json.RawMessage) (any, error) {
			return nil, boom
		},
	}

	_, err := tool.Invoke(context.Background(), json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Equal(t, types.ErrorCode("TOOL_UPDATE_MEMORY_ERROR"), types.GetErrorCode(err))
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestTool_InvokeWithoutExecutor(t *testing.T) {
	_, err := (&Tool{Name: "noop"}).Invoke(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrorCode("TOOL_NOOP_ERROR"), types.GetErrorCode(err))
}

func TestTool_Schema(t *testing.T) {
	s := (&Tool{Name: "bare", Description: "d"}).Schema()
	assert.Equal(t, "bare", s.Name)
	assert.JSONEq(t, `{"type":"object","properties":{}}`, string(s.Parameters))

	s = echoTool().Schema()
	assert.Contains(t, string(s.Parameters), `"message"`)
}

func TestTool_InvalidSchemaFailsValidation(t *testing.T) {
	tool := &Tool{
		Name:        "broken",
		InputSchema: json.RawMessage(`{"type": 12}`),
		Execute:     func(context.Context, json.RawMessage) (any, error) { return "ok", nil },
	}
	_, err := tool.Invoke(context.Background(), json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Equal(t, types.ErrValidation, types.GetErrorCode(err))
}

func TestRateLimited(t *testing.T) {
	calls := 0
	base := &Tool{
		Name:     "limited",
		Category: CategoryWeb,
		Execute: func(context.Context, json.RawMessage) (any, error) {
			calls++
			return calls, nil
		},
	}

	t.Run("nil limiter returns tool unchanged", func(t *testing.T) {
		assert.Same(t, base, RateLimited(base, nil))
	})

	t.Run("allows within burst", func(t *testing.T) {
		limited := RateLimited(base, rate.NewLimiter(rate.Inf, 1))
		assert.Equal(t, CategoryWeb, limited.Category)
		out, err := limited.Invoke(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, "1", string(out))
	})

	t.Run("cancelled wait is a retryable rate limit error", func(t *testing.T) {
		limiter := rate.NewLimiter(rate.Every(1<<62), 1)
		require.True(t, limiter.Allow())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := RateLimited(base, limiter).Execute(ctx, nil)
		require.Error(t, err)
		assert.Equal(t, types.ErrRateLimit, types.GetErrorCode(err))
		assert.True(t, types.IsRetryable(err))
	})
}
