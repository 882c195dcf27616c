package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"github.com/vivekverma239/superfast-ai/agent/agentctx"
	"github.com/vivekverma239/superfast-ai/agent/knowledge"
	"github.com/vivekverma239/superfast-ai/agent/persistence"
	"github.com/vivekverma239/superfast-ai/internal/metrics"
	"github.com/vivekverma239/superfast-ai/llm"
	"github.com/vivekverma239/superfast-ai/llm/circuitbreaker"
	"github.com/vivekverma239/superfast-ai/llm/tokenizer"
	"github.com/vivekverma239/superfast-ai/llm/tools"
	"github.com/vivekverma239/superfast-ai/testutil"
	"github.com/vivekverma239/superfast-ai/testutil/mocks"
	"github.com/vivekverma239/superfast-ai/types"
)

// =============================================================================
// 测试辅助
// =============================================================================

func intPtr(v int) *int             { return &v }
func float64Ptr(v float64) *float64 { return &v }

func noSleep(context.Context, time.Duration) error { return nil }

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("id-%d", n.Add(1)) }
}

// steppingClock 每次调用前进一秒
func steppingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newThreadContext(t *testing.T) *agentctx.Context {
	t.Helper()
	f := agentctx.NewFactory(agentctx.Dependencies{
		Store:       persistence.NewMemoryStore(),
		Storage:     agentctx.NewMemoryStorage(),
		VectorStore: knowledge.NewInMemoryVectorStore(nil),
	})
	return f.CreateThread(agentctx.DefaultThreadOptions("u1", "t1"))
}

func baseConfig() Config {
	return Config{Model: "test-model", MaxSteps: 1}
}

func newTestAgent(t *testing.T, p llm.Provider, cfg Config, opts ...Option) *Agent {
	t.Helper()
	return newTestAgentWithContext(t, p, newThreadContext(t), cfg, opts...)
}

func newTestAgentWithContext(t *testing.T, p llm.Provider, actx *agentctx.Context, cfg Config, opts ...Option) *Agent {
	t.Helper()
	base := []Option{
		WithLogger(zaptest.NewLogger(t)),
		WithSleep(noSleep),
		WithIDGenerator(sequentialIDs()),
		WithClock(steppingClock()),
	}
	a, err := New(cfg, Deps{Provider: p, Context: actx}, append(base, opts...)...)
	require.NoError(t, err)
	return a
}

func storedMessages(t *testing.T, a *Agent) []types.Message {
	t.Helper()
	msgs, err := a.Context().Messages.Load(context.Background())
	require.NoError(t, err)
	return msgs
}

// metricValue 汇总指定名称与标签的计数
func metricValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			match := true
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					match = false
				}
			}
			if !match {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			}
		}
	}
	return total
}

// =============================================================================
// 构造
// =============================================================================

func TestNew_Validation(t *testing.T) {
	actx := newThreadContext(t)
	p := mocks.NewScriptedProvider()

	tests := []struct {
		name string
		cfg  Config
		deps Deps
	}{
		{"missing model", Config{MaxSteps: 1}, Deps{Provider: p, Context: actx}},
		{"too many steps", Config{Model: "m", MaxSteps: 51}, Deps{Provider: p, Context: actx}},
		{"bad temperature", Config{Model: "m", MaxSteps: 1, Temperature: float64Ptr(3)}, Deps{Provider: p, Context: actx}},
		{"nil provider", baseConfig(), Deps{Context: actx}},
		{"nil context", baseConfig(), Deps{Provider: p}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, tt.deps)
			require.Error(t, err)
			assert.True(t, types.IsErrorCode(err, types.ErrConfiguration))
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	a := newTestAgent(t, mocks.NewScriptedProvider(), Config{Model: "m"})
	assert.Equal(t, 10, a.Config().MaxSteps)
	assert.Equal(t, DefaultRetries, a.retrier.Policy().MaxRetries)

	a = newTestAgent(t, mocks.NewScriptedProvider(), Config{Model: "m", MaxSteps: 2, Retries: intPtr(1)})
	assert.Equal(t, 1, a.retrier.Policy().MaxRetries)
}

func TestNew_ConfigIsCopied(t *testing.T) {
	cfg := Config{Model: "m", MaxSteps: 2, Temperature: float64Ptr(0.5)}
	a := newTestAgent(t, mocks.NewScriptedProvider(), cfg)
	*cfg.Temperature = 1.5
	assert.Equal(t, 0.5, *a.Config().Temperature)
}

// =============================================================================
// Run
// =============================================================================

func TestRun_SingleStepNoTools(t *testing.T) {
	p := mocks.NewScriptedProvider(mocks.TextTurn("hi there"))
	a := newTestAgent(t, p, baseConfig())

	reply, err := a.Run(testutil.TestContext(t), types.Message{Role: types.RoleUser, Parts: []types.Part{{Type: types.PartText, Text: "hello"}}})
	require.NoError(t, err)

	assert.Equal(t, 1, p.CallCount())
	assert.Equal(t, types.RoleAssistant, reply.Role)
	assert.Equal(t, "hi there", reply.Text())
	assert.NotEmpty(t, reply.ID)

	msgs := storedMessages(t, a)
	require.Len(t, msgs, 2)
	assert.Equal(t, types.RoleUser, msgs[0].Role)
	assert.Equal(t, "hello", msgs[0].Text())
	assert.Equal(t, reply.ID, msgs[1].ID)
	assert.Equal(t, "hi there", msgs[1].Text())

	req := p.LastRequest()
	require.Len(t, req.Messages, 1)
	assert.Empty(t, req.Tools)
}

func TestRun_RetriesNetworkErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := mocks.NewScriptedProvider(
		mocks.ErrorTurn(errors.New("network connection reset")),
		mocks.ErrorTurn(errors.New("network connection reset")),
		mocks.TextTurn("recovered"),
	)
	a := newTestAgent(t, p, baseConfig(), WithMetrics(metrics.NewCollector("agent", reg, nil)))

	reply, err := a.Run(context.Background(), types.NewUserMessage("", "hello"))
	require.NoError(t, err)
	assert.Equal(t, "recovered", reply.Text())
	assert.Equal(t, 3, p.CallCount())
	assert.Len(t, storedMessages(t, a), 2)

	assert.Equal(t, 2.0, metricValue(t, reg, "agent_retries_total", map[string]string{"label": "agent.run"}))
	assert.Equal(t, 1.0, metricValue(t, reg, "agent_turns_total", map[string]string{"mode": ModeRun, "status": metrics.StatusSuccess}))
	assert.Equal(t, 15.0, metricValue(t, reg, "agent_llm_tokens_total", nil))
}

func TestRun_NonRetryableFailsOnce(t *testing.T) {
	p := mocks.NewScriptedProvider().WithFallback(mocks.ErrorTurn(errors.New("unauthorized request")))
	a := newTestAgent(t, p, Config{Model: "m", MaxSteps: 1, Retries: intPtr(5)})

	_, err := a.Run(context.Background(), types.NewUserMessage("", "hello"))
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrAuthentication))
	assert.Equal(t, 1, p.CallCount())
	assert.Empty(t, storedMessages(t, a))
}

func TestRun_RetriesExhausted(t *testing.T) {
	p := mocks.NewScriptedProvider().WithFallback(mocks.ErrorTurn(errors.New("request timeout")))
	a := newTestAgent(t, p, Config{Model: "m", MaxSteps: 1, Retries: intPtr(2)})

	_, err := a.Run(context.Background(), types.NewUserMessage("", "hello"))
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrMaxRetriesExceeded))
	assert.Equal(t, 3, p.CallCount())
}

func TestRun_CircuitOpensAfterThreshold(t *testing.T) {
	p := mocks.NewScriptedProvider().WithFallback(mocks.ErrorTurn(errors.New("network down")))
	a, err := New(Config{Model: "m", MaxSteps: 1, Retries: intPtr(0)},
		Deps{Provider: p, Context: newThreadContext(t)},
		WithSleep(noSleep),
		WithBreakerConfig(circuitbreaker.Config{FailureThreshold: 5, ResetTimeout: time.Hour}),
	)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := a.Run(context.Background(), types.NewUserMessage("", "hello"))
		require.Error(t, err)
	}
	assert.Equal(t, circuitbreaker.StateOpen, a.GetState().Breaker.State)
	assert.Equal(t, 5, p.CallCount())

	_, err = a.Run(context.Background(), types.NewUserMessage("", "hello"))
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrCircuitBreakerOpen))
	assert.Equal(t, 5, p.CallCount())

	h := a.HealthCheck(context.Background())
	assert.Equal(t, StatusUnhealthy, h.Status)
	assert.Equal(t, circuitbreaker.StateOpen, h.CircuitBreakerState)

	a.ResetCircuitBreaker()
	assert.Equal(t, StatusHealthy, a.HealthCheck(context.Background()).Status)
}

func TestRun_ToolLoop(t *testing.T) {
	p := mocks.NewScriptedProvider(
		mocks.ToolTurn(mocks.Call("c1", "echo", `{"text":"ping"}`)),
		mocks.TextTurn("pong"),
	)
	a := newTestAgent(t, p, Config{Model: "m", MaxSteps: 3})

	var calls atomic.Int32
	require.NoError(t, a.RegisterTool(&tools.Tool{
		Name:        "echo",
		Description: "echo text",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`),
		Category:    tools.CategoryUtility,
		Execute: func(_ context.Context, input json.RawMessage) (any, error) {
			calls.Add(1)
			in, err := tools.ParseInput[struct{ Text string }](input)
			if err != nil {
				return nil, err
			}
			return map[string]string{"echo": in.Text}, nil
		},
	}))

	reply, err := a.Run(context.Background(), types.NewUserMessage("", "say ping"))
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 2, p.CallCount())
	assert.Equal(t, "pong", reply.Text())
	require.Len(t, reply.Parts, 3)
	assert.Equal(t, types.PartToolCall, reply.Parts[0].Type)
	assert.Equal(t, types.PartToolResult, reply.Parts[1].Type)
	assert.JSONEq(t, `{"echo":"ping"}`, string(reply.Parts[1].Output))
	assert.Len(t, p.Requests()[0].Tools, 1)
}

func TestRun_MaxStepsStopsToolLoop(t *testing.T) {
	p := mocks.NewScriptedProvider().WithFallback(mocks.ToolTurn(mocks.Call("c1", "noop", `{}`)))
	a := newTestAgent(t, p, Config{Model: "m", MaxSteps: 2})
	require.NoError(t, a.RegisterTool(&tools.Tool{
		Name:    "noop",
		Execute: func(context.Context, json.RawMessage) (any, error) { return "ok", nil },
	}))

	reply, err := a.Run(context.Background(), types.NewUserMessage("", "loop"))
	require.NoError(t, err)
	assert.Equal(t, 2, p.CallCount())
	assert.Equal(t, tools.FinishMaxSteps, reply.Metadata["finishReason"])
}

func TestRun_FactoryToolsAndFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := mocks.NewScriptedProvider().WithFallback(mocks.TextTurn("ok"))
	a := newTestAgent(t, p, baseConfig(), WithMetrics(metrics.NewCollector("agent", reg, nil)))

	var created atomic.Int32
	require.NoError(t, a.RegisterToolFactory(ToolFactory{
		Name:     "whoami",
		Category: tools.CategoryUtility,
		Create: func(c *agentctx.Context) (*tools.Tool, error) {
			created.Add(1)
			user := c.UserID
			return &tools.Tool{Execute: func(context.Context, json.RawMessage) (any, error) { return user, nil }}, nil
		},
	}))
	require.NoError(t, a.RegisterToolFactory(ToolFactory{
		Name: "broken",
		Create: func(*agentctx.Context) (*tools.Tool, error) {
			return nil, errors.New("capability missing")
		},
	}))

	for i := 0; i < 2; i++ {
		_, err := a.Run(context.Background(), types.NewUserMessage("", "hi"))
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), created.Load())
	assert.Len(t, p.LastRequest().Tools, 1)
	assert.Equal(t, []string{"broken", "whoami"}, a.ToolNames())

	h := a.HealthCheck(context.Background())
	assert.Equal(t, StatusHealthy, h.Status)
	assert.Equal(t, 2, h.ToolCount)
	assert.Equal(t, 1, h.FailedToolCount)

	st := a.GetState()
	assert.Equal(t, []string{"broken"}, st.FailedTools)
	assert.Equal(t, 2.0, metricValue(t, reg, "agent_tool_failures_total", map[string]string{"tool": "broken", "phase": "materialize"}))

	assert.True(t, a.UnregisterTool("broken"))
	assert.Equal(t, []string{"whoami"}, a.ToolNames())
}

func TestRun_Instructions(t *testing.T) {
	t.Run("static from config", func(t *testing.T) {
		p := mocks.NewScriptedProvider(mocks.TextTurn("ok"))
		cfg := baseConfig()
		cfg.SystemPrompt = "be brief"
		a := newTestAgent(t, p, cfg)

		_, err := a.Run(context.Background(), types.NewUserMessage("", "hi"))
		require.NoError(t, err)
		req := p.LastRequest()
		require.Len(t, req.Messages, 2)
		assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
		assert.Equal(t, "be brief", req.Messages[0].Content)
		assert.Equal(t, "static", a.GetState().Instructions)
	})

	t.Run("derived per turn", func(t *testing.T) {
		p := mocks.NewScriptedProvider().WithFallback(mocks.TextTurn("ok"))
		var resolved atomic.Int32
		a := newTestAgent(t, p, baseConfig(), WithInstructions(DerivedInstructions(
			func(_ context.Context, c *agentctx.Context) (string, error) {
				n := resolved.Add(1)
				return fmt.Sprintf("user %s turn %d", c.UserID, n), nil
			})))

		for i := 0; i < 2; i++ {
			_, err := a.Run(context.Background(), types.NewUserMessage("", "hi"))
			require.NoError(t, err)
		}
		assert.Equal(t, int32(2), resolved.Load())
		assert.Equal(t, "user u1 turn 2", p.LastRequest().Messages[0].Content)
		assert.Equal(t, "derived", a.GetState().Instructions)
	})

	t.Run("derive failure is a state error", func(t *testing.T) {
		p := mocks.NewScriptedProvider()
		a := newTestAgent(t, p, Config{Model: "m", MaxSteps: 1, Retries: intPtr(0)}, WithInstructions(DerivedInstructions(
			func(context.Context, *agentctx.Context) (string, error) { return "", errors.New("boom") })))

		_, err := a.Run(context.Background(), types.NewUserMessage("", "hi"))
		require.Error(t, err)
		assert.Equal(t, 0, p.CallCount())
	})
}

func TestRun_HistoryAndParameters(t *testing.T) {
	p := mocks.NewScriptedProvider().WithFallback(mocks.TextTurn("ok"))
	cfg := Config{Model: "m", MaxSteps: 1, Temperature: float64Ptr(0.5), MaxTokens: intPtr(100)}
	a := newTestAgent(t, p, cfg)

	_, err := a.Run(context.Background(), types.NewUserMessage("", "first"))
	require.NoError(t, err)
	_, err = a.Run(context.Background(), types.NewUserMessage("", "second"))
	require.NoError(t, err)

	req := p.LastRequest()
	require.Len(t, req.Messages, 3)
	assert.Equal(t, "first", req.Messages[0].Content)
	assert.Equal(t, "ok", req.Messages[1].Content)
	assert.Equal(t, "second", req.Messages[2].Content)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, float32(0.5), *req.Temperature)
	assert.Equal(t, 100, req.MaxTokens)
	assert.Len(t, storedMessages(t, a), 4)
}

func TestRun_TrimsHistory(t *testing.T) {
	p := mocks.NewScriptedProvider().WithFallback(mocks.TextTurn("ok"))
	cfg := Config{Model: "m", MaxSteps: 1, MaxHistoryTokens: 1}
	a := newTestAgent(t, p, cfg, WithTokenizer(tokenizer.NewEstimator(0)))

	for _, text := range []string{"one", "two", "three"} {
		_, err := a.Run(context.Background(), types.NewUserMessage("", text))
		require.NoError(t, err)
	}

	req := p.LastRequest()
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "three", req.Messages[0].Content)
	// 裁剪只影响发送给模型的消息
	assert.Len(t, storedMessages(t, a), 6)
}

func TestRun_WithoutMessageManager(t *testing.T) {
	actx := newThreadContext(t)
	actx.Messages = nil
	p := mocks.NewScriptedProvider(mocks.TextTurn("ok"))
	a := newTestAgentWithContext(t, p, actx, baseConfig())

	reply, err := a.Run(context.Background(), types.NewUserMessage("", "hi"))
	require.NoError(t, err)
	assert.Equal(t, "ok", reply.Text())
}

func TestRun_Span(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	p := mocks.NewScriptedProvider(mocks.TextTurn("ok"))
	a := newTestAgent(t, p, baseConfig(), WithTracer(tp.Tracer("test")))

	_, err := a.Run(context.Background(), types.NewUserMessage("", "hi"))
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "agent.run", spans[0].Name())
}

// =============================================================================
// 健康检查
// =============================================================================

type pingFailStore struct {
	persistence.Store
}

func (pingFailStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthCheck_StoreUnavailable(t *testing.T) {
	actx := newThreadContext(t)
	actx.DB = pingFailStore{Store: actx.DB}
	a := newTestAgentWithContext(t, mocks.NewScriptedProvider(), actx, baseConfig())

	h := a.HealthCheck(context.Background())
	assert.Equal(t, StatusUnhealthy, h.Status)
	assert.Equal(t, circuitbreaker.StateClosed, h.CircuitBreakerState)
	assert.Equal(t, "connection refused", h.StoreError)
}
