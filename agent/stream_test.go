package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivekverma239/superfast-ai/llm"
	"github.com/vivekverma239/superfast-ai/llm/tools"
	"github.com/vivekverma239/superfast-ai/testutil/mocks"
	"github.com/vivekverma239/superfast-ai/types"
)

// observingProvider 在打开模型流之前回调
type observingProvider struct {
	*mocks.ScriptedProvider
	beforeStream func()
}

func (p *observingProvider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	if p.beforeStream != nil {
		p.beforeStream()
	}
	return p.ScriptedProvider.Stream(ctx, req)
}

func collectText(sr *StreamResult) (string, []tools.EventType) {
	var b strings.Builder
	var kinds []tools.EventType
	for ev := range sr.Events() {
		kinds = append(kinds, ev.Type)
		if ev.Type == tools.EventTextDelta {
			b.WriteString(ev.Text)
		}
	}
	return b.String(), kinds
}

func TestStream_PersistsIncomingBeforeModelCall(t *testing.T) {
	p := &observingProvider{ScriptedProvider: mocks.NewScriptedProvider(mocks.TextTurn("hello world"))}
	a := newTestAgent(t, p, baseConfig())

	var seenAtCall []types.Message
	p.beforeStream = func() { seenAtCall = storedMessages(t, a) }

	sr, err := a.Stream(context.Background(), types.NewUserMessage("", "hi"))
	require.NoError(t, err)

	text, kinds := collectText(sr)
	assert.Equal(t, "hello world", text)
	assert.Equal(t, tools.EventFinish, kinds[len(kinds)-1])

	reply, err := sr.Wait()
	require.NoError(t, err)
	assert.Equal(t, "hello world", reply.Text())

	require.Len(t, seenAtCall, 1)
	assert.Equal(t, "hi", seenAtCall[0].Text())

	msgs := storedMessages(t, a)
	require.Len(t, msgs, 2)
	assert.Equal(t, reply.ID, msgs[1].ID)
}

func TestStream_RetryPersistsIncomingOnce(t *testing.T) {
	p := mocks.NewScriptedProvider(
		mocks.ErrorTurn(errors.New("network unreachable")),
		mocks.TextTurn("done"),
	)
	a := newTestAgent(t, p, baseConfig())

	sr, err := a.Stream(context.Background(), types.NewUserMessage("", "hi"))
	require.NoError(t, err)
	reply, err := sr.Wait()
	require.NoError(t, err)
	assert.Equal(t, "done", reply.Text())
	assert.Equal(t, 2, p.CallCount())

	msgs := storedMessages(t, a)
	require.Len(t, msgs, 2)
	assert.Equal(t, types.RoleUser, msgs[0].Role)
	assert.Equal(t, types.RoleAssistant, msgs[1].Role)

	// 第二次请求里用户消息只出现一次
	assert.Len(t, p.LastRequest().Messages, 1)
}

func TestStream_SetupFailureIsSynchronous(t *testing.T) {
	p := mocks.NewScriptedProvider().WithFallback(mocks.ErrorTurn(errors.New("invalid model name")))
	a := newTestAgent(t, p, baseConfig())

	sr, err := a.Stream(context.Background(), types.NewUserMessage("", "hi"))
	require.Error(t, err)
	assert.Nil(t, sr)
	assert.True(t, types.IsErrorCode(err, types.ErrValidation))
	assert.Equal(t, 1, p.CallCount())

	// 新消息已在模型调用前写入
	assert.Len(t, storedMessages(t, a), 1)
}

func TestStream_MidStreamError(t *testing.T) {
	p := mocks.NewScriptedProvider(mocks.Turn{Text: "partial answer", StreamErr: errors.New("network reset")})
	a := newTestAgent(t, p, baseConfig())

	sr, err := a.Stream(context.Background(), types.NewUserMessage("", "hi"))
	require.NoError(t, err)

	text, kinds := collectText(sr)
	assert.Equal(t, "partial answer", text)
	assert.Contains(t, kinds, tools.EventError)
	assert.NotContains(t, kinds, tools.EventFinish)

	reply, err := sr.Wait()
	require.Error(t, err)
	assert.Nil(t, reply)
	assert.True(t, types.IsErrorCode(err, types.ErrNetwork))

	msgs := storedMessages(t, a)
	require.Len(t, msgs, 1)
	assert.Equal(t, types.RoleUser, msgs[0].Role)
}

func TestStream_ToolStepsAndWaitWithoutReading(t *testing.T) {
	p := mocks.NewScriptedProvider(
		mocks.ToolTurn(mocks.Call("c1", "noop", `{"a":1}`)),
		mocks.TextTurn("final"),
	)
	a := newTestAgent(t, p, Config{Model: "m", MaxSteps: 3})
	require.NoError(t, a.RegisterTool(&tools.Tool{
		Name:    "noop",
		Execute: func(context.Context, json.RawMessage) (any, error) { return "ok", nil },
	}))

	sr, err := a.Stream(context.Background(), types.NewUserMessage("", "go"))
	require.NoError(t, err)

	reply, err := sr.Wait()
	require.NoError(t, err)
	assert.Equal(t, "final", reply.Text())
	require.Len(t, reply.Parts, 3)
	assert.Equal(t, types.PartToolCall, reply.Parts[0].Type)
	assert.Equal(t, "noop", reply.Parts[0].ToolName)
	assert.JSONEq(t, `{"a":1}`, string(reply.Parts[0].Input))
	assert.Len(t, storedMessages(t, a), 2)
}

// blockingProvider 输出一段文本后阻塞，直到 ctx 取消
type blockingProvider struct{}

func (blockingProvider) Name() string { return "blocking" }

func (blockingProvider) Completion(context.Context, *llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, errors.New("completion not supported")
}

func (blockingProvider) Stream(ctx context.Context, _ *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		select {
		case ch <- llm.StreamChunk{Delta: llm.Message{Role: llm.RoleAssistant, Content: "partial"}}:
		case <-ctx.Done():
			return
		}
		<-ctx.Done()
		ch <- llm.StreamChunk{Err: ctx.Err()}
	}()
	return ch, nil
}

func TestStream_CancelledContext(t *testing.T) {
	a := newTestAgent(t, blockingProvider{}, baseConfig())

	ctx, cancel := context.WithCancel(context.Background())
	sr, err := a.Stream(ctx, types.NewUserMessage("", "hi"))
	require.NoError(t, err)

	ev := <-sr.Events()
	assert.Equal(t, tools.EventTextDelta, ev.Type)
	cancel()

	reply, err := sr.Wait()
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrCancelled))
	assert.Nil(t, reply)
	assert.Len(t, storedMessages(t, a), 1)
}
