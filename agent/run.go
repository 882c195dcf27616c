package agent

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vivekverma239/superfast-ai/internal/metrics"
	"github.com/vivekverma239/superfast-ai/internal/telemetry"
	"github.com/vivekverma239/superfast-ai/llm"
	"github.com/vivekverma239/superfast-ai/llm/circuitbreaker"
	"github.com/vivekverma239/superfast-ai/llm/retry"
	"github.com/vivekverma239/superfast-ai/llm/tokenizer"
	"github.com/vivekverma239/superfast-ai/llm/tools"
	"github.com/vivekverma239/superfast-ai/types"
)

// Turn modes used in metrics and span names.
const (
	ModeRun    = "run"
	ModeStream = "stream"
)

// Run 执行一轮非流式对话：熔断器 → 重试 → turn。
// 返回新的助手消息；新消息和回复在成功后写入线程历史。
func (a *Agent) Run(ctx context.Context, msg types.Message) (*types.Message, error) {
	start := a.now()
	incoming := a.prepareIncoming(msg)
	ctx, span := a.startTurn(ctx, ModeRun)

	reply, err := circuitbreaker.ExecuteTyped(ctx, a.breaker, func(ctx context.Context) (*types.Message, error) {
		return retry.Execute(ctx, a.retrier, func(ctx context.Context) (*types.Message, error) {
			return a.runTurn(ctx, incoming)
		}, "agent.run")
	})

	a.endTurn(ctx, span, ModeRun, start, err)
	return reply, err
}

func (a *Agent) runTurn(ctx context.Context, incoming types.Message) (*types.Message, error) {
	req, err := a.buildRequest(ctx, incoming)
	if err != nil {
		return nil, err
	}

	result, err := a.runner.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	reply := a.assistantMessage(result)
	if a.actx.Messages != nil {
		if _, err := a.actx.Messages.Append(ctx, &incoming); err != nil {
			return nil, err
		}
		if _, err := a.actx.Messages.Append(ctx, reply); err != nil {
			return nil, err
		}
	}
	a.metrics.RecordTokens(a.config.Model, result.Usage.PromptTokens, result.Usage.CompletionTokens)
	return reply, nil
}

// prepareIncoming 在重试之前确定消息 id 与时间，保证重复写入幂等
func (a *Agent) prepareIncoming(msg types.Message) types.Message {
	if msg.ID == "" {
		msg.ID = a.newID()
	}
	if msg.Role == "" {
		msg.Role = types.RoleUser
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = a.now()
	}
	return msg
}

// buildRequest 加载历史、裁剪、解析系统提示与工具
func (a *Agent) buildRequest(ctx context.Context, incoming types.Message) (*tools.Request, error) {
	history, err := a.history(ctx, incoming)
	if err != nil {
		return nil, err
	}

	system, err := a.instructions.Resolve(ctx, a.actx)
	if err != nil {
		return nil, types.NewExecutionError(types.ErrState, "failed to resolve instructions", true).WithCause(err)
	}

	toolset, err := a.registry.GetTools(ctx, tools.Filter{})
	if err != nil {
		return nil, err
	}

	req := &tools.Request{
		Model:    a.config.Model,
		System:   system,
		Messages: history,
		Tools:    toolset,
		MaxSteps: a.config.MaxSteps,
	}
	if a.config.Temperature != nil {
		t := float32(*a.config.Temperature)
		req.Temperature = &t
	}
	if a.config.MaxTokens != nil {
		req.MaxTokens = *a.config.MaxTokens
	}
	return req, nil
}

// history 返回发送给模型的消息：已存历史（去掉与 incoming 同 id 的记录）加上 incoming
func (a *Agent) history(ctx context.Context, incoming types.Message) ([]llm.Message, error) {
	var stored []types.Message
	if a.actx.Messages != nil {
		loaded, err := a.actx.Messages.Load(ctx)
		if err != nil {
			return nil, err
		}
		stored = make([]types.Message, 0, len(loaded)+1)
		for _, m := range loaded {
			if m.ID != incoming.ID {
				stored = append(stored, m)
			}
		}
	}
	stored = append(stored, incoming)

	messages := llm.FromMessages(stored)
	return a.trimHistory(messages)
}

// trimHistory 按 MaxHistoryTokens 从最旧的消息开始丢弃，最新一条始终保留
func (a *Agent) trimHistory(messages []llm.Message) ([]llm.Message, error) {
	if a.config.MaxHistoryTokens <= 0 || a.tokenizer == nil {
		return messages, nil
	}

	tm := make([]tokenizer.Message, len(messages))
	for i, m := range messages {
		content := m.Content
		for _, tc := range m.ToolCalls {
			content += tc.Name + string(tc.Arguments)
		}
		tm[i] = tokenizer.Message{Role: string(m.Role), Content: content}
	}

	start, err := tokenizer.TrimStart(a.tokenizer, tm, a.config.MaxHistoryTokens)
	if err != nil {
		return nil, types.NewExecutionError(types.ErrUnknown, "failed to count history tokens", false).WithCause(err)
	}
	// 不以孤立的工具结果开头
	for start < len(messages)-1 && messages[start].Role == llm.RoleTool {
		start++
	}
	if start > 0 {
		a.logger.Debug("history trimmed",
			zap.Int("dropped", start),
			zap.Int("kept", len(messages)-start),
		)
	}
	return messages[start:], nil
}

// assistantMessage 把运行结果包装成新的助手消息
func (a *Agent) assistantMessage(result *tools.Result) *types.Message {
	parts := result.Parts()
	if len(parts) == 0 {
		parts = []types.Part{{Type: types.PartText}}
	}
	return &types.Message{
		ID:        a.newID(),
		Role:      types.RoleAssistant,
		Parts:     parts,
		CreatedAt: a.now(),
		Metadata: map[string]any{
			"model":        a.config.Model,
			"finishReason": result.FinishReason,
			"steps":        len(result.Steps),
			"totalTokens":  result.Usage.TotalTokens,
		},
	}
}

func (a *Agent) startTurn(ctx context.Context, mode string) (context.Context, trace.Span) {
	ctx = types.WithUserID(ctx, a.actx.UserID)
	if a.actx.ThreadID != "" {
		ctx = types.WithThreadID(ctx, a.actx.ThreadID)
	}
	if _, ok := types.RunID(ctx); !ok {
		ctx = types.WithRunID(ctx, a.newID())
	}
	return telemetry.StartSpan(ctx, a.tracer, "agent."+mode,
		attribute.String("agent.model", a.config.Model),
		attribute.String("agent.user_id", a.actx.UserID),
		attribute.String("agent.thread_id", a.actx.ThreadID),
		attribute.Int("agent.max_steps", a.config.MaxSteps),
	)
}

func (a *Agent) endTurn(ctx context.Context, span trace.Span, mode string, start time.Time, err error) {
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
	}
	elapsed := a.now().Sub(start)
	a.metrics.RecordTurn(mode, status, elapsed)
	telemetry.EndSpan(span, err)

	fields := append(types.LogFields(ctx),
		zap.String("mode", mode),
		zap.Duration("duration", elapsed),
	)
	if err != nil {
		a.logger.Warn("turn failed", append(fields, zap.Error(err))...)
		return
	}
	a.logger.Debug("turn completed", fields...)
}
