package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/vivekverma239/superfast-ai/llm/circuitbreaker"
	"github.com/vivekverma239/superfast-ai/llm/retry"
	"github.com/vivekverma239/superfast-ai/llm/tools"
	"github.com/vivekverma239/superfast-ai/types"
)

// ErrStreamIncomplete 流在 finish 事件之前结束
var ErrStreamIncomplete = errors.New("stream ended before finish")

// StreamResult 进行中的流式对话。
// Events 逐个产出事件；Wait 读完剩余事件并返回最终消息。
type StreamResult struct {
	events chan tools.Event
	done   chan struct{}

	mu      sync.Mutex
	message *types.Message
	err     error
}

// Events 返回事件通道，流结束时关闭
func (s *StreamResult) Events() <-chan tools.Event {
	return s.events
}

// Wait 丢弃未读取的事件，等待流结束并返回持久化的助手消息
func (s *StreamResult) Wait() (*types.Message, error) {
	for range s.events {
	}
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message, s.err
}

func (s *StreamResult) setMessage(m *types.Message) {
	s.mu.Lock()
	s.message = m
	s.mu.Unlock()
}

func (s *StreamResult) setErr(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

// Stream 执行一轮流式对话：熔断器 → 重试 → 建立流。
//
// 新消息在调用模型前写入（跨重试只写一次）；最终的助手消息在 finish 钩子中
// 只写一次。打开第一个模型流失败时同步返回错误，之后的失败通过 EventError
// 与 Wait 返回。
func (a *Agent) Stream(ctx context.Context, msg types.Message) (*StreamResult, error) {
	start := a.now()
	incoming := a.prepareIncoming(msg)
	ctx, span := a.startTurn(ctx, ModeStream)

	sr := &StreamResult{
		events: make(chan tools.Event),
		done:   make(chan struct{}),
	}

	persisted := false
	onFinish := func(ctx context.Context, result *tools.Result) error {
		reply := a.assistantMessage(result)
		if a.actx.Messages != nil {
			if _, err := a.actx.Messages.Append(ctx, reply); err != nil {
				return err
			}
		}
		sr.setMessage(reply)
		a.metrics.RecordTokens(a.config.Model, result.Usage.PromptTokens, result.Usage.CompletionTokens)
		return nil
	}

	events, err := circuitbreaker.ExecuteTyped(ctx, a.breaker, func(ctx context.Context) (<-chan tools.Event, error) {
		return retry.Execute(ctx, a.retrier, func(ctx context.Context) (<-chan tools.Event, error) {
			if !persisted && a.actx.Messages != nil {
				if _, err := a.actx.Messages.Append(ctx, &incoming); err != nil {
					return nil, err
				}
			}
			persisted = true

			req, err := a.buildRequest(ctx, incoming)
			if err != nil {
				return nil, err
			}
			return a.runner.Stream(ctx, req, onFinish)
		}, "agent.stream")
	})
	if err != nil {
		a.endTurn(ctx, span, ModeStream, start, err)
		return nil, err
	}

	go a.forward(ctx, span, start, events, sr)
	return sr, nil
}

// forward 转发 runner 事件并在结束时记录结果
func (a *Agent) forward(ctx context.Context, span trace.Span, start time.Time, in <-chan tools.Event, sr *StreamResult) {
	defer close(sr.done)
	defer close(sr.events)

	finished := false
	for ev := range in {
		switch ev.Type {
		case tools.EventError:
			sr.setErr(types.ClassifyError(ev.Err))
		case tools.EventFinish:
			finished = true
		}
		select {
		case sr.events <- ev:
		case <-ctx.Done():
			// 消费方已离开：继续排空上游，使 runner 协程退出
		}
	}

	if !finished {
		if err := ctx.Err(); err != nil {
			sr.setErr(types.ClassifyError(err))
		}
		sr.setErr(ErrStreamIncomplete)
	}

	sr.mu.Lock()
	err := sr.err
	sr.mu.Unlock()
	a.endTurn(ctx, span, ModeStream, start, err)
}
