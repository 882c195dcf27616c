// ScriptedProvider 按预设脚本逐轮响应的 llm.Provider 测试实现。
package mocks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/vivekverma239/superfast-ai/llm"
	"github.com/vivekverma239/superfast-ai/types"
)

// ErrScriptExhausted 在脚本耗尽后返回
var ErrScriptExhausted = errors.New("scripted provider: no more turns")

// Turn 描述模型的一轮输出
type Turn struct {
	Text      string
	ToolCalls []types.ToolCall
	// Err 在调用时直接返回（Completion / Stream 打开失败）
	Err error
	// StreamErr 在流式输出文本后作为错误 chunk 发送
	StreamErr error
	Usage     llm.ChatUsage
}

// TextTurn 返回纯文本的一轮
func TextTurn(text string) Turn {
	return Turn{Text: text, Usage: llm.ChatUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}}
}

// ToolTurn 返回只包含工具调用的一轮
func ToolTurn(calls ...types.ToolCall) Turn {
	return Turn{ToolCalls: calls, Usage: llm.ChatUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}}
}

// ErrorTurn 返回调用失败的一轮
func ErrorTurn(err error) Turn {
	return Turn{Err: err}
}

// Call 构造工具调用
func Call(id, name, args string) types.ToolCall {
	return types.ToolCall{ID: id, Name: name, Arguments: json.RawMessage(args)}
}

// ScriptedProvider 是确定性的 llm.Provider 实现
type ScriptedProvider struct {
	mu       sync.Mutex
	turns    []Turn
	requests []*llm.ChatRequest
	fallback *Turn
}

// NewScriptedProvider 创建按顺序返回 turns 的 Provider
func NewScriptedProvider(turns ...Turn) *ScriptedProvider {
	return &ScriptedProvider{turns: turns}
}

// WithFallback 设置脚本耗尽后重复返回的轮次
func (p *ScriptedProvider) WithFallback(turn Turn) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fallback = &turn
	return p
}

// Push 追加轮次
func (p *ScriptedProvider) Push(turns ...Turn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.turns = append(p.turns, turns...)
}

// Name 返回 Provider 名称
func (p *ScriptedProvider) Name() string { return "scripted" }

// Requests 返回所有调用的请求副本
func (p *ScriptedProvider) Requests() []*llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*llm.ChatRequest(nil), p.requests...)
}

// CallCount 返回调用次数
func (p *ScriptedProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// LastRequest 返回最后一次请求
func (p *ScriptedProvider) LastRequest() *llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) == 0 {
		return nil
	}
	return p.requests[len(p.requests)-1]
}

func (p *ScriptedProvider) next(req *llm.ChatRequest) (Turn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := *req
	cp.Messages = append([]llm.Message(nil), req.Messages...)
	p.requests = append(p.requests, &cp)

	if len(p.turns) == 0 {
		if p.fallback != nil {
			return *p.fallback, nil
		}
		return Turn{}, ErrScriptExhausted
	}
	turn := p.turns[0]
	p.turns = p.turns[1:]
	return turn, nil
}

// Completion 返回下一轮的完整响应
func (p *ScriptedProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	turn, err := p.next(req)
	if err != nil {
		return nil, err
	}
	if turn.Err != nil {
		return nil, turn.Err
	}
	finish := "stop"
	if len(turn.ToolCalls) > 0 {
		finish = "tool_calls"
	}
	return &llm.ChatResponse{
		ID:       fmt.Sprintf("scripted-%d", p.CallCount()),
		Provider: p.Name(),
		Model:    req.Model,
		Choices: []llm.ChatChoice{{
			FinishReason: finish,
			Message:      llm.Message{Role: llm.RoleAssistant, Content: turn.Text, ToolCalls: turn.ToolCalls},
		}},
		Usage: turn.Usage,
	}, nil
}

// Stream 按单词拆分文本输出，工具调用的参数拆成两段发送
func (p *ScriptedProvider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	turn, err := p.next(req)
	if err != nil {
		return nil, err
	}
	if turn.Err != nil {
		return nil, turn.Err
	}

	var chunks []llm.StreamChunk
	for _, word := range splitKeepSpace(turn.Text) {
		chunks = append(chunks, llm.StreamChunk{Provider: p.Name(), Model: req.Model, Delta: llm.Message{Role: llm.RoleAssistant, Content: word}})
	}
	for _, tc := range turn.ToolCalls {
		args := []byte(tc.Arguments)
		half := len(args) / 2
		chunks = append(chunks,
			llm.StreamChunk{Delta: llm.Message{ToolCalls: []types.ToolCall{{ID: tc.ID, Name: tc.Name, Arguments: append(json.RawMessage(nil), args[:half]...)}}}},
			llm.StreamChunk{Delta: llm.Message{ToolCalls: []types.ToolCall{{Arguments: append(json.RawMessage(nil), args[half:]...)}}}},
		)
	}
	if turn.StreamErr != nil {
		chunks = append(chunks, llm.StreamChunk{Err: turn.StreamErr})
	} else {
		finish := "stop"
		if len(turn.ToolCalls) > 0 {
			finish = "tool_calls"
		}
		usage := turn.Usage
		chunks = append(chunks, llm.StreamChunk{FinishReason: finish, Usage: &usage})
	}

	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		for _, c := range chunks {
			select {
			case <-ctx.Done():
				return
			case ch <- c:
			}
		}
	}()
	return ch, nil
}

func splitKeepSpace(text string) []string {
	if text == "" {
		return nil
	}
	words := strings.SplitAfter(text, " ")
	out := words[:0]
	for _, w := range words {
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}
