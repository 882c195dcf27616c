package tools

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vivekverma239/superfast-ai/llm"
	"github.com/vivekverma239/superfast-ai/types"
)

// EventType tags a stream event.
type EventType string

const (
	EventTextDelta  EventType = "text-delta"
	EventToolCall   EventType = "tool-call"
	EventToolResult EventType = "tool-result"
	EventStepFinish EventType = "step-finish"
	EventFinish     EventType = "finish"
	EventError      EventType = "error"
)

// Event is one incremental piece of a streamed turn.
type Event struct {
	Type       EventType         `json:"type"`
	Step       int               `json:"step,omitempty"`
	Text       string            `json:"text,omitempty"`
	ToolCall   *types.ToolCall   `json:"toolCall,omitempty"`
	ToolResult *types.ToolResult `json:"toolResult,omitempty"`
	Result     *Result           `json:"result,omitempty"`
	Err        error             `json:"-"`
}

// FinishFunc receives the assembled result once the turn completes.
type FinishFunc func(ctx context.Context, result *Result) error

// Stream runs the loop with streaming completions. Errors opening the first
// model stream are returned directly; later failures arrive as EventError.
// onFinish is called exactly once, only when the turn completes.
func (r *Runner) Stream(ctx context.Context, req *Request, onFinish FinishFunc) (<-chan Event, error) {
	messages := append([]llm.Message(nil), req.Messages...)
	first, err := r.provider.Stream(ctx, r.chatRequest(req, messages))
	if err != nil {
		return nil, fmt.Errorf("model stream failed at step 1: %w", err)
	}

	events := make(chan Event)
	go func() {
		defer close(events)
		emit := func(ev Event) bool {
			select {
			case <-ctx.Done():
				return false
			case events <- ev:
				return true
			}
		}

		result := &Result{}
		budget := maxSteps(req)
		chunks := first

		for i := 1; ; i++ {
			msg, finish, usage, err := r.drain(chunks, i, emit)
			if err != nil {
				emit(Event{Type: EventError, Step: i, Err: err})
				return
			}
			result.Usage.Add(usage)
			step := Step{Number: i, Text: msg.Content, ToolCalls: msg.ToolCalls, FinishReason: finish, Usage: usage}

			if len(msg.ToolCalls) > 0 {
				for idx := range msg.ToolCalls {
					call := msg.ToolCalls[idx]
					if !emit(Event{Type: EventToolCall, Step: i, ToolCall: &call}) {
						return
					}
				}
				step.ToolResults = r.executeCalls(ctx, req.Tools, msg.ToolCalls)
				for idx := range step.ToolResults {
					res := step.ToolResults[idx]
					if !emit(Event{Type: EventToolResult, Step: i, ToolResult: &res}) {
						return
					}
				}
			}
			result.Steps = append(result.Steps, step)
			if !emit(Event{Type: EventStepFinish, Step: i}) {
				return
			}

			if len(msg.ToolCalls) == 0 || i >= budget {
				result.Text = msg.Content
				result.FinishReason = finish
				if len(msg.ToolCalls) > 0 {
					result.FinishReason = FinishMaxSteps
				}
				break
			}

			messages = appendToolRound(messages, msg, step.ToolResults)
			next, err := r.provider.Stream(ctx, r.chatRequest(req, messages))
			if err != nil {
				emit(Event{Type: EventError, Step: i + 1, Err: fmt.Errorf("model stream failed at step %d: %w", i+1, err)})
				return
			}
			chunks = next
		}

		if onFinish != nil {
			if err := onFinish(ctx, result); err != nil {
				r.logger.Error("stream finish hook failed", zap.Error(err))
				emit(Event{Type: EventError, Err: err})
				return
			}
		}
		emit(Event{Type: EventFinish, Result: result})
	}()
	return events, nil
}

// drain consumes one model stream, forwarding text deltas and assembling the
// step's assistant message. Tool call arguments may arrive in fragments.
func (r *Runner) drain(chunks <-chan llm.StreamChunk, step int, emit func(Event) bool) (llm.Message, string, llm.ChatUsage, error) {
	msg := llm.Message{Role: llm.RoleAssistant}
	var finish string
	var usage llm.ChatUsage

	for chunk := range chunks {
		if chunk.Err != nil {
			return msg, "", usage, chunk.Err
		}
		if chunk.Delta.Content != "" {
			msg.Content += chunk.Delta.Content
			if !emit(Event{Type: EventTextDelta, Step: step, Text: chunk.Delta.Content}) {
				return msg, "", usage, context.Canceled
			}
		}
		for _, tc := range chunk.Delta.ToolCalls {
			n := len(msg.ToolCalls)
			if tc.ID != "" && (n == 0 || msg.ToolCalls[n-1].ID != tc.ID) {
				msg.ToolCalls = append(msg.ToolCalls, types.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: append([]byte(nil), tc.Arguments...)})
				continue
			}
			if n == 0 {
				continue
			}
			last := &msg.ToolCalls[n-1]
			if tc.Name != "" {
				last.Name = tc.Name
			}
			last.Arguments = append(last.Arguments, tc.Arguments...)
		}
		if chunk.FinishReason != "" {
			finish = chunk.FinishReason
		}
		if chunk.Usage != nil {
			usage = *chunk.Usage
		}
	}
	return msg, finish, usage, nil
}
