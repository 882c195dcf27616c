package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vivekverma239/superfast-ai/llm"
	"github.com/vivekverma239/superfast-ai/types"
)

// FinishMaxSteps marks a turn stopped by the step budget while the model was
// still calling tools.
const FinishMaxSteps = "max_steps"

// Request describes one turn for the Runner.
type Request struct {
	Model       string
	System      string
	Messages    []llm.Message
	Tools       map[string]*Tool
	MaxSteps    int
	Temperature *float32
	MaxTokens   int
}

// Step is one model call plus the tools it invoked.
type Step struct {
	Number       int                `json:"number"`
	Text         string             `json:"text,omitempty"`
	ToolCalls    []types.ToolCall   `json:"tool_calls,omitempty"`
	ToolResults  []types.ToolResult `json:"tool_results,omitempty"`
	FinishReason string             `json:"finish_reason,omitempty"`
	Usage        llm.ChatUsage      `json:"usage"`
}

// Result is the outcome of a turn.
type Result struct {
	Text         string        `json:"text"`
	Steps        []Step        `json:"steps"`
	FinishReason string        `json:"finish_reason"`
	Usage        llm.ChatUsage `json:"usage"`
}

// Parts flattens the steps into assistant message parts: tool calls and their
// results in order, followed by the final text.
func (r *Result) Parts() []types.Part {
	var parts []types.Part
	for _, s := range r.Steps {
		for _, c := range s.ToolCalls {
			parts = append(parts, types.Part{Type: types.PartToolCall, ToolCallID: c.ID, ToolName: c.Name, Input: c.Arguments})
		}
		for _, res := range s.ToolResults {
			out := res.Result
			if res.IsError() {
				out, _ = json.Marshal(res.Error)
			}
			parts = append(parts, types.Part{Type: types.PartToolResult, ToolCallID: res.ToolCallID, ToolName: res.Name, Output: out, IsError: res.IsError()})
		}
	}
	if r.Text != "" {
		parts = append(parts, types.Part{Type: types.PartText, Text: r.Text})
	}
	return parts
}

// Runner drives the "model -> tools -> model" loop within a step budget.
type Runner struct {
	provider llm.Provider
	logger   *zap.Logger

	// OnToolError 在工具执行失败时调用（可选），用于指标统计
	OnToolError func(name string, err error)
}

// NewRunner creates a Runner over the given provider.
func NewRunner(provider llm.Provider, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{provider: provider, logger: logger.With(zap.String("component", "tool_runner"))}
}

func (r *Runner) chatRequest(req *Request, messages []llm.Message) *llm.ChatRequest {
	all := messages
	if req.System != "" {
		all = append([]llm.Message{{Role: llm.RoleSystem, Content: req.System}}, messages...)
	}
	cr := &llm.ChatRequest{
		Model:       req.Model,
		Messages:    all,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if len(req.Tools) > 0 {
		cr.Tools = Schemas(req.Tools)
		cr.ToolChoice = "auto"
	}
	return cr
}

func maxSteps(req *Request) int {
	if req.MaxSteps <= 0 {
		return 1
	}
	return req.MaxSteps
}

// Generate runs the loop with non-streaming completions.
func (r *Runner) Generate(ctx context.Context, req *Request) (*Result, error) {
	messages := append([]llm.Message(nil), req.Messages...)
	result := &Result{}
	budget := maxSteps(req)

	for i := 1; i <= budget; i++ {
		resp, err := r.provider.Completion(ctx, r.chatRequest(req, messages))
		if err != nil {
			return nil, fmt.Errorf("model call failed at step %d: %w", i, err)
		}
		msg, finish := resp.FirstMessage()
		step := Step{Number: i, Text: msg.Content, ToolCalls: msg.ToolCalls, FinishReason: finish, Usage: resp.Usage}
		result.Usage.Add(resp.Usage)

		if len(msg.ToolCalls) == 0 {
			result.Steps = append(result.Steps, step)
			result.Text = msg.Content
			result.FinishReason = finish
			r.logger.Debug("turn completed", zap.Int("steps", i))
			return result, nil
		}

		step.ToolResults = r.executeCalls(ctx, req.Tools, msg.ToolCalls)
		result.Steps = append(result.Steps, step)
		messages = appendToolRound(messages, msg, step.ToolResults)
	}

	last := result.Steps[len(result.Steps)-1]
	result.Text = last.Text
	result.FinishReason = FinishMaxSteps
	r.logger.Info("step budget exhausted", zap.Int("max_steps", budget))
	return result, nil
}

func appendToolRound(messages []llm.Message, assistant llm.Message, results []types.ToolResult) []llm.Message {
	assistant.Role = llm.RoleAssistant
	messages = append(messages, assistant)
	for _, res := range results {
		messages = append(messages, llm.ToolResultMessage(res))
	}
	return messages
}

// executeCalls runs tool calls sequentially: state tools update via
// load-then-save and must not interleave.
func (r *Runner) executeCalls(ctx context.Context, tools map[string]*Tool, calls []types.ToolCall) []types.ToolResult {
	results := make([]types.ToolResult, 0, len(calls))
	for _, call := range calls {
		results = append(results, r.executeOne(ctx, tools, call))
	}
	return results
}

func (r *Runner) executeOne(ctx context.Context, tools map[string]*Tool, call types.ToolCall) types.ToolResult {
	start := time.Now()
	result := types.ToolResult{ToolCallID: call.ID, Name: call.Name}

	tool, ok := tools[call.Name]
	if !ok {
		result.Error = fmt.Sprintf("tool not found: %s", call.Name)
		result.Duration = time.Since(start)
		r.reportToolError(call.Name, fmt.Errorf("%s", result.Error))
		return result
	}

	out, err := tool.Invoke(ctx, call.Arguments)
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		r.reportToolError(call.Name, err)
		return result
	}
	result.Result = out
	r.logger.Debug("tool executed",
		zap.String("name", call.Name),
		zap.Duration("duration", result.Duration))
	return result
}

func (r *Runner) reportToolError(name string, err error) {
	r.logger.Warn("tool execution failed", zap.String("name", name), zap.Error(err))
	if r.OnToolError != nil {
		r.OnToolError(name, err)
	}
}
