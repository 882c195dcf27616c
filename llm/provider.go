package llm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vivekverma239/superfast-ai/types"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

type ToolCall = types.ToolCall

type ToolSchema = types.ToolSchema

// Message 是发送给模型的单条对话消息。
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // 工具返回时标识对应调用
}

type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []Message     `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float32      `json:"temperature,omitempty"`
	Tools       []ToolSchema  `json:"tools,omitempty"`
	ToolChoice  string        `json:"tool_choice,omitempty"` // auto/none/<tool name>
	Timeout     time.Duration `json:"timeout,omitempty"`
}

type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// Add 累加另一次调用的用量。
func (u *ChatUsage) Add(other ChatUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

type ChatChoice struct {
	Index        int     `json:"index"`
	FinishReason string  `json:"finish_reason,omitempty"`
	Message      Message `json:"message"`
}

type ChatResponse struct {
	ID        string       `json:"id,omitempty"`
	Provider  string       `json:"provider,omitempty"`
	Model     string       `json:"model"`
	Choices   []ChatChoice `json:"choices"`
	Usage     ChatUsage    `json:"usage,omitempty"`
	CreatedAt time.Time    `json:"created_at,omitempty"`
}

// FirstMessage 返回第一个 choice 的消息；无 choice 时返回零值。
func (r *ChatResponse) FirstMessage() (Message, string) {
	if r == nil || len(r.Choices) == 0 {
		return Message{}, ""
	}
	return r.Choices[0].Message, r.Choices[0].FinishReason
}

type StreamChunk struct {
	ID           string     `json:"id,omitempty"`
	Provider     string     `json:"provider,omitempty"`
	Model        string     `json:"model,omitempty"`
	Index        int        `json:"index,omitempty"`
	Delta        Message    `json:"delta"`
	FinishReason string     `json:"finish_reason,omitempty"`
	Usage        *ChatUsage `json:"usage,omitempty"` // 最终 chunk 可带 usage
	Err          error      `json:"-"`
}

// Provider 定义了统一的模型调用接口。
// 工具调用通过 ChatRequest.Tools 传递，模型在响应中返回 ToolCalls，
// 具体的工具执行由 llm/tools 中的 Runner 负责。
type Provider interface {
	// Completion 发起同步聊天请求，返回完整响应
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Stream 发起流式聊天请求，返回增量响应通道
	Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error)

	// Name 返回 Provider 的唯一标识
	Name() string
}

// ToolResultMessage 构造回传给模型的工具结果消息。
func ToolResultMessage(result types.ToolResult) Message {
	return Message{
		Role:       RoleTool,
		Content:    result.Content(),
		Name:       result.Name,
		ToolCallID: result.ToolCallID,
	}
}

// FromMessages 将持久化消息转换为模型消息。
//
// 助手消息中的 tool-call 片段会展开为 ToolCalls，随后的 tool-result 片段
// 展开为独立的 tool 消息，保持原有顺序；reasoning 片段不回传给模型。
func FromMessages(msgs []types.Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		cur := Message{Role: Role(m.Role)}
		var results []Message
		flush := func() {
			if cur.Content != "" || len(cur.ToolCalls) > 0 {
				out = append(out, cur)
			}
			out = append(out, results...)
			cur = Message{Role: Role(m.Role)}
			results = nil
		}
		for _, p := range m.Parts {
			switch p.Type {
			case types.PartText:
				if len(results) > 0 {
					flush()
				}
				cur.Content += p.Text
			case types.PartToolCall:
				if len(results) > 0 {
					flush()
				}
				cur.ToolCalls = append(cur.ToolCalls, ToolCall{ID: p.ToolCallID, Name: p.ToolName, Arguments: p.Input})
			case types.PartToolResult:
				content := string(p.Output)
				if p.IsError {
					content = "Error: " + content
				}
				results = append(results, Message{Role: RoleTool, Content: content, Name: p.ToolName, ToolCallID: p.ToolCallID})
			}
		}
		flush()
	}
	return out
}

// RawJSON 将任意值编码为 json.RawMessage；字符串原样包装为 JSON 字符串。
func RawJSON(v any) (json.RawMessage, error) {
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(v)
}
