package providers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vivekverma239/superfast-ai/llm"
	"github.com/vivekverma239/superfast-ai/types"
)

// MapHTTPError 将 HTTP 状态码映射为带重试标记的 types.Error
func MapHTTPError(status int, msg string, provider string) *types.Error {
	var e *types.Error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e = types.NewError(types.ErrAuthentication, msg)
	case status == http.StatusTooManyRequests:
		e = types.NewError(types.ErrRateLimit, msg).WithRetryable(true)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		e = types.NewError(types.ErrTimeout, msg).WithRetryable(true)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		e = types.NewError(types.ErrValidation, msg)
	case status >= 500:
		// 529 为部分服务商的模型过载状态
		e = types.NewError(types.ErrNetwork, msg).WithRetryable(true)
	default:
		e = types.NewError(types.ErrUnknown, msg)
	}
	return e.WithContext("provider", provider).WithContext("httpStatus", status)
}

// TransportError 包装请求发送或响应读取阶段的失败
func TransportError(err error, provider string) *types.Error {
	return types.NewError(types.ErrNetwork, "upstream request failed").
		WithCause(err).
		WithRetryable(true).
		WithContext("provider", provider)
}

// ReadErrorMessage 读取响应体中的错误消息
// 尝试解析 JSON 错误响应，失败则回退到原始文本
func ReadErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil {
		return "failed to read error response"
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		if errResp.Error.Type != "" {
			return fmt.Sprintf("%s (type: %s)", errResp.Error.Message, errResp.Error.Type)
		}
		return errResp.Error.Message
	}
	return strings.TrimSpace(string(data))
}

// OpenAI 兼容 API 通用类型

type OpenAICompatMessage struct {
	Role       string                 `json:"role"`
	Content    string                 `json:"content,omitempty"`
	Name       string                 `json:"name,omitempty"`
	ToolCalls  []OpenAICompatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string                 `json:"tool_call_id,omitempty"`
}

type OpenAICompatToolCall struct {
	Index    *int                 `json:"index,omitempty"` // 仅流式增量
	ID       string               `json:"id,omitempty"`
	Type     string               `json:"type,omitempty"`
	Function OpenAICompatFunction `json:"function"`
}

// OpenAICompatFunction 的 arguments 在线上是 JSON 字符串
type OpenAICompatFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments"`
}

type OpenAICompatToolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type OpenAICompatTool struct {
	Type     string              `json:"type"`
	Function OpenAICompatToolDef `json:"function"`
}

type StreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type OpenAICompatRequest struct {
	Model         string                `json:"model"`
	Messages      []OpenAICompatMessage `json:"messages"`
	Tools         []OpenAICompatTool    `json:"tools,omitempty"`
	ToolChoice    any                   `json:"tool_choice,omitempty"`
	MaxTokens     int                   `json:"max_tokens,omitempty"`
	Temperature   *float32              `json:"temperature,omitempty"`
	Stream        bool                  `json:"stream,omitempty"`
	StreamOptions *StreamOptions        `json:"stream_options,omitempty"`
}

type OpenAICompatChoice struct {
	Index        int                  `json:"index"`
	FinishReason string               `json:"finish_reason"`
	Message      OpenAICompatMessage  `json:"message"`
	Delta        *OpenAICompatMessage `json:"delta,omitempty"`
}

type OpenAICompatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type OpenAICompatResponse struct {
	ID      string               `json:"id"`
	Model   string               `json:"model"`
	Choices []OpenAICompatChoice `json:"choices"`
	Usage   *OpenAICompatUsage   `json:"usage,omitempty"`
	Created int64                `json:"created,omitempty"`
}

type ErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// EmbeddingRequest / EmbeddingResponse 对应 /v1/embeddings
type EmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type EmbeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Model string             `json:"model"`
	Usage *OpenAICompatUsage `json:"usage,omitempty"`
}

// ConvertMessagesToOpenAI 将 llm.Message 切片转换为 OpenAI 兼容格式.
func ConvertMessagesToOpenAI(msgs []llm.Message) []OpenAICompatMessage {
	out := make([]OpenAICompatMessage, 0, len(msgs))
	for _, m := range msgs {
		oa := OpenAICompatMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		if m.Role != llm.RoleTool {
			oa.Name = m.Name
		}
		for _, tc := range m.ToolCalls {
			args := string(tc.Arguments)
			if args == "" {
				args = "{}"
			}
			oa.ToolCalls = append(oa.ToolCalls, OpenAICompatToolCall{
				ID:       tc.ID,
				Type:     "function",
				Function: OpenAICompatFunction{Name: tc.Name, Arguments: args},
			})
		}
		out = append(out, oa)
	}
	return out
}

// ConvertToolsToOpenAI 将 llm.ToolSchema 切片转换为 OpenAI 兼容格式.
func ConvertToolsToOpenAI(tools []llm.ToolSchema) []OpenAICompatTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]OpenAICompatTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, OpenAICompatTool{
			Type: "function",
			Function: OpenAICompatToolDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

// ConvertToolChoice 将 auto/none/required 原样传递，其它值视为指定工具名
func ConvertToolChoice(choice string) any {
	switch choice {
	case "":
		return nil
	case "auto", "none", "required":
		return choice
	default:
		return map[string]any{"type": "function", "function": map[string]string{"name": choice}}
	}
}

// ToLLMChatResponse 将 OpenAI 兼容的响应转换为 llm.ChatResponse.
func ToLLMChatResponse(oa OpenAICompatResponse, provider string) *llm.ChatResponse {
	choices := make([]llm.ChatChoice, 0, len(oa.Choices))
	for _, c := range oa.Choices {
		msg := llm.Message{Role: llm.RoleAssistant, Content: c.Message.Content}
		for _, tc := range c.Message.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: json.RawMessage(tc.Function.Arguments),
			})
		}
		choices = append(choices, llm.ChatChoice{Index: c.Index, FinishReason: c.FinishReason, Message: msg})
	}
	resp := &llm.ChatResponse{ID: oa.ID, Provider: provider, Model: oa.Model, Choices: choices}
	if oa.Usage != nil {
		resp.Usage = ToLLMUsage(*oa.Usage)
	}
	return resp
}

func ToLLMUsage(u OpenAICompatUsage) llm.ChatUsage {
	return llm.ChatUsage{PromptTokens: u.PromptTokens, CompletionTokens: u.CompletionTokens, TotalTokens: u.TotalTokens}
}

// ChooseModel 根据请求和默认值选择模型
func ChooseModel(req *llm.ChatRequest, defaultModel, fallbackModel string) string {
	if req != nil && req.Model != "" {
		return req.Model
	}
	if defaultModel != "" {
		return defaultModel
	}
	return fallbackModel
}

// BearerTokenHeaders 是标准的 Bearer token 认证 header 构建函数。
func BearerTokenHeaders(r *http.Request, apiKey string) {
	if apiKey != "" {
		r.Header.Set("Authorization", "Bearer "+apiKey)
	}
	r.Header.Set("Content-Type", "application/json")
}
