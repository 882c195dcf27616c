package types

import (
	"encoding/json"
	"strings"
	"time"
)

// Role represents the role of a message participant.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PartType tags a message part.
type PartType string

const (
	PartText       PartType = "text"
	PartToolCall   PartType = "tool-call"
	PartToolResult PartType = "tool-result"
	PartReasoning  PartType = "reasoning"
)

// Part is one typed piece of message content.
type Part struct {
	Type       PartType        `json:"type"`
	Text       string          `json:"text,omitempty"`
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
	IsError    bool            `json:"isError,omitempty"`
}

// Message is a persisted conversation message. It is never mutated after
// persistence; ordering within a thread is CreatedAt order.
type Message struct {
	ID        string         `json:"id"`
	Role      Role           `json:"role"`
	Parts     []Part         `json:"parts"`
	CreatedAt time.Time      `json:"createdAt"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewMessage creates a message with a single text part.
func NewMessage(id string, role Role, text string) Message {
	return Message{
		ID:        id,
		Role:      role,
		Parts:     []Part{{Type: PartText, Text: text}},
		CreatedAt: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(id, text string) Message {
	return NewMessage(id, RoleUser, text)
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(id, text string) Message {
	return NewMessage(id, RoleAssistant, text)
}

// Text concatenates the text parts of the message.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == PartText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// ToolCalls returns the tool-call parts in order.
func (m Message) ToolCalls() []Part {
	var out []Part
	for _, p := range m.Parts {
		if p.Type == PartToolCall {
			out = append(out, p)
		}
	}
	return out
}
