package types

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_TextAndToolCalls(t *testing.T) {
	msg := Message{
		ID:   "m1",
		Role: RoleAssistant,
		Parts: []Part{
			{Type: PartReasoning, Text: "thinking"},
			{Type: PartText, Text: "Hello, "},
			{Type: PartToolCall, ToolCallID: "c1", ToolName: "webSearch", Input: json.RawMessage(`{"query":"go"}`)},
			{Type: PartText, Text: "world"},
		},
	}

	assert.Equal(t, "Hello, world", msg.Text())
	calls := msg.ToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "webSearch", calls[0].ToolName)
}

func TestNewUserMessage(t *testing.T) {
	msg := NewUserMessage("u1", "hi")
	assert.Equal(t, RoleUser, msg.Role)
	assert.Equal(t, "hi", msg.Text())
	assert.False(t, msg.CreatedAt.IsZero())
}

func TestToolResult_Content(t *testing.T) {
	ok := ToolResult{Name: "calc", Result: json.RawMessage(`{"v":2}`)}
	assert.False(t, ok.IsError())
	assert.Equal(t, `{"v":2}`, ok.Content())

	failed := ToolResult{Name: "calc", Error: "division by zero"}
	assert.True(t, failed.IsError())
	assert.Equal(t, "Error: division by zero", failed.Content())
}

func TestLogFields(t *testing.T) {
	ctx := WithUserID(WithThreadID(context.Background(), "t1"), "u1")
	fields := LogFields(ctx)
	require.Len(t, fields, 2)

	keys := []string{fields[0].Key, fields[1].Key}
	assert.ElementsMatch(t, []string{"user_id", "thread_id"}, keys)

	assert.Empty(t, LogFields(context.Background()))
}
