// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/vivekverma239/superfast-ai/llm"
)

// TestContext 返回带超时的测试上下文
func TestContext(t *testing.T) context.Context {
	return TestContextWithTimeout(t, 30*time.Second)
}

// TestContextWithTimeout 返回带自定义超时的测试上下文
func TestContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext 返回已取消的上下文
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// CollectStreamContent 收集流式内容到字符串
func CollectStreamContent(ch <-chan llm.StreamChunk) string {
	var sb strings.Builder
	for chunk := range ch {
		sb.WriteString(chunk.Delta.Content)
	}
	return sb.String()
}
