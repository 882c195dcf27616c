// =============================================================================
// 📦 测试数据工厂
// =============================================================================
package fixtures

import (
	"fmt"
	"time"

	"github.com/vivekverma239/superfast-ai/types"
)

// Conversation 生成 turns 轮的用户/助手交替历史
func Conversation(turns int) []types.Message {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	msgs := make([]types.Message, 0, turns*2)
	for i := 0; i < turns; i++ {
		u := types.NewUserMessage(fmt.Sprintf("u-%d", i), fmt.Sprintf("question %d", i))
		u.CreatedAt = base.Add(time.Duration(2*i) * time.Second)
		a := types.NewAssistantMessage(fmt.Sprintf("a-%d", i), fmt.Sprintf("answer %d", i))
		a.CreatedAt = base.Add(time.Duration(2*i+1) * time.Second)
		msgs = append(msgs, u, a)
	}
	return msgs
}
