package agent

import (
	"context"

	"github.com/vivekverma239/superfast-ai/agent/agentctx"
)

// DeriveFunc 根据绑定的上下文生成系统提示
type DeriveFunc func(ctx context.Context, c *agentctx.Context) (string, error)

// Instructions 是静态字符串或由上下文派生的系统提示，每轮解析一次。
type Instructions struct {
	static string
	derive DeriveFunc
}

// StaticInstructions 固定的系统提示
func StaticInstructions(s string) Instructions {
	return Instructions{static: s}
}

// DerivedInstructions 每轮根据上下文生成的系统提示
func DerivedInstructions(fn DeriveFunc) Instructions {
	return Instructions{derive: fn}
}

// IsDerived reports whether the instructions depend on the context.
func (i Instructions) IsDerived() bool {
	return i.derive != nil
}

// Resolve returns the system prompt for one turn.
func (i Instructions) Resolve(ctx context.Context, c *agentctx.Context) (string, error) {
	if i.derive == nil {
		return i.static, nil
	}
	return i.derive(ctx, c)
}
