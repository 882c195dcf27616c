/*
Package testutil 提供测试共享的辅助函数。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 流式辅助: CollectStreamContent

# 子包

  - testutil/mocks: ScriptedProvider，按脚本逐轮返回文本、工具调用或错误的
    llm.Provider 实现，同时支持 Completion 与 Stream
  - testutil/fixtures: 按固定时间生成的对话历史

# 使用示例

	ctx := testutil.TestContext(t)
	provider := mocks.NewScriptedProvider(
		mocks.ToolTurn(mocks.Call("c1", "updateMemory", `{"updates":[{"details":"x"}]}`)),
		mocks.TextTurn("done"),
	)
*/
package testutil
