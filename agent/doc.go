/*
Package agent 提供有状态、可调用工具的智能体执行核心。

# Overview

Agent 把一次模型调用包装成带韧性、带状态、可调用工具的对话循环。
每个请求创建一个 Agent，并绑定一个线程级的 agentctx.Context。

# Architecture

	┌───────────────────────────────────────────────────────────┐
	│                  Run / Stream                             │
	├───────────────────────────────────────────────────────────┤
	│  CircuitBreaker  →  RetryManager  →  turn body            │
	├───────────────────────────────────────────────────────────┤
	│  ┌──────────────┐  ┌──────────────┐  ┌──────────────────┐ │
	│  │ Instructions │  │ ToolRegistry │  │  MessageManager  │ │
	│  │ static/derive│  │  (factories) │  │   (history)      │ │
	│  └──────────────┘  └──────────────┘  └──────────────────┘ │
	├───────────────────────────────────────────────────────────┤
	│                 tools.Runner (step loop)                  │
	├───────────────────────────────────────────────────────────┤
	│                     llm.Provider                          │
	└───────────────────────────────────────────────────────────┘

# Turn

一轮对话：加载线程历史 → 追加新消息 → 按 MaxHistoryTokens 裁剪 →
解析系统提示与工具 → 在 MaxSteps 步内运行模型/工具循环 →
生成新的助手消息并持久化。

熔断器把整个重试序列视为一次调用；重试管理器对每次失败分类，
不可重试的错误立即返回。

Stream 在调用模型前就持久化新消息（跨重试只写一次），最终的助手消息
在 on-finish 钩子里只写一次。

# Plugins

插件通过 AddPlugin 安装，Install 成功后才注册；Cleanup 按安装顺序的
逆序卸载全部插件，单个失败只记录日志。

# Concurrency

一个 Agent 同一时间只服务一轮对话。注册表、熔断器与插件表有锁保护，
但不支持在同一个 Agent 上并发运行多轮。
*/
package agent
