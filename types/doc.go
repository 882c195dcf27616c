/*
Package types 提供 superfast-ai 运行时的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 agent、llm、config 等上层
模块提供统一的类型契约，以避免循环依赖。

# 核心类型

  - Error / ErrorCode：结构化错误体系，含 Code、Retryable、Context 与 Cause
  - ClassifyError    ：按错误消息将未分类错误归入 NETWORK / TIMEOUT / RATE_LIMIT 等类别
  - Message / Part   ：持久化对话消息（role + 有序的 text / tool-call / tool-result / reasoning 片段）
  - ToolSchema       ：工具定义（name + description + JSON Schema parameters）
  - ToolCall         ：模型发起的工具调用

# Context 传播

WithTraceID / WithUserID / WithThreadID / WithRunID 在请求链路中携带身份信息，
日志字段通过 LogFields 统一提取。
*/
package types
