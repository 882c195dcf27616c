/*
包 providers 提供模型服务商适配的公共基础层。

# 核心函数

  - MapHTTPError：将 HTTP 状态码映射为 types.Error（含 Retryable 标记）
  - ConvertMessagesToOpenAI / ConvertToolsToOpenAI：消息与工具格式转换
  - ToLLMChatResponse：OpenAI 兼容响应到 llm.ChatResponse 的转换
  - ChooseModel：按优先级选择模型（请求 > 默认 > 兜底）

具体实现位于 openaicompat 子包，覆盖 OpenAI、DeepSeek、Qwen、Groq、
Ollama 等提供 Chat Completions 兼容接口的服务。
*/
package providers
