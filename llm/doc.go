/*
包 llm 定义运行时所依赖的模型调用能力。

# 概述

核心接口是 [Provider]：发送消息与工具 Schema，返回文本与工具调用，或以
[StreamChunk] 通道增量返回。运行时不关心具体的模型服务商，具体实现位于
llm/providers 子包。

# 子包

  - retry：指数退避重试（RetryManager）
  - circuitbreaker：三态熔断器
  - tools：工具注册表、工具循环（Runner）与 Web 能力
  - tokenizer：Token 计数
  - providers/openaicompat：OpenAI 兼容协议的 HTTP Provider
*/
package llm
