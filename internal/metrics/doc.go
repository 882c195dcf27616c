// Package metrics 提供智能体运行时的 Prometheus 指标收集。
//
// Collector 通过 prometheus.Registerer 注册指标，测试中传入独立的
// prometheus.NewRegistry() 即可避免重复注册。nil *Collector 的所有
// Record 方法都是空操作，调用方无需判空。
//
// 指标（namespace 默认 "agent"）：
//
//	agent_turns_total{mode,status}
//	agent_turn_duration_seconds{mode}
//	agent_retries_total{label}
//	agent_tool_failures_total{tool,phase}
//	agent_cache_requests_total{result}
//	agent_circuit_breaker_state
//	agent_llm_tokens_total{model,type}
//	agent_db_connections{state}
package metrics
