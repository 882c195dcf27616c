// Package telemetry 初始化 OpenTelemetry trace 与 metric provider，
// 并提供智能体 span 的辅助函数。遥测关闭时使用 noop 实现。
package telemetry
