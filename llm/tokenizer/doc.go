// Package tokenizer 提供统一的 Token 计数接口，
// 支持 tiktoken 精确计数，编码数据不可用时退回字符估算（Estimator），用于对话历史的 Token 预算裁剪。
package tokenizer
