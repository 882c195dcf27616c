// Package openaicompat implements llm.Provider for any service exposing the
// OpenAI Chat Completions wire format, including SSE streaming and the
// embeddings endpoint used by the knowledge base.
//
// Usage:
//
//	p := openaicompat.New(openaicompat.Config{
//	    ProviderName: "deepseek",
//	    APIKey:       cfg.APIKey,
//	    DefaultModel: "deepseek-chat",
//	}, logger)
package openaicompat
