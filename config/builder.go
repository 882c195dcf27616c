package config

import "github.com/vivekverma239/superfast-ai/types"

// DefaultMaxSteps builder 未设置步数时使用
const DefaultMaxSteps = 10

// AgentConfigBuilder 链式构造并校验 StatefulAgentConfig
type AgentConfigBuilder struct {
	cfg StatefulAgentConfig
}

// NewAgentConfigBuilder 创建空 builder
func NewAgentConfigBuilder() *AgentConfigBuilder {
	return &AgentConfigBuilder{}
}

func (b *AgentConfigBuilder) Model(model string) *AgentConfigBuilder {
	b.cfg.Model = model
	return b
}

func (b *AgentConfigBuilder) MaxSteps(n int) *AgentConfigBuilder {
	b.cfg.MaxSteps = n
	return b
}

func (b *AgentConfigBuilder) Temperature(t float64) *AgentConfigBuilder {
	b.cfg.Temperature = float64Ptr(t)
	return b
}

func (b *AgentConfigBuilder) MaxTokens(n int) *AgentConfigBuilder {
	b.cfg.MaxTokens = intPtr(n)
	return b
}

func (b *AgentConfigBuilder) Retries(n int) *AgentConfigBuilder {
	b.cfg.Retries = intPtr(n)
	return b
}

func (b *AgentConfigBuilder) MaxHistoryTokens(n int) *AgentConfigBuilder {
	b.cfg.MaxHistoryTokens = n
	return b
}

func (b *AgentConfigBuilder) SystemPrompt(p string) *AgentConfigBuilder {
	b.cfg.SystemPrompt = p
	return b
}

func (b *AgentConfigBuilder) IncludeMemory(on bool) *AgentConfigBuilder {
	b.cfg.IncludeMemory = on
	return b
}

func (b *AgentConfigBuilder) IncludeTodoList(on bool) *AgentConfigBuilder {
	b.cfg.IncludeTodoList = on
	return b
}

func (b *AgentConfigBuilder) IncludeWebTools(on bool) *AgentConfigBuilder {
	b.cfg.IncludeWebTools = on
	return b
}

func (b *AgentConfigBuilder) IncludeArtifacts(on bool) *AgentConfigBuilder {
	b.cfg.IncludeArtifacts = on
	return b
}

// Build 校验后返回配置。model 必填，步数未设置时取 DefaultMaxSteps。
func (b *AgentConfigBuilder) Build() (StatefulAgentConfig, error) {
	if b.cfg.Model == "" {
		return StatefulAgentConfig{}, types.NewConfigurationError("model is required")
	}
	cfg := b.cfg.Clone()
	if cfg.MaxSteps == 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if err := cfg.Validate(); err != nil {
		return StatefulAgentConfig{}, err
	}
	return cfg, nil
}
