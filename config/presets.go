package config

import (
	"fmt"
	"sort"
	"sync"
)

// Built-in preset names.
const (
	PresetResearcher    = "researcher"
	PresetSimpleChat    = "simple_chat"
	PresetPDFAnalyzer   = "pdf_analyzer"
	PresetFastResponder = "fast_responder"
)

func float64Ptr(v float64) *float64 { return &v }
func intPtr(v int) *int             { return &v }

// ResearcherPreset 全部内置工具开启
func ResearcherPreset() StatefulAgentConfig {
	return StatefulAgentConfig{
		AgentConfig: AgentConfig{
			Model:       DefaultModel,
			MaxSteps:    10,
			Temperature: float64Ptr(0.7),
			Retries:     intPtr(3),
		},
		IncludeMemory:    true,
		IncludeTodoList:  true,
		IncludeWebTools:  true,
		IncludeArtifacts: true,
	}
}

// SimpleChatPreset 单步对话，不带状态工具
func SimpleChatPreset() StatefulAgentConfig {
	return StatefulAgentConfig{
		AgentConfig: AgentConfig{
			Model:       "google/gemini-2.5-flash",
			MaxSteps:    1,
			Temperature: float64Ptr(0.5),
			Retries:     intPtr(1),
		},
	}
}

// PDFAnalyzerPreset 文档分析，开启记忆与产物
func PDFAnalyzerPreset() StatefulAgentConfig {
	return StatefulAgentConfig{
		AgentConfig: AgentConfig{
			Model:       DefaultModel,
			MaxSteps:    5,
			Temperature: float64Ptr(0.3),
			Retries:     intPtr(2),
		},
		IncludeMemory:    true,
		IncludeArtifacts: true,
	}
}

// FastResponderPreset 单步短回复
func FastResponderPreset() StatefulAgentConfig {
	return StatefulAgentConfig{
		AgentConfig: AgentConfig{
			Model:       "google/gemini-2.5-flash-lite",
			MaxSteps:    1,
			Temperature: float64Ptr(0.4),
			MaxTokens:   intPtr(1000),
			Retries:     intPtr(1),
		},
	}
}

// Overrides 逐字段覆盖预设，nil 字段保持原值
type Overrides struct {
	Model            *string  `json:"model,omitempty"`
	MaxSteps         *int     `json:"maxSteps,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxTokens        *int     `json:"maxTokens,omitempty"`
	Retries          *int     `json:"retries,omitempty"`
	MaxHistoryTokens *int     `json:"maxHistoryTokens,omitempty"`
	SystemPrompt     *string  `json:"systemPrompt,omitempty"`
	IncludeMemory    *bool    `json:"includeMemory,omitempty"`
	IncludeTodoList  *bool    `json:"includeTodoList,omitempty"`
	IncludeWebTools  *bool    `json:"includeWebTools,omitempty"`
	IncludeArtifacts *bool    `json:"includeArtifacts,omitempty"`
}

// Apply returns base with the set fields of o applied.
func (o Overrides) Apply(base StatefulAgentConfig) StatefulAgentConfig {
	out := base.Clone()
	if o.Model != nil {
		out.Model = *o.Model
	}
	if o.MaxSteps != nil {
		out.MaxSteps = *o.MaxSteps
	}
	if o.Temperature != nil {
		out.Temperature = float64Ptr(*o.Temperature)
	}
	if o.MaxTokens != nil {
		out.MaxTokens = intPtr(*o.MaxTokens)
	}
	if o.Retries != nil {
		out.Retries = intPtr(*o.Retries)
	}
	if o.MaxHistoryTokens != nil {
		out.MaxHistoryTokens = *o.MaxHistoryTokens
	}
	if o.SystemPrompt != nil {
		out.SystemPrompt = *o.SystemPrompt
	}
	if o.IncludeMemory != nil {
		out.IncludeMemory = *o.IncludeMemory
	}
	if o.IncludeTodoList != nil {
		out.IncludeTodoList = *o.IncludeTodoList
	}
	if o.IncludeWebTools != nil {
		out.IncludeWebTools = *o.IncludeWebTools
	}
	if o.IncludeArtifacts != nil {
		out.IncludeArtifacts = *o.IncludeArtifacts
	}
	return out
}

// Clone 深拷贝指针字段
func (c StatefulAgentConfig) Clone() StatefulAgentConfig {
	out := c
	out.AgentConfig = c.AgentConfig.Clone()
	return out
}

// Clone 深拷贝指针字段
func (c AgentConfig) Clone() AgentConfig {
	out := c
	if c.Temperature != nil {
		out.Temperature = float64Ptr(*c.Temperature)
	}
	if c.MaxTokens != nil {
		out.MaxTokens = intPtr(*c.MaxTokens)
	}
	if c.Retries != nil {
		out.Retries = intPtr(*c.Retries)
	}
	return out
}

// PresetRegistry 命名预设注册表，由调用方显式构造并传递
type PresetRegistry struct {
	mu      sync.RWMutex
	presets map[string]StatefulAgentConfig
}

// NewPresetRegistry 创建包含四个内置预设的注册表
func NewPresetRegistry() *PresetRegistry {
	r := &PresetRegistry{presets: make(map[string]StatefulAgentConfig)}
	r.presets[PresetResearcher] = ResearcherPreset()
	r.presets[PresetSimpleChat] = SimpleChatPreset()
	r.presets[PresetPDFAnalyzer] = PDFAnalyzerPreset()
	r.presets[PresetFastResponder] = FastResponderPreset()
	return r
}

// Register 校验并注册预设，同名覆盖
func (r *PresetRegistry) Register(name string, cfg StatefulAgentConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presets[name] = cfg.Clone()
	return nil
}

// Get 返回预设副本
func (r *PresetRegistry) Get(name string) (StatefulAgentConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.presets[name]
	if !ok {
		return StatefulAgentConfig{}, false
	}
	return cfg.Clone(), true
}

// GetOrCreate 返回已有预设；不存在时校验并注册 base
func (r *PresetRegistry) GetOrCreate(name string, base StatefulAgentConfig) (StatefulAgentConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cfg, ok := r.presets[name]; ok {
		return cfg.Clone(), nil
	}
	if err := base.Validate(); err != nil {
		return StatefulAgentConfig{}, err
	}
	r.presets[name] = base.Clone()
	return base.Clone(), nil
}

// Merge 返回在预设上应用覆盖后的配置（经过校验），不修改注册表
func (r *PresetRegistry) Merge(name string, o Overrides) (StatefulAgentConfig, error) {
	base, ok := r.Get(name)
	if !ok {
		return StatefulAgentConfig{}, fmt.Errorf("preset %s not found", name)
	}
	merged := o.Apply(base)
	if err := merged.Validate(); err != nil {
		return StatefulAgentConfig{}, err
	}
	return merged, nil
}

// List 返回排序后的预设名
func (r *PresetRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.presets))
	for name := range r.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear 清空注册表（包括内置预设）
func (r *PresetRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presets = make(map[string]StatefulAgentConfig)
}
