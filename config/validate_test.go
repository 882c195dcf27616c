package config

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivekverma239/superfast-ai/types"
)

func TestAgentConfig_Validate(t *testing.T) {
	valid := func() AgentConfig {
		return AgentConfig{Model: "m", MaxSteps: 10}
	}

	tests := []struct {
		name    string
		mutate  func(*AgentConfig)
		wantErr string
	}{
		{"valid", func(*AgentConfig) {}, ""},
		{"missing model", func(c *AgentConfig) { c.Model = " " }, "model is required"},
		{"zero steps", func(c *AgentConfig) { c.MaxSteps = 0 }, "max_steps"},
		{"too many steps", func(c *AgentConfig) { c.MaxSteps = 51 }, "max_steps"},
		{"max steps upper bound", func(c *AgentConfig) { c.MaxSteps = 50 }, ""},
		{"negative temperature", func(c *AgentConfig) { c.Temperature = float64Ptr(-0.1) }, "temperature"},
		{"temperature upper bound", func(c *AgentConfig) { c.Temperature = float64Ptr(2) }, ""},
		{"temperature too high", func(c *AgentConfig) { c.Temperature = float64Ptr(2.1) }, "temperature"},
		{"temperature NaN", func(c *AgentConfig) { c.Temperature = float64Ptr(math.NaN()) }, "temperature"},
		{"zero max tokens", func(c *AgentConfig) { c.MaxTokens = intPtr(0) }, "max_tokens"},
		{"retries upper bound", func(c *AgentConfig) { c.Retries = intPtr(5) }, ""},
		{"too many retries", func(c *AgentConfig) { c.Retries = intPtr(6) }, "retries"},
		{"negative history", func(c *AgentConfig) { c.MaxHistoryTokens = -1 }, "max_history_tokens"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, types.IsErrorCode(err, types.ErrConfiguration))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAgentConfig_ValidateListsEveryViolation(t *testing.T) {
	cfg := AgentConfig{MaxSteps: 0, Retries: intPtr(9)}
	assert.Len(t, cfg.Violations(), 3)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"unknown store", func(c *Config) { c.Store.Type = "etcd" }, "store.type"},
		{"sql with bad driver", func(c *Config) { c.Store.Type = "sql"; c.Database.Driver = "oracle" }, "database.driver"},
		{"mongo without uri", func(c *Config) { c.Store.Type = "mongo"; c.Mongo.URI = "" }, "mongo.uri"},
		{"bad cache backend", func(c *Config) { c.Cache.Backend = "disk" }, "cache.backend"},
		{"zero breaker threshold", func(c *Config) { c.Resilience.Breaker.FailureThreshold = 0 }, "failure_threshold"},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad sample rate", func(c *Config) { c.Telemetry.SampleRate = 1.5 }, "sample_rate"},
		{"agent violation", func(c *Config) { c.Agent.Model = "" }, "model is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
