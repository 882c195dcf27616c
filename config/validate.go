package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/vivekverma239/superfast-ai/types"
)

// 参数范围
const (
	MinMaxSteps    = 1
	MaxMaxSteps    = 50
	MaxTemperature = 2.0
	MaxRetries     = 5
)

// Violations 返回所有不合法字段的描述，合法时为空
func (c AgentConfig) Violations() []string {
	var errs []string
	if strings.TrimSpace(c.Model) == "" {
		errs = append(errs, "model is required")
	}
	if c.MaxSteps < MinMaxSteps || c.MaxSteps > MaxMaxSteps {
		errs = append(errs, fmt.Sprintf("max_steps must be between %d and %d, got %d", MinMaxSteps, MaxMaxSteps, c.MaxSteps))
	}
	if c.Temperature != nil && (math.IsNaN(*c.Temperature) || *c.Temperature < 0 || *c.Temperature > MaxTemperature) {
		errs = append(errs, fmt.Sprintf("temperature must be between 0 and %g, got %g", MaxTemperature, *c.Temperature))
	}
	if c.MaxTokens != nil && *c.MaxTokens < 1 {
		errs = append(errs, fmt.Sprintf("max_tokens must be at least 1, got %d", *c.MaxTokens))
	}
	if c.Retries != nil && (*c.Retries < 0 || *c.Retries > MaxRetries) {
		errs = append(errs, fmt.Sprintf("retries must be between 0 and %d, got %d", MaxRetries, *c.Retries))
	}
	if c.MaxHistoryTokens < 0 {
		errs = append(errs, "max_history_tokens must not be negative")
	}
	return errs
}

// Validate 校验智能体参数，失败时返回列出全部问题的 CONFIGURATION_ERROR
func (c AgentConfig) Validate() error {
	return violationError("invalid agent config", c.Violations())
}

// Validate 校验智能体参数
func (c StatefulAgentConfig) Validate() error {
	return c.AgentConfig.Validate()
}

// Validate 校验完整配置
func (c *Config) Validate() error {
	errs := c.Agent.Violations()

	switch c.Store.Type {
	case "memory", "redis", "sql", "mongo":
	default:
		errs = append(errs, fmt.Sprintf("store.type must be one of memory, redis, sql, mongo, got %q", c.Store.Type))
	}
	if c.Store.Type == "sql" {
		switch c.Database.Driver {
		case "postgres", "mysql", "sqlite":
		default:
			errs = append(errs, fmt.Sprintf("database.driver must be one of postgres, mysql, sqlite, got %q", c.Database.Driver))
		}
	}
	if c.Store.Type == "mongo" && c.Mongo.URI == "" {
		errs = append(errs, "mongo.uri is required for the mongo store")
	}
	if c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
		errs = append(errs, fmt.Sprintf("cache.backend must be memory or redis, got %q", c.Cache.Backend))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, "cache.ttl must not be negative")
	}
	if c.Resilience.Breaker.FailureThreshold < 1 {
		errs = append(errs, "resilience.breaker.failure_threshold must be at least 1")
	}
	if c.Resilience.Breaker.ResetTimeout <= 0 {
		errs = append(errs, "resilience.breaker.reset_timeout must be positive")
	}
	if c.Web.RateLimit < 0 {
		errs = append(errs, "web.rate_limit must not be negative")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level))
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, fmt.Sprintf("log.format must be json or console, got %q", c.Log.Format))
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, "telemetry.sample_rate must be between 0 and 1")
	}

	return violationError("config validation failed", errs)
}

func violationError(msg string, errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return types.NewConfigurationError(msg+": "+strings.Join(errs, "; ")).WithContext("violations", errs)
}
