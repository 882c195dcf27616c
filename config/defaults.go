package config

import "time"

// DefaultModel 默认模型
const DefaultModel = "x-ai/grok-4-fast"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Agent:      ResearcherPreset(),
		Resilience: DefaultResilienceConfig(),
		Cache:      DefaultCacheConfig(),
		Store:      DefaultStoreConfig(),
		Redis:      DefaultRedisConfig(),
		Database:   DefaultDatabaseConfig(),
		Mongo:      DefaultMongoConfig(),
		LLM:        DefaultLLMConfig(),
		Web:        DefaultWebConfig(),
		Log:        DefaultLogConfig(),
		Telemetry:  DefaultTelemetryConfig(),
		Metrics:    DefaultMetricsConfig(),
	}
}

// DefaultResilienceConfig 3 次重试 1s 起步 10s 封顶；5 次失败熔断 30s
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		Retry: RetryConfig{
			BaseDelay:         time.Second,
			MaxDelay:          10 * time.Second,
			BackoffMultiplier: 2,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
		},
	}
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:   true,
		TTL:       5 * time.Minute,
		Backend:   "memory",
		KeyPrefix: "superfast:cache:",
	}
}

func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type:      "memory",
		KeyPrefix: "superfast:store:",
	}
}

func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:     "localhost:6379",
		PoolSize: 10,
	}
}

func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Name:            "superfast.db",
		Host:            "localhost",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		URI:        "mongodb://localhost:27017",
		Database:   "superfast",
		Collection: "records",
		Timeout:    10 * time.Second,
	}
}

func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:       "openrouter",
		Timeout:        60 * time.Second,
		EmbeddingModel: "text-embedding-3-small",
	}
}

func DefaultWebConfig() WebConfig {
	return WebConfig{
		RateLimit:   1,
		Burst:       2,
		Readability: true,
	}
}

func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{"stderr"},
	}
}

func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "superfast-ai",
		SampleRate:   1.0,
	}
}

func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "agent",
	}
}
