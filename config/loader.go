// =============================================================================
// 📦 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("AGENT").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultEnvPrefix 环境变量默认前缀
const DefaultEnvPrefix = "AGENT"

// Config 完整配置结构
type Config struct {
	// Agent 字段直接挂在前缀下（AGENT_MODEL）
	Agent      StatefulAgentConfig `yaml:"agent" env:",inline"`
	Resilience ResilienceConfig    `yaml:"resilience" env:"RESILIENCE"`
	Cache      CacheConfig         `yaml:"cache" env:"CACHE"`
	Store      StoreConfig         `yaml:"store" env:"STORE"`
	Redis      RedisConfig         `yaml:"redis" env:"REDIS"`
	Database   DatabaseConfig      `yaml:"database" env:"DATABASE"`
	Mongo      MongoConfig         `yaml:"mongo" env:"MONGO"`
	LLM        LLMConfig           `yaml:"llm" env:"LLM"`
	Web        WebConfig           `yaml:"web" env:"WEB"`
	Log        LogConfig           `yaml:"log" env:"LOG"`
	Telemetry  TelemetryConfig     `yaml:"telemetry" env:"TELEMETRY"`
	Metrics    MetricsConfig       `yaml:"metrics" env:"METRICS"`
}

// AgentConfig 智能体运行参数。创建智能体时复制，之后不再修改。
type AgentConfig struct {
	Model    string `yaml:"model" json:"model" env:"MODEL"`
	MaxSteps int    `yaml:"max_steps" json:"maxSteps" env:"MAX_STEPS"`
	// 以下三项为 nil 表示未设置
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty" env:"TEMPERATURE"`
	MaxTokens   *int     `yaml:"max_tokens,omitempty" json:"maxTokens,omitempty" env:"MAX_TOKENS"`
	Retries     *int     `yaml:"retries,omitempty" json:"retries,omitempty" env:"RETRIES"`
	// MaxHistoryTokens 历史消息 token 上限，0 表示不限制
	MaxHistoryTokens int    `yaml:"max_history_tokens" json:"maxHistoryTokens,omitempty" env:"MAX_HISTORY_TOKENS"`
	SystemPrompt     string `yaml:"system_prompt" json:"systemPrompt,omitempty" env:"SYSTEM_PROMPT"`
}

// StatefulAgentConfig 在 AgentConfig 基础上控制内置工具
type StatefulAgentConfig struct {
	AgentConfig `yaml:",inline" env:",inline"`

	IncludeMemory    bool `yaml:"include_memory" json:"includeMemory" env:"INCLUDE_MEMORY"`
	IncludeTodoList  bool `yaml:"include_todo_list" json:"includeTodoList" env:"INCLUDE_TODO_LIST"`
	IncludeWebTools  bool `yaml:"include_web_tools" json:"includeWebTools" env:"INCLUDE_WEB_TOOLS"`
	IncludeArtifacts bool `yaml:"include_artifacts" json:"includeArtifacts" env:"INCLUDE_ARTIFACTS"`
}

// ResilienceConfig 重试与熔断
type ResilienceConfig struct {
	Retry   RetryConfig   `yaml:"retry" env:"RETRY"`
	Breaker BreakerConfig `yaml:"breaker" env:"BREAKER"`
}

// RetryConfig 退避参数，重试次数由 agent.retries 决定
type RetryConfig struct {
	BaseDelay         time.Duration `yaml:"base_delay" env:"BASE_DELAY"`
	MaxDelay          time.Duration `yaml:"max_delay" env:"MAX_DELAY"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" env:"BACKOFF_MULTIPLIER"`
	Jitter            bool          `yaml:"jitter" env:"JITTER"`
}

// BreakerConfig 熔断器参数
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold" env:"FAILURE_THRESHOLD"`
	ResetTimeout     time.Duration `yaml:"reset_timeout" env:"RESET_TIMEOUT"`
}

// CacheConfig provider 读缓存
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" env:"ENABLED"`
	TTL     time.Duration `yaml:"ttl" env:"TTL"`
	// Backend: memory, redis（redis 表示进程内缓存之后再接一层 Redis）
	Backend   string `yaml:"backend" env:"BACKEND"`
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// StoreConfig 记录存储
type StoreConfig struct {
	// Type: memory, redis, sql, mongo
	Type      string `yaml:"type" env:"TYPE"`
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
	// PersistTodos 待办列表是否写入存储
	PersistTodos bool `yaml:"persist_todos" env:"PERSIST_TODOS"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
	PoolSize int    `yaml:"pool_size" env:"POOL_SIZE"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动类型: postgres, mysql, sqlite
	Driver string `yaml:"driver" env:"DRIVER"`
	// DSN 非空时优先使用，否则由下面的字段拼接
	DSN      string `yaml:"dsn" env:"DSN"`
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	Name     string `yaml:"name" env:"NAME"`
	SSLMode  string `yaml:"ssl_mode" env:"SSL_MODE"`

	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// MongoConfig MongoDB 配置
type MongoConfig struct {
	URI        string        `yaml:"uri" env:"URI"`
	Database   string        `yaml:"database" env:"DATABASE"`
	Collection string        `yaml:"collection" env:"COLLECTION"`
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// LLMConfig 模型服务配置
type LLMConfig struct {
	// Provider 名称，决定默认 BaseURL（openai, openrouter, deepseek ...）
	Provider       string        `yaml:"provider" env:"PROVIDER"`
	BaseURL        string        `yaml:"base_url" env:"BASE_URL"`
	APIKey         string        `yaml:"api_key" env:"API_KEY"`
	Timeout        time.Duration `yaml:"timeout" env:"TIMEOUT"`
	EmbeddingModel string        `yaml:"embedding_model" env:"EMBEDDING_MODEL"`
}

// WebConfig web 工具配置
type WebConfig struct {
	SearchEndpoint string `yaml:"search_endpoint" env:"SEARCH_ENDPOINT"`
	// RateLimit 每秒请求数，0 表示不限速
	RateLimit   float64 `yaml:"rate_limit" env:"RATE_LIMIT"`
	Burst       int     `yaml:"burst" env:"BURST"`
	Readability bool    `yaml:"readability" env:"READABILITY"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format      string   `yaml:"format" env:"FORMAT"`
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// MetricsConfig Prometheus 指标
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" env:"ENABLED"`
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	lookupEnv  func(string) (string, bool)
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix: DefaultEnvPrefix,
		lookupEnv: os.LookupEnv,
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithEnvLookup 替换环境变量来源（测试用）
func (l *Loader) WithEnvLookup(fn func(string) (string, bool)) *Loader {
	if fn != nil {
		l.lookupEnv = fn
	}
	return l
}

// WithValidator 添加额外的配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量，然后校验
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段；env:",inline" 的字段沿用当前前缀
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag
		if envTag == ",inline" {
			envKey = prefix
		}

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue, ok := l.lookupEnv(envKey)
		if !ok || envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// setFieldValue 设置字段值；指针字段先分配再设置
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	if field.Kind() == reflect.Ptr {
		elem := reflect.New(field.Type().Elem())
		if err := setFieldValue(elem.Elem(), value); err != nil {
			return err
		}
		field.Set(elem)
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == durationType {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// DSNString 返回数据库连接字符串
func (d *DatabaseConfig) DSNString() string {
	if d.DSN != "" {
		return d.DSN
	}
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
