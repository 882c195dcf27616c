package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// =============================================================================
// 💾 缓存管理器
// =============================================================================

// ErrCacheMiss 缓存未命中错误
var ErrCacheMiss = errors.New("cache miss")

// ErrClosed 管理器已关闭
var ErrClosed = errors.New("cache manager is closed")

// IsCacheMiss 判断是否为缓存未命中错误
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

// Manager 缓存管理器
type Manager struct {
	redis     redis.UniversalClient
	ownClient bool
	config    Config
	logger    *zap.Logger
	mu        sync.RWMutex
	closed    bool
	stop      chan struct{}
}

// Config 缓存配置
type Config struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`

	// KeyPrefix 所有键的前缀
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`

	// 默认过期时间
	DefaultTTL time.Duration `yaml:"default_ttl" json:"default_ttl"`

	PoolSize int `yaml:"pool_size" json:"pool_size"`

	// 健康检查间隔，0 表示关闭
	HealthCheckInterval time.Duration `yaml:"health_check_interval" json:"health_check_interval"`
}

// DefaultConfig 返回默认缓存配置
func DefaultConfig() Config {
	return Config{
		Addr:       "localhost:6379",
		KeyPrefix:  "superfast:cache:",
		DefaultTTL: 5 * time.Minute,
		PoolSize:   10,
	}
}

// NewManager 创建缓存管理器并建立自己的 Redis 连接
func NewManager(config Config, logger *zap.Logger) (*Manager, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	m := NewManagerWithClient(client, config, logger)
	m.ownClient = true
	return m, nil
}

// NewManagerWithClient 复用已有的 Redis 客户端（例如持久化层的连接），
// Close 时不会关闭该客户端。
func NewManagerWithClient(client redis.UniversalClient, config Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		redis:  client,
		config: config,
		logger: logger.With(zap.String("component", "cache")),
		stop:   make(chan struct{}),
	}
	if config.HealthCheckInterval > 0 {
		go m.healthCheckLoop()
	}
	m.logger.Info("cache manager initialized", zap.String("prefix", config.KeyPrefix))
	return m
}

func (m *Manager) key(k string) string {
	return m.config.KeyPrefix + k
}

func (m *Manager) client() (redis.UniversalClient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	return m.redis, nil
}

// =============================================================================
// 🎯 核心方法
// =============================================================================

// Get 获取缓存值
func (m *Manager) Get(ctx context.Context, key string) (string, error) {
	c, err := m.client()
	if err != nil {
		return "", err
	}
	val, err := c.Get(ctx, m.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		m.logger.Error("cache get failed", zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("cache get failed: %w", err)
	}
	return val, nil
}

// Set 设置缓存值，ttl 为 0 时使用默认过期时间
func (m *Manager) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	c, err := m.client()
	if err != nil {
		return err
	}
	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}
	if err := c.Set(ctx, m.key(key), value, ttl).Err(); err != nil {
		m.logger.Error("cache set failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// GetJSON 获取 JSON 缓存值
func (m *Manager) GetJSON(ctx context.Context, key string, dest any) error {
	val, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return nil
}

// SetJSON 设置 JSON 缓存值
func (m *Manager) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return m.Set(ctx, key, string(data), ttl)
}

// Delete 删除缓存值
func (m *Manager) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	c, err := m.client()
	if err != nil {
		return err
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = m.key(k)
	}
	if err := c.Del(ctx, full...).Err(); err != nil {
		m.logger.Error("cache delete failed", zap.Strings("keys", keys), zap.Error(err))
		return fmt.Errorf("cache delete failed: %w", err)
	}
	return nil
}

// DeletePrefix 删除所有以 prefix 开头的键（SCAN 遍历），返回删除数量
func (m *Manager) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	c, err := m.client()
	if err != nil {
		return 0, err
	}
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := c.Scan(ctx, cursor, m.key(prefix)+"*", 200).Result()
		if err != nil {
			return deleted, fmt.Errorf("cache scan failed: %w", err)
		}
		if len(keys) > 0 {
			n, err := c.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("cache delete failed: %w", err)
			}
			deleted += int(n)
		}
		if next == 0 {
			return deleted, nil
		}
		cursor = next
	}
}

// Ping 检查 Redis 连接
func (m *Manager) Ping(ctx context.Context) error {
	c, err := m.client()
	if err != nil {
		return err
	}
	return c.Ping(ctx).Err()
}

// Close 关闭缓存管理器
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.stop)
	m.logger.Info("closing cache manager")
	if m.ownClient {
		return m.redis.Close()
	}
	return nil
}

// =============================================================================
// 🏥 健康检查
// =============================================================================

func (m *Manager) healthCheckLoop() {
	ticker := time.NewTicker(m.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := m.Ping(ctx); err != nil {
			m.logger.Error("cache health check failed", zap.Error(err))
		} else {
			m.logger.Debug("cache health check passed")
		}
		cancel()
	}
}
