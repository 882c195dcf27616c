package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrPoolClosed 连接池已关闭
var ErrPoolClosed = errors.New("database pool is closed")

// 支持的驱动
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// =============================================================================
// 🗄️ 数据库连接池管理器
// =============================================================================

// PoolManager 数据库连接池管理器
type PoolManager struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	config PoolConfig
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	stop   chan struct{}
	done   chan struct{}
}

// PoolConfig 连接池配置
type PoolConfig struct {
	// 最大空闲连接数
	MaxIdleConns int `yaml:"max_idle_conns" json:"max_idle_conns" env:"MAX_IDLE_CONNS"`

	// 最大打开连接数
	MaxOpenConns int `yaml:"max_open_conns" json:"max_open_conns" env:"MAX_OPEN_CONNS"`

	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`

	// 连接最大空闲时间
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time" env:"CONN_MAX_IDLE_TIME"`

	// 健康检查间隔，0 表示关闭
	HealthCheckInterval time.Duration `yaml:"health_check_interval" json:"health_check_interval" env:"HEALTH_CHECK_INTERVAL"`
}

// DefaultPoolConfig 返回默认连接池配置
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxIdleConns:        10,
		MaxOpenConns:        100,
		ConnMaxLifetime:     time.Hour,
		ConnMaxIdleTime:     10 * time.Minute,
		HealthCheckInterval: 30 * time.Second,
	}
}

// Validate 校验连接池配置
func (c PoolConfig) Validate() error {
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 {
		return fmt.Errorf("connection limits must not be negative")
	}
	if c.MaxOpenConns > 0 && c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("max_idle_conns (%d) exceeds max_open_conns (%d)", c.MaxIdleConns, c.MaxOpenConns)
	}
	if c.ConnMaxLifetime < 0 || c.ConnMaxIdleTime < 0 || c.HealthCheckInterval < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

// Config 描述一个 SQL 数据源
type Config struct {
	Driver string     `yaml:"driver" json:"driver" env:"DRIVER"`
	DSN    string     `yaml:"dsn" json:"dsn" env:"DSN"`
	Pool   PoolConfig `yaml:"pool" json:"pool"`
}

// Dialector 根据驱动名返回 gorm 方言
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database dsn not configured")
	}
	switch strings.ToLower(driver) {
	case DriverPostgres, "postgresql":
		return postgres.Open(dsn), nil
	case DriverMySQL:
		return mysql.Open(dsn), nil
	case DriverSQLite, "sqlite3":
		return sqlite.Open(dsn), nil
	case "":
		return nil, fmt.Errorf("database driver not configured")
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: postgres, mysql, sqlite)", driver)
	}
}

// Open 打开数据库并包装成 PoolManager
func Open(cfg Config, logger *zap.Logger) (*PoolManager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dialector, err := Dialector(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	// 内存 sqlite 每个连接是独立的库
	if isMemorySQLite(cfg.Driver, cfg.DSN) {
		cfg.Pool.MaxOpenConns = 1
		cfg.Pool.MaxIdleConns = 1
		cfg.Pool.ConnMaxLifetime = 0
		cfg.Pool.ConnMaxIdleTime = 0
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	pm, err := NewPoolManager(db, cfg.Pool, logger)
	if err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}
	logger.Info("database connected", zap.String("driver", cfg.Driver))
	return pm, nil
}

func isMemorySQLite(driver, dsn string) bool {
	d := strings.ToLower(driver)
	return (d == DriverSQLite || d == "sqlite3") && strings.Contains(dsn, ":memory:")
}

// NewPoolManager 创建连接池管理器
func NewPoolManager(db *gorm.DB, config PoolConfig, logger *zap.Logger) (*PoolManager, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pool config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	pm := &PoolManager{
		db:     db,
		sqlDB:  sqlDB,
		config: config,
		logger: logger.With(zap.String("component", "db_pool")),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	if config.HealthCheckInterval > 0 {
		go pm.healthCheckLoop()
	} else {
		close(pm.done)
	}

	pm.logger.Debug("database pool initialized",
		zap.Int("max_idle_conns", config.MaxIdleConns),
		zap.Int("max_open_conns", config.MaxOpenConns),
		zap.Duration("conn_max_lifetime", config.ConnMaxLifetime),
	)

	return pm, nil
}

// =============================================================================
// 🎯 核心方法
// =============================================================================

// DB 返回 GORM 数据库实例
func (pm *PoolManager) DB() *gorm.DB {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.db
}

// Ping 检查数据库连接
func (pm *PoolManager) Ping(ctx context.Context) error {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	if pm.closed {
		return ErrPoolClosed
	}
	return pm.sqlDB.PingContext(ctx)
}

// Stats 返回连接池统计信息
func (pm *PoolManager) Stats() sql.DBStats {
	return pm.sqlDB.Stats()
}

// Close 停止健康检查并关闭连接池，可重复调用
func (pm *PoolManager) Close() error {
	pm.mu.Lock()
	if pm.closed {
		pm.mu.Unlock()
		return nil
	}
	pm.closed = true
	close(pm.stop)
	pm.mu.Unlock()

	<-pm.done
	pm.logger.Info("closing database pool")
	return pm.sqlDB.Close()
}

// =============================================================================
// 🏥 健康检查
// =============================================================================

func (pm *PoolManager) healthCheckLoop() {
	defer close(pm.done)

	ticker := time.NewTicker(pm.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-pm.stop:
			return
		case <-ticker.C:
			pm.checkOnce()
		}
	}
}

func (pm *PoolManager) checkOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pm.sqlDB.PingContext(ctx); err != nil {
		pm.logger.Error("database health check failed", zap.Error(err))
		return
	}
	stats := pm.sqlDB.Stats()
	pm.logger.Debug("database health check passed",
		zap.Int("open_connections", stats.OpenConnections),
		zap.Int("in_use", stats.InUse),
		zap.Int("idle", stats.Idle),
	)
}

// =============================================================================
// 📊 统计信息
// =============================================================================

// PoolStats 连接池统计信息
type PoolStats struct {
	MaxOpenConnections int           `json:"max_open_connections"`
	OpenConnections    int           `json:"open_connections"`
	InUse              int           `json:"in_use"`
	Idle               int           `json:"idle"`
	WaitCount          int64         `json:"wait_count"`
	WaitDuration       time.Duration `json:"wait_duration"`
	MaxIdleClosed      int64         `json:"max_idle_closed"`
	MaxLifetimeClosed  int64         `json:"max_lifetime_closed"`
}

// GetStats 获取友好格式的统计信息
func (pm *PoolManager) GetStats() PoolStats {
	stats := pm.Stats()
	return PoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
		MaxIdleClosed:      stats.MaxIdleClosed,
		MaxLifetimeClosed:  stats.MaxLifetimeClosed,
	}
}

// =============================================================================
// 🔄 事务管理
// =============================================================================

// TransactionFunc 事务函数类型
type TransactionFunc func(tx *gorm.DB) error

// WithTransaction 在事务中执行函数
func (pm *PoolManager) WithTransaction(ctx context.Context, fn TransactionFunc) error {
	pm.mu.RLock()
	if pm.closed {
		pm.mu.RUnlock()
		return ErrPoolClosed
	}
	db := pm.db
	pm.mu.RUnlock()

	return db.WithContext(ctx).Transaction(fn)
}

// WithTransactionRetry 在事务中执行函数，死锁和序列化失败时指数退避重试
func (pm *PoolManager) WithTransactionRetry(ctx context.Context, maxRetries int, fn TransactionFunc) error {
	if maxRetries < 1 {
		maxRetries = 1
	}
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		err := pm.WithTransaction(ctx, fn)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryableError(err) {
			return err
		}
		if i == maxRetries-1 {
			break
		}

		pm.logger.Warn("transaction failed, retrying",
			zap.Int("attempt", i+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
		)

		backoff := time.Duration(1<<uint(i)) * 100 * time.Millisecond
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("transaction failed after %d retries: %w", maxRetries, lastErr)
}

var retryableFragments = []string{
	"deadlock",
	"serialization failure",
	"40001",
	"connection reset",
	"connection refused",
	"broken pipe",
	"lock timeout",
	"lock wait timeout",
	"database is locked",
	"bad connection",
}

// IsRetryableError 判断数据库错误是否值得重试
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, frag := range retryableFragments {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}
