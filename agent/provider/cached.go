package provider

import (
	"context"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/vivekverma239/superfast-ai/internal/cache"
)

// DefaultCacheTTL 缓存默认有效期。
const DefaultCacheTTL = 5 * time.Minute

// Cache lookup outcomes reported to the observer.
const (
	CacheHit       = "hit"
	CacheMiss      = "miss"
	CacheRemoteHit = "remote_hit"
)

type cacheEntry[T any] struct {
	value    T
	loadedAt time.Time
}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Entries    int   `json:"entries"`
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	RemoteHits int64 `json:"remote_hits"`
}

// CachedOption configures a CachedProvider.
type CachedOption func(*cachedOptions)

type cachedOptions struct {
	ttl      time.Duration
	now      func() time.Time
	remote   *cache.Manager
	name     string
	logger   *zap.Logger
	observer func(result string)
}

// WithTTL sets the entry lifetime. Non-positive values keep the default.
func WithTTL(ttl time.Duration) CachedOption {
	return func(o *cachedOptions) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) CachedOption {
	return func(o *cachedOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithDistributedCache adds a Redis tier behind the local map.
func WithDistributedCache(m *cache.Manager) CachedOption {
	return func(o *cachedOptions) { o.remote = m }
}

// WithCacheName namespaces remote keys. Providers sharing a cache.Manager
// need distinct names.
func WithCacheName(name string) CachedOption {
	return func(o *cachedOptions) { o.name = name }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) CachedOption {
	return func(o *cachedOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver receives hit, miss or remote_hit for every Load.
func WithObserver(fn func(result string)) CachedOption {
	return func(o *cachedOptions) { o.observer = fn }
}

// CachedProvider wraps a Provider with a per-scope TTL cache.
//
// An entry is stale once now-loadedAt exceeds the TTL. Save refreshes the
// entry with the saved value; Delete drops it. Concurrent misses for one
// scope share a single underlying Load.
type CachedProvider[T any] struct {
	inner Provider[T]
	opts  cachedOptions

	mu      sync.RWMutex
	entries map[string]cacheEntry[T]
	group   singleflight.Group

	statsMu sync.Mutex
	stats   CacheStats
}

var _ Provider[int] = (*CachedProvider[int])(nil)

// NewCachedProvider wraps inner.
func NewCachedProvider[T any](inner Provider[T], opts ...CachedOption) *CachedProvider[T] {
	o := cachedOptions{
		ttl:    DefaultCacheTTL,
		now:    time.Now,
		name:   "provider",
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &CachedProvider[T]{
		inner:   inner,
		opts:    o,
		entries: make(map[string]cacheEntry[T]),
	}
}

func (p *CachedProvider[T]) remoteKey(scope Scope) string {
	return p.opts.name + ":" + scope.CacheKey()
}

func (p *CachedProvider[T]) observe(result string) {
	p.statsMu.Lock()
	switch result {
	case CacheHit:
		p.stats.Hits++
	case CacheMiss:
		p.stats.Misses++
	case CacheRemoteHit:
		p.stats.RemoteHits++
	}
	p.statsMu.Unlock()
	if p.opts.observer != nil {
		p.opts.observer(result)
	}
}

func (p *CachedProvider[T]) fresh(key string) (T, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.entries[key]
	if !ok || p.opts.now().Sub(e.loadedAt) > p.opts.ttl {
		var zero T
		return zero, false
	}
	return cloneValue(e.value), true
}

func (p *CachedProvider[T]) store(key string, v T) {
	p.mu.Lock()
	p.entries[key] = cacheEntry[T]{value: cloneValue(v), loadedAt: p.opts.now()}
	p.mu.Unlock()
}

func (p *CachedProvider[T]) drop(key string) {
	p.mu.Lock()
	delete(p.entries, key)
	p.mu.Unlock()
}

// Load returns the cached value or loads it through the wrapped provider.
func (p *CachedProvider[T]) Load(ctx context.Context, scope Scope) (T, error) {
	key := scope.CacheKey()
	if v, ok := p.fresh(key); ok {
		p.observe(CacheHit)
		return v, nil
	}

	v, err, _ := p.group.Do(key, func() (any, error) {
		if v, ok := p.fresh(key); ok {
			p.observe(CacheHit)
			return v, nil
		}
		if p.opts.remote != nil {
			var remote T
			err := p.opts.remote.GetJSON(ctx, p.remoteKey(scope), &remote)
			if err == nil {
				p.observe(CacheRemoteHit)
				p.store(key, remote)
				return remote, nil
			}
			if !cache.IsCacheMiss(err) {
				p.opts.logger.Warn("remote cache read failed", zap.String("key", key), zap.Error(err))
			}
		}

		p.observe(CacheMiss)
		loaded, err := p.inner.Load(ctx, scope)
		if err != nil {
			return nil, err
		}
		p.store(key, loaded)
		p.writeRemote(ctx, scope, loaded)
		return loaded, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	// singleflight 的结果由所有等待者共享
	return cloneValue(v.(T)), nil
}

// cloneValue 复制切片类型的值，缓存与调用方不共享底层数组
func cloneValue[T any](v T) T {
	rv := reflect.ValueOf(&v).Elem()
	if rv.Kind() != reflect.Slice || rv.IsNil() {
		return v
	}
	cp := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
	reflect.Copy(cp, rv)
	return cp.Interface().(T)
}

func (p *CachedProvider[T]) writeRemote(ctx context.Context, scope Scope, v T) {
	if p.opts.remote == nil {
		return
	}
	if err := p.opts.remote.SetJSON(ctx, p.remoteKey(scope), v, p.opts.ttl); err != nil {
		p.opts.logger.Warn("remote cache write failed", zap.String("key", scope.CacheKey()), zap.Error(err))
	}
}

// Save writes through and refreshes the cache entry.
func (p *CachedProvider[T]) Save(ctx context.Context, scope Scope, value T) error {
	if err := p.inner.Save(ctx, scope, value); err != nil {
		return err
	}
	p.store(scope.CacheKey(), value)
	p.writeRemote(ctx, scope, value)
	return nil
}

// Delete writes through and invalidates the scope.
func (p *CachedProvider[T]) Delete(ctx context.Context, scope Scope, id string) error {
	if err := p.inner.Delete(ctx, scope, id); err != nil {
		return err
	}
	return p.Invalidate(ctx, scope)
}

// Invalidate drops the cached value of one scope from both tiers.
func (p *CachedProvider[T]) Invalidate(ctx context.Context, scope Scope) error {
	p.drop(scope.CacheKey())
	if p.opts.remote == nil {
		return nil
	}
	return p.opts.remote.Delete(ctx, p.remoteKey(scope))
}

// ClearCache empties both tiers.
func (p *CachedProvider[T]) ClearCache(ctx context.Context) error {
	p.mu.Lock()
	p.entries = make(map[string]cacheEntry[T])
	p.mu.Unlock()
	if p.opts.remote == nil {
		return nil
	}
	n, err := p.opts.remote.DeletePrefix(ctx, p.opts.name+":")
	if err != nil {
		return err
	}
	p.opts.logger.Debug("remote cache cleared", zap.String("name", p.opts.name), zap.Int("keys", n))
	return nil
}

// Stats returns a snapshot of the counters.
func (p *CachedProvider[T]) Stats() CacheStats {
	p.mu.RLock()
	n := len(p.entries)
	p.mu.RUnlock()
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	s := p.stats
	s.Entries = n
	return s
}
