package provider

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vivekverma239/superfast-ai/agent/persistence"
	"github.com/vivekverma239/superfast-ai/agent/state"
	"github.com/vivekverma239/superfast-ai/internal/cache"
	"github.com/vivekverma239/superfast-ai/types"
)

// Registry names used by RegisterAll.
const (
	NameMemory   = "memory"
	NameTodo     = "todo"
	NameArtifact = "artifact"
	NameMessage  = "message"
)

// ProviderFactory builds the standard providers over one store.
type ProviderFactory struct {
	Store persistence.Store
	// Cache 可选，设置后 CachedProvider 使用 Redis 二级缓存
	Cache  *cache.Manager
	TTL    time.Duration
	Cached bool
	Logger *zap.Logger
	// StateOptions are passed to every manager the providers create.
	StateOptions []state.Option
	// Observer 接收每次缓存读取的结果（hit/miss/remote_hit）
	Observer func(result string)
}

func (f *ProviderFactory) logger() *zap.Logger {
	if f.Logger == nil {
		return zap.NewNop()
	}
	return f.Logger
}

func wrap[T any](f *ProviderFactory, name string, p Provider[T]) Provider[T] {
	if !f.Cached {
		return p
	}
	opts := []CachedOption{WithTTL(f.TTL), WithCacheName(name), WithLogger(f.logger().With(zap.String("provider", name)))}
	if f.Cache != nil {
		opts = append(opts, WithDistributedCache(f.Cache))
	}
	if f.Observer != nil {
		opts = append(opts, WithObserver(f.Observer))
	}
	return NewCachedProvider(p, opts...)
}

// Memory returns a provider of user-global memories. Scope.ThreadID is ignored.
func (f *ProviderFactory) Memory() Provider[[]state.MemoryState] {
	p := NewManagerProvider(func(s Scope) state.Manager[[]state.MemoryState] {
		return state.NewMemoryManager(f.Store, s.UserID, f.StateOptions...)
	}, func(list []state.MemoryState, id string) []state.MemoryState {
		out := make([]state.MemoryState, 0, len(list))
		for _, m := range list {
			if m.ID != id {
				out = append(out, m)
			}
		}
		return out
	})
	return userScoped[[]state.MemoryState]{inner: wrap[[]state.MemoryState](f, NameMemory, p)}
}

// Todo returns a persistent todo provider.
func (f *ProviderFactory) Todo() Provider[[]state.TodoState] {
	opts := append(append([]state.Option{}, f.StateOptions...), state.WithTodoStore(f.Store))
	p := NewManagerProvider(func(s Scope) state.Manager[[]state.TodoState] {
		return state.NewTodoManager(s.UserID, s.ThreadID, opts...)
	}, func(list []state.TodoState, id string) []state.TodoState {
		out := make([]state.TodoState, 0, len(list))
		for _, t := range list {
			if t.ID != id {
				out = append(out, t)
			}
		}
		return out
	})
	return wrap[[]state.TodoState](f, NameTodo, p)
}

// Artifact returns an artifact provider.
func (f *ProviderFactory) Artifact() Provider[[]state.ArtifactState] {
	p := NewManagerProvider(func(s Scope) state.Manager[[]state.ArtifactState] {
		return state.NewArtifactManager(f.Store, s.UserID, s.ThreadID, f.StateOptions...)
	}, func(list []state.ArtifactState, id string) []state.ArtifactState {
		out := make([]state.ArtifactState, 0, len(list))
		for _, a := range list {
			if a.ID != id {
				out = append(out, a)
			}
		}
		return out
	})
	return wrap[[]state.ArtifactState](f, NameArtifact, p)
}

// Message returns a message provider.
func (f *ProviderFactory) Message() Provider[[]types.Message] {
	return wrap[[]types.Message](f, NameMessage, NewMessageProvider(f.Store, f.StateOptions...))
}

// RegisterAll registers the four providers into m under the Name constants.
func (f *ProviderFactory) RegisterAll(m *ProviderManager) {
	m.Register(NameMemory, f.Memory())
	m.Register(NameTodo, f.Todo())
	m.Register(NameArtifact, f.Artifact())
	m.Register(NameMessage, f.Message())
}

// userScoped drops ThreadID so that every thread of a user shares one cache entry.
type userScoped[T any] struct {
	inner Provider[T]
}

func (u userScoped[T]) Load(ctx context.Context, s Scope) (T, error) {
	return u.inner.Load(ctx, Scope{UserID: s.UserID})
}

func (u userScoped[T]) Save(ctx context.Context, s Scope, v T) error {
	return u.inner.Save(ctx, Scope{UserID: s.UserID}, v)
}

func (u userScoped[T]) Delete(ctx context.Context, s Scope, id string) error {
	return u.inner.Delete(ctx, Scope{UserID: s.UserID}, id)
}
