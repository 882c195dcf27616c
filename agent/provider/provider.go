package provider

import (
	"context"

	"github.com/vivekverma239/superfast-ai/agent/state"
)

// Scope identifies whose state a provider call addresses. An empty
// ThreadID means user-global state.
type Scope struct {
	UserID   string `json:"user_id"`
	ThreadID string `json:"thread_id,omitempty"`
}

// CacheKey returns userId-threadId, or userId-global without a thread.
func (s Scope) CacheKey() string {
	thread := s.ThreadID
	if thread == "" {
		thread = "global"
	}
	return s.UserID + "-" + thread
}

// Provider reads and writes one category of state for a scope.
type Provider[T any] interface {
	Load(ctx context.Context, scope Scope) (T, error)
	Save(ctx context.Context, scope Scope, value T) error
	Delete(ctx context.Context, scope Scope, id string) error
}

// ManagerProvider adapts a per-scope state.Manager constructor into a Provider.
type ManagerProvider[T any] struct {
	newManager func(Scope) state.Manager[T]
	remove     func(value T, id string) T
}

// NewManagerProvider builds a provider from a manager constructor and a
// transform that drops the item with id from a value.
func NewManagerProvider[T any](newManager func(Scope) state.Manager[T], remove func(T, string) T) *ManagerProvider[T] {
	return &ManagerProvider[T]{newManager: newManager, remove: remove}
}

// Load implements Provider.
func (p *ManagerProvider[T]) Load(ctx context.Context, scope Scope) (T, error) {
	return p.newManager(scope).Load(ctx)
}

// Save implements Provider.
func (p *ManagerProvider[T]) Save(ctx context.Context, scope Scope, value T) error {
	return p.newManager(scope).Save(ctx, value)
}

// Delete removes one item through the manager's Update.
func (p *ManagerProvider[T]) Delete(ctx context.Context, scope Scope, id string) error {
	return p.newManager(scope).Update(ctx, func(v T) (T, error) {
		return p.remove(v, id), nil
	})
}
