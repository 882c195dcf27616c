package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vivekverma239/superfast-ai/agent/persistence"
	"github.com/vivekverma239/superfast-ai/types"
)

// Record collections used by the managers.
const (
	CollectionMemory   = "memory"
	CollectionTodo     = "todo"
	CollectionArtifact = "artifact"
	CollectionMessage  = "message"
)

// ErrNotFound is returned when an addressed item does not exist.
var ErrNotFound = errors.New("state item not found")

// Manager is the typed read/write interface over one concern.
//
// Update loads, applies fn and saves. It is not atomic: two concurrent
// updates of the same entity race and the later Save wins.
type Manager[T any] interface {
	Load(ctx context.Context) (T, error)
	Save(ctx context.Context, value T) error
	Update(ctx context.Context, fn func(T) (T, error)) error
	Clear(ctx context.Context) error
}

// update is the shared load-transform-save implementation.
func update[T any](ctx context.Context, m Manager[T], fn func(T) (T, error)) error {
	current, err := m.Load(ctx)
	if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	return m.Save(ctx, next)
}

// Option configures a manager.
type Option func(*options)

type options struct {
	now       func() time.Time
	newID     func() string
	logger    *zap.Logger
	todoStore persistence.Store
}

func applyOptions(opts []Option) options {
	o := options{
		now:    time.Now,
		newID:  uuid.NewString,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDGenerator overrides the id generator used for new items.
func WithIDGenerator(newID func() string) Option {
	return func(o *options) {
		if newID != nil {
			o.newID = newID
		}
	}
}

// WithLogger sets the manager logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTodoStore persists todo lists in store instead of process memory.
func WithTodoStore(store persistence.Store) Option {
	return func(o *options) {
		o.todoStore = store
	}
}

// stateError wraps persistence failures as STATE_ERROR. Typed errors and
// context errors pass through so callers keep their classification.
func stateError(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := types.AsError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return types.NewStateError(op + " failed").WithCause(err)
}

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
