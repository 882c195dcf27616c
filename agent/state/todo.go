package state

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vivekverma239/superfast-ai/agent/persistence"
	"github.com/vivekverma239/superfast-ai/types"
)

// TodoManager tracks the task list of one thread.
//
// By default the list lives only in this manager: it is scratch state that
// does not survive the process or a new manager instance. WithTodoStore
// persists it as one record per thread instead.
type TodoManager struct {
	userID   string
	threadID string
	store    persistence.Store
	opts     options

	mu    sync.Mutex
	todos []TodoState
}

var _ Manager[[]TodoState] = (*TodoManager)(nil)

// NewTodoManager creates a todo manager for one thread.
func NewTodoManager(userID, threadID string, opts ...Option) *TodoManager {
	o := applyOptions(opts)
	return &TodoManager{
		userID:   userID,
		threadID: threadID,
		store:    o.todoStore,
		opts:     o,
		todos:    []TodoState{},
	}
}

// Persistent reports whether the list is backed by a store.
func (m *TodoManager) Persistent() bool {
	return m.store != nil
}

func (m *TodoManager) key() persistence.Key {
	return persistence.Key{Collection: CollectionTodo, UserID: m.userID, ThreadID: m.threadID, ID: m.threadID}
}

// Load returns a copy of the current list.
func (m *TodoManager) Load(ctx context.Context) ([]TodoState, error) {
	if m.store == nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		return append([]TodoState{}, m.todos...), nil
	}
	rec, err := m.store.Get(ctx, m.key())
	if errors.Is(err, persistence.ErrNotFound) {
		return []TodoState{}, nil
	}
	if err != nil {
		return nil, stateError("load todos", err)
	}
	var out []TodoState
	if err := rec.Decode(&out); err != nil {
		return nil, stateError("decode todos", err)
	}
	if out == nil {
		out = []TodoState{}
	}
	return out, nil
}

// Save replaces the list.
func (m *TodoManager) Save(ctx context.Context, todos []TodoState) error {
	if todos == nil {
		todos = []TodoState{}
	}
	if m.store == nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.todos = append([]TodoState{}, todos...)
		return nil
	}
	rec, err := persistence.NewRecord(m.key(), todos)
	if err != nil {
		return stateError("encode todos", err)
	}
	return stateError("save todos", m.store.Put(ctx, rec))
}

// Update applies fn to the current list and saves the result.
func (m *TodoManager) Update(ctx context.Context, fn func([]TodoState) ([]TodoState, error)) error {
	return update[[]TodoState](ctx, m, fn)
}

// Clear empties the list.
func (m *TodoManager) Clear(ctx context.Context) error {
	if m.store == nil {
		return m.Save(ctx, nil)
	}
	return stateError("clear todos", m.store.Delete(ctx, m.key()))
}

// AddTodo appends a pending task. An empty priority means medium.
func (m *TodoManager) AddTodo(ctx context.Context, task string, priority Priority) (TodoState, error) {
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.Valid() {
		return TodoState{}, invalidField("priority", string(priority))
	}
	todo := TodoState{
		ID:        m.opts.newID(),
		Task:      task,
		Status:    TodoPending,
		CreatedAt: m.opts.now(),
		Priority:  priority,
	}
	err := m.Update(ctx, func(list []TodoState) ([]TodoState, error) {
		return append(list, todo), nil
	})
	if err != nil {
		return TodoState{}, err
	}
	return todo, nil
}

// UpdateTodo applies patch to the task with id.
func (m *TodoManager) UpdateTodo(ctx context.Context, id string, patch TodoPatch) error {
	if patch.Status != nil && !patch.Status.Valid() {
		return invalidField("status", string(*patch.Status))
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return invalidField("priority", string(*patch.Priority))
	}
	return m.Update(ctx, func(list []TodoState) ([]TodoState, error) {
		for i := range list {
			if list[i].ID != id {
				continue
			}
			if patch.Task != nil {
				list[i].Task = *patch.Task
			}
			if patch.Status != nil {
				list[i].Status = *patch.Status
			}
			if patch.Priority != nil {
				list[i].Priority = *patch.Priority
			}
			list[i].UpdatedAt = timePtr(m.opts.now())
			return list, nil
		}
		return nil, notFound("todo", id)
	})
}

// DeleteTodo removes a task. Unknown ids are ignored.
func (m *TodoManager) DeleteTodo(ctx context.Context, id string) error {
	return m.Update(ctx, func(list []TodoState) ([]TodoState, error) {
		out := make([]TodoState, 0, len(list))
		for _, t := range list {
			if t.ID != id {
				out = append(out, t)
			}
		}
		return out, nil
	})
}

func invalidField(field, value string) error {
	return types.NewError(types.ErrValidation, fmt.Sprintf("invalid %s %q", field, value)).
		WithContext("field", field)
}
