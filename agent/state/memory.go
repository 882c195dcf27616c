package state

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/vivekverma239/superfast-ai/agent/persistence"
)

// MemoryManager stores a user's memory list as one upserted record keyed
// by user id. Memory is shared by all threads of the user.
type MemoryManager struct {
	store  persistence.Store
	userID string
	opts   options
	logger *zap.Logger
}

var _ Manager[[]MemoryState] = (*MemoryManager)(nil)

// NewMemoryManager creates a memory manager for userID.
func NewMemoryManager(store persistence.Store, userID string, opts ...Option) *MemoryManager {
	o := applyOptions(opts)
	return &MemoryManager{
		store:  store,
		userID: userID,
		opts:   o,
		logger: o.logger.With(zap.String("component", "memory_state"), zap.String("user_id", userID)),
	}
}

func (m *MemoryManager) key() persistence.Key {
	return persistence.Key{Collection: CollectionMemory, UserID: m.userID, ID: m.userID}
}

// Load returns the memory list, empty when nothing was saved yet.
func (m *MemoryManager) Load(ctx context.Context) ([]MemoryState, error) {
	rec, err := m.store.Get(ctx, m.key())
	if errors.Is(err, persistence.ErrNotFound) {
		return []MemoryState{}, nil
	}
	if err != nil {
		return nil, stateError("load memory", err)
	}
	var out []MemoryState
	if err := rec.Decode(&out); err != nil {
		return nil, stateError("decode memory", err)
	}
	if out == nil {
		out = []MemoryState{}
	}
	return out, nil
}

// Save replaces the memory list.
func (m *MemoryManager) Save(ctx context.Context, memories []MemoryState) error {
	if memories == nil {
		memories = []MemoryState{}
	}
	rec, err := persistence.NewRecord(m.key(), memories)
	if err != nil {
		return stateError("encode memory", err)
	}
	return stateError("save memory", m.store.Put(ctx, rec))
}

// Update applies fn to the current list and saves the result.
func (m *MemoryManager) Update(ctx context.Context, fn func([]MemoryState) ([]MemoryState, error)) error {
	return update[[]MemoryState](ctx, m, fn)
}

// Clear removes the user's memory record.
func (m *MemoryManager) Clear(ctx context.Context) error {
	return stateError("clear memory", m.store.Delete(ctx, m.key()))
}

// AddMemory appends a new entry.
func (m *MemoryManager) AddMemory(ctx context.Context, details string, tags []string) (MemoryState, error) {
	entry := MemoryState{
		ID:        m.opts.newID(),
		Details:   details,
		CreatedAt: m.opts.now(),
		Tags:      tags,
	}
	err := m.Update(ctx, func(list []MemoryState) ([]MemoryState, error) {
		return append(list, entry), nil
	})
	if err != nil {
		return MemoryState{}, err
	}
	return entry, nil
}

// UpdateMemory changes the details of an existing entry.
func (m *MemoryManager) UpdateMemory(ctx context.Context, id, details string) error {
	return m.Update(ctx, func(list []MemoryState) ([]MemoryState, error) {
		for i := range list {
			if list[i].ID == id {
				list[i].Details = details
				list[i].UpdatedAt = timePtr(m.opts.now())
				return list, nil
			}
		}
		return nil, notFound("memory", id)
	})
}

// DeleteMemory removes an entry. Unknown ids are ignored.
func (m *MemoryManager) DeleteMemory(ctx context.Context, id string) error {
	return m.Update(ctx, func(list []MemoryState) ([]MemoryState, error) {
		return removeMemory(list, map[string]bool{id: true}), nil
	})
}

// Apply edits, adds and invalidates entries in one update. Updates whose id
// matches an existing entry edit it in place; the rest are appended as new
// entries. Ids listed in invalidate are removed.
func (m *MemoryManager) Apply(ctx context.Context, updates []MemoryUpdate, invalidate []string) ([]MemoryState, error) {
	var result []MemoryState
	err := m.Update(ctx, func(list []MemoryState) ([]MemoryState, error) {
		index := make(map[string]int, len(list))
		for i, entry := range list {
			index[entry.ID] = i
		}
		now := m.opts.now()
		for _, u := range updates {
			if i, ok := index[u.ID]; ok && u.ID != "" {
				list[i].Details = u.Details
				list[i].UpdatedAt = timePtr(now)
				continue
			}
			list = append(list, MemoryState{ID: m.opts.newID(), Details: u.Details, CreatedAt: now})
		}

		drop := make(map[string]bool, len(invalidate))
		for _, id := range invalidate {
			drop[id] = true
		}
		result = removeMemory(list, drop)
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	m.logger.Debug("memory updated",
		zap.Int("updates", len(updates)),
		zap.Int("invalidated", len(invalidate)),
		zap.Int("total", len(result)))
	return result, nil
}

func removeMemory(list []MemoryState, drop map[string]bool) []MemoryState {
	out := make([]MemoryState, 0, len(list))
	for _, entry := range list {
		if !drop[entry.ID] {
			out = append(out, entry)
		}
	}
	return out
}
