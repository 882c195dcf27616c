package state

import (
	"context"
	"errors"

	"github.com/vivekverma239/superfast-ai/agent/persistence"
	"github.com/vivekverma239/superfast-ai/types"
)

// MessageManager stores the conversation of one thread. Messages are
// append-only: Save writes messages that are not stored yet and never
// rewrites or deletes stored ones.
type MessageManager struct {
	store    persistence.Store
	userID   string
	threadID string
	opts     options
}

var _ Manager[[]types.Message] = (*MessageManager)(nil)

// NewMessageManager creates a message manager for one thread.
func NewMessageManager(store persistence.Store, userID, threadID string, opts ...Option) *MessageManager {
	return &MessageManager{
		store:    store,
		userID:   userID,
		threadID: threadID,
		opts:     applyOptions(opts),
	}
}

func (m *MessageManager) query() persistence.Query {
	return persistence.Query{Collection: CollectionMessage, UserID: m.userID, ThreadID: m.threadID}
}

// Load returns the thread's messages in creation order.
func (m *MessageManager) Load(ctx context.Context) ([]types.Message, error) {
	records, err := m.store.List(ctx, m.query())
	if err != nil {
		return nil, stateError("load messages", err)
	}
	out := make([]types.Message, 0, len(records))
	for _, rec := range records {
		var msg types.Message
		if err := rec.Decode(&msg); err != nil {
			return nil, stateError("decode message", err)
		}
		out = append(out, msg)
	}
	return out, nil
}

// Save appends the messages that are not stored yet, in order.
func (m *MessageManager) Save(ctx context.Context, msgs []types.Message) error {
	for i := range msgs {
		if _, err := m.appendIfMissing(ctx, &msgs[i]); err != nil {
			return err
		}
	}
	return nil
}

// Update applies fn to the loaded history and appends whatever new messages
// it returns. Removed messages stay stored.
func (m *MessageManager) Update(ctx context.Context, fn func([]types.Message) ([]types.Message, error)) error {
	return update[[]types.Message](ctx, m, fn)
}

// Clear deletes the thread's messages.
func (m *MessageManager) Clear(ctx context.Context) error {
	return stateError("clear messages", m.store.DeleteAll(ctx, m.query()))
}

// Append stores one message, filling in a missing id or creation time.
// It reports whether the message was written.
func (m *MessageManager) Append(ctx context.Context, msg *types.Message) (bool, error) {
	return m.appendIfMissing(ctx, msg)
}

func (m *MessageManager) appendIfMissing(ctx context.Context, msg *types.Message) (bool, error) {
	if msg.ID == "" {
		msg.ID = m.opts.newID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = m.opts.now()
	}
	key := persistence.Key{Collection: CollectionMessage, UserID: m.userID, ThreadID: m.threadID, ID: msg.ID}

	_, err := m.store.Get(ctx, key)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, persistence.ErrNotFound) {
		return false, stateError("append message", err)
	}

	rec, err := persistence.NewRecord(key, msg)
	if err != nil {
		return false, stateError("encode message", err)
	}
	rec.CreatedAt = msg.CreatedAt
	if err := m.store.Put(ctx, rec); err != nil {
		return false, stateError("append message", err)
	}
	return true, nil
}
