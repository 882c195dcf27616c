package provider

import (
	"context"
	"fmt"

	"github.com/vivekverma239/superfast-ai/agent/persistence"
	"github.com/vivekverma239/superfast-ai/agent/state"
	"github.com/vivekverma239/superfast-ai/types"
)

// MessageProvider serves thread histories from a record store.
type MessageProvider struct {
	store persistence.Store
	opts  []state.Option
}

var _ Provider[[]types.Message] = (*MessageProvider)(nil)

// NewMessageProvider creates a message provider over store.
func NewMessageProvider(store persistence.Store, opts ...state.Option) *MessageProvider {
	return &MessageProvider{store: store, opts: opts}
}

func (p *MessageProvider) manager(scope Scope) *state.MessageManager {
	return state.NewMessageManager(p.store, scope.UserID, scope.ThreadID, p.opts...)
}

// Load returns the thread history in creation order.
func (p *MessageProvider) Load(ctx context.Context, scope Scope) ([]types.Message, error) {
	return p.manager(scope).Load(ctx)
}

// Save replaces the thread history with msgs.
func (p *MessageProvider) Save(ctx context.Context, scope Scope, msgs []types.Message) error {
	m := p.manager(scope)
	if err := m.Clear(ctx); err != nil {
		return err
	}
	return m.Save(ctx, msgs)
}

// Delete removes one message.
func (p *MessageProvider) Delete(ctx context.Context, scope Scope, id string) error {
	key := persistence.Key{Collection: state.CollectionMessage, UserID: scope.UserID, ThreadID: scope.ThreadID, ID: id}
	if err := p.store.Delete(ctx, key); err != nil {
		return types.NewStateError(fmt.Sprintf("delete message %s failed", id)).WithCause(err)
	}
	return nil
}

// AddMessage appends one message to the thread.
func (p *MessageProvider) AddMessage(ctx context.Context, scope Scope, msg types.Message) error {
	_, err := p.manager(scope).Append(ctx, &msg)
	return err
}

// ClearMessages deletes the thread history.
func (p *MessageProvider) ClearMessages(ctx context.Context, scope Scope) error {
	return p.manager(scope).Clear(ctx)
}
