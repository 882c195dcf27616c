package state

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/vivekverma239/superfast-ai/types"
)

// CompositeStateManager loads and clears several managers together. Nil
// managers are skipped.
type CompositeStateManager struct {
	Memory    *MemoryManager
	Todos     *TodoManager
	Artifacts *ArtifactManager
	Messages  *MessageManager
}

var _ Manager[Snapshot] = (*CompositeStateManager)(nil)

// LoadAll loads every present manager concurrently.
func (c *CompositeStateManager) LoadAll(ctx context.Context) (*Snapshot, error) {
	snap, err := c.Load(ctx)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Load implements Manager.
func (c *CompositeStateManager) Load(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{
		Memory:    []MemoryState{},
		Todos:     []TodoState{},
		Artifacts: []ArtifactState{},
	}
	g, gctx := errgroup.WithContext(ctx)
	if c.Memory != nil {
		g.Go(func() (err error) {
			snap.Memory, err = c.Memory.Load(gctx)
			return err
		})
	}
	if c.Todos != nil {
		g.Go(func() (err error) {
			snap.Todos, err = c.Todos.Load(gctx)
			return err
		})
	}
	if c.Artifacts != nil {
		g.Go(func() (err error) {
			snap.Artifacts, err = c.Artifacts.Load(gctx)
			return err
		})
	}
	if c.Messages != nil {
		g.Go(func() (err error) {
			var msgs []types.Message
			msgs, err = c.Messages.Load(gctx)
			snap.Messages = msgs
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Save writes each part of the snapshot to its manager concurrently.
func (c *CompositeStateManager) Save(ctx context.Context, snap Snapshot) error {
	g, gctx := errgroup.WithContext(ctx)
	if c.Memory != nil {
		g.Go(func() error { return c.Memory.Save(gctx, snap.Memory) })
	}
	if c.Todos != nil {
		g.Go(func() error { return c.Todos.Save(gctx, snap.Todos) })
	}
	if c.Artifacts != nil {
		g.Go(func() error { return c.Artifacts.Save(gctx, snap.Artifacts) })
	}
	if c.Messages != nil {
		g.Go(func() error { return c.Messages.Save(gctx, snap.Messages) })
	}
	return g.Wait()
}

// Update implements Manager.
func (c *CompositeStateManager) Update(ctx context.Context, fn func(Snapshot) (Snapshot, error)) error {
	return update[Snapshot](ctx, c, fn)
}

// Clear implements Manager.
func (c *CompositeStateManager) Clear(ctx context.Context) error {
	return c.ClearAll(ctx)
}

// ClearAll clears every present manager concurrently.
func (c *CompositeStateManager) ClearAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	if c.Memory != nil {
		g.Go(func() error { return c.Memory.Clear(gctx) })
	}
	if c.Todos != nil {
		g.Go(func() error { return c.Todos.Clear(gctx) })
	}
	if c.Artifacts != nil {
		g.Go(func() error { return c.Artifacts.Clear(gctx) })
	}
	if c.Messages != nil {
		g.Go(func() error { return c.Messages.Clear(gctx) })
	}
	return g.Wait()
}
