package plugins

import (
	"context"
	"fmt"

	"github.com/vivekverma239/superfast-ai/agent"
	"github.com/vivekverma239/superfast-ai/llm/tools"
)

// Toolset is a plugin that contributes a fixed set of tools and factories.
// Install is all-or-nothing: tools registered before a failure are removed.
type Toolset struct {
	Meta      Metadata
	Tools     []*tools.Tool
	Factories []agent.ToolFactory
}

func (t *Toolset) Name() string           { return t.Meta.Name }
func (t *Toolset) Version() string        { return t.Meta.Version }
func (t *Toolset) Dependencies() []string { return t.Meta.Dependencies }

// ToolNames returns the names of every tool and factory in the set.
func (t *Toolset) ToolNames() []string {
	names := make([]string, 0, len(t.Tools)+len(t.Factories))
	for _, tool := range t.Tools {
		names = append(names, tool.Name)
	}
	for _, f := range t.Factories {
		names = append(names, f.Name)
	}
	return names
}

func (t *Toolset) Install(_ context.Context, a *agent.Agent) error {
	var registered []string
	rollback := func() {
		for _, name := range registered {
			a.UnregisterTool(name)
		}
	}

	for _, tool := range t.Tools {
		if tool == nil {
			rollback()
			return fmt.Errorf("toolset %s: nil tool", t.Meta.Name)
		}
		if err := a.RegisterTool(tool); err != nil {
			rollback()
			return fmt.Errorf("register tool %s: %w", tool.Name, err)
		}
		registered = append(registered, tool.Name)
	}
	for _, f := range t.Factories {
		if err := a.RegisterToolFactory(f); err != nil {
			rollback()
			return fmt.Errorf("register factory %s: %w", f.Name, err)
		}
		registered = append(registered, f.Name)
	}
	return nil
}

func (t *Toolset) Uninstall(_ context.Context, a *agent.Agent) error {
	for _, name := range t.ToolNames() {
		a.UnregisterTool(name)
	}
	return nil
}
