package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/vivekverma239/superfast-ai/types"
)

// Filter restricts the tool set returned by GetTools.
type Filter struct {
	// Required 非空时只返回这些工具，任一缺失即报错
	Required []string
	// Exclude 从结果中移除
	Exclude []string
	// Categories 非空时只保留这些类别
	Categories []Category
}

// FactoryRegistry holds directly registered tools and deferred factories.
// Factories are materialized against the bound context on first access.
type FactoryRegistry[C any] struct {
	mu        sync.RWMutex
	tools     map[string]*Tool
	factories map[string]Factory[C]
	failed    map[string]error
	bound     bool
	ctx       C
	logger    *zap.Logger

	// OnFactoryError 在单个工厂物化失败时调用（可选）
	OnFactoryError func(name string, err error)
}

// NewFactoryRegistry creates an empty registry.
func NewFactoryRegistry[C any](logger *zap.Logger) *FactoryRegistry[C] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FactoryRegistry[C]{
		tools:     make(map[string]*Tool),
		factories: make(map[string]Factory[C]),
		failed:    make(map[string]error),
		logger:    logger.With(zap.String("component", "tool_registry")),
	}
}

// SetContext binds the context used for all future materializations.
// Only the first call takes effect.
func (r *FactoryRegistry[C]) SetContext(c C) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bound {
		r.logger.Debug("context already bound, ignoring")
		return
	}
	r.ctx = c
	r.bound = true
}

// Register adds a materialized tool, replacing any tool of the same name.
func (r *FactoryRegistry[C]) Register(tool *Tool) error {
	if tool == nil || tool.Name == "" {
		return types.NewError(types.ErrValidation, "tool name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name] = tool
	r.logger.Debug("tool registered", zap.String("name", tool.Name))
	return nil
}

// RegisterFactory adds a deferred tool constructor.
func (r *FactoryRegistry[C]) RegisterFactory(f Factory[C]) error {
	if f.Name == "" || f.Create == nil {
		return types.NewError(types.ErrValidation, "factory name and create function are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[f.Name] = f
	delete(r.tools, f.Name)
	r.logger.Debug("tool factory registered", zap.String("name", f.Name))
	return nil
}

// Unregister removes both the tool and its factory. It reports whether
// anything was removed.
func (r *FactoryRegistry[C]) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, hadTool := r.tools[name]
	_, hadFactory := r.factories[name]
	delete(r.tools, name)
	delete(r.factories, name)
	delete(r.failed, name)
	return hadTool || hadFactory
}

// GetTools materializes every pending factory and returns the filtered tool set.
func (r *FactoryRegistry[C]) GetTools(ctx context.Context, filter Filter) (map[string]*Tool, error) {
	if err := r.materializeAll(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	selected := make(map[string]*Tool, len(r.tools))
	if len(filter.Required) > 0 {
		var missing []string
		for _, name := range filter.Required {
			if t, ok := r.tools[name]; ok {
				selected[name] = t
			} else {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			return nil, types.NewError(types.ErrToolsNotFound,
				"Required tools not found: "+strings.Join(missing, ", ")).
				WithContext("missing", missing)
		}
	} else {
		for name, t := range r.tools {
			selected[name] = t
		}
	}

	for _, name := range filter.Exclude {
		delete(selected, name)
	}
	if len(filter.Categories) > 0 {
		allowed := make(map[Category]bool, len(filter.Categories))
		for _, c := range filter.Categories {
			allowed[c] = true
		}
		for name, t := range selected {
			if !allowed[t.Category] {
				delete(selected, name)
			}
		}
	}
	return selected, nil
}

// GetTool returns the named tool, materializing its factory on demand.
func (r *FactoryRegistry[C]) GetTool(name string) (*Tool, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	f, hasFactory := r.factories[name]
	bound := r.bound
	r.mu.RUnlock()

	if ok {
		return t, nil
	}
	if !hasFactory {
		return nil, types.NewError(types.ErrToolsNotFound, fmt.Sprintf("tool not found: %s", name))
	}
	if !bound {
		return nil, types.NewError(types.ErrContextNotSet, "Context not set. Call SetContext() first.")
	}
	return r.materialize(f)
}

// HasTool reports whether a tool or an unmaterialized factory exists.
func (r *FactoryRegistry[C]) HasTool(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	_, hasFactory := r.factories[name]
	return ok || hasFactory
}

// List returns the sorted union of tool and factory names.
func (r *FactoryRegistry[C]) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{}, len(r.tools)+len(r.factories))
	for name := range r.tools {
		seen[name] = struct{}{}
	}
	for name := range r.factories {
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListByCategory returns the sorted names of tools and factories in a category.
func (r *FactoryRegistry[C]) ListByCategory(category Category) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	for name, t := range r.tools {
		if t.Category == category {
			seen[name] = struct{}{}
		}
	}
	for name, f := range r.factories {
		if f.Category == category {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of distinct tool names.
func (r *FactoryRegistry[C]) Len() int {
	return len(r.List())
}

// FailedCount returns the number of factories whose last materialization failed.
func (r *FactoryRegistry[C]) FailedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.failed)
}

// Failures returns the last materialization error per failed factory.
func (r *FactoryRegistry[C]) Failures() map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]error, len(r.failed))
	for k, v := range r.failed {
		out[k] = v
	}
	return out
}

// Clear drops all tools and factories.
func (r *FactoryRegistry[C]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = make(map[string]*Tool)
	r.factories = make(map[string]Factory[C])
	r.failed = make(map[string]error)
}

func (r *FactoryRegistry[C]) materializeAll(ctx context.Context) error {
	r.mu.RLock()
	if !r.bound {
		r.mu.RUnlock()
		return types.NewError(types.ErrContextNotSet, "Context not set. Call SetContext() first.")
	}
	pending := make([]Factory[C], 0, len(r.factories))
	for name, f := range r.factories {
		if _, ok := r.tools[name]; !ok {
			pending = append(pending, f)
		}
	}
	r.mu.RUnlock()

	sort.Slice(pending, func(i, j int) bool { return pending[i].Name < pending[j].Name })
	for _, f := range pending {
		if err := ctx.Err(); err != nil {
			return types.ClassifyError(err)
		}
		if _, err := r.materialize(f); err != nil {
			r.logger.Warn("failed to create tool", zap.String("name", f.Name), zap.Error(err))
		}
	}
	return nil
}

func (r *FactoryRegistry[C]) materialize(f Factory[C]) (*Tool, error) {
	for _, dep := range f.Dependencies {
		if !r.HasTool(dep) {
			return nil, r.recordFailure(f.Name, fmt.Errorf("missing dependency %q", dep))
		}
	}

	r.mu.RLock()
	c := r.ctx
	r.mu.RUnlock()

	tool, err := f.Create(c)
	if err != nil {
		return nil, r.recordFailure(f.Name, err)
	}
	if tool == nil {
		return nil, r.recordFailure(f.Name, fmt.Errorf("factory returned nil tool"))
	}
	if tool.Name == "" {
		tool.Name = f.Name
	}
	if tool.Category == "" {
		tool.Category = f.Category
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.tools[f.Name]; ok {
		return existing, nil
	}
	if _, still := r.factories[f.Name]; !still {
		return nil, types.NewError(types.ErrToolsNotFound, fmt.Sprintf("tool not found: %s", f.Name))
	}
	r.tools[f.Name] = tool
	delete(r.failed, f.Name)
	return tool, nil
}

func (r *FactoryRegistry[C]) recordFailure(name string, err error) error {
	r.mu.Lock()
	r.failed[name] = err
	hook := r.OnFactoryError
	r.mu.Unlock()
	if hook != nil {
		hook(name, err)
	}
	return types.NewToolExecutionError(name, "tool factory failed", err)
}

// Schemas returns the model-facing definitions of tools, sorted by name.
func Schemas(tools map[string]*Tool) []types.ToolSchema {
	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]types.ToolSchema, 0, len(names))
	for _, name := range names {
		out = append(out, tools[name].Schema())
	}
	return out
}
