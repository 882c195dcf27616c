package plugins

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/vivekverma239/superfast-ai/agent"
)

// Sentinel errors for the catalog.
var (
	ErrPluginAlreadyRegistered = errors.New("plugin already registered")
	ErrPluginNotFound          = errors.New("plugin not found")
	ErrDependencyCycle         = errors.New("plugin dependency cycle")
)

// Catalog is a thread-safe name → constructor registry. It is constructed
// explicitly and passed to whoever builds agents.
type Catalog struct {
	entries map[string]Entry
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewCatalog creates an empty catalog.
func NewCatalog(logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{
		entries: make(map[string]Entry),
		logger:  logger.With(zap.String("component", "plugin_catalog")),
	}
}

// Register adds a constructor under meta.Name.
func (c *Catalog) Register(meta Metadata, ctor Constructor) error {
	if meta.Name == "" {
		return fmt.Errorf("plugin name must not be empty")
	}
	if ctor == nil {
		return fmt.Errorf("plugin %s: constructor must not be nil", meta.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[meta.Name]; exists {
		return fmt.Errorf("%w: %s", ErrPluginAlreadyRegistered, meta.Name)
	}
	c.entries[meta.Name] = Entry{Metadata: meta, New: ctor}

	c.logger.Debug("plugin registered",
		zap.String("name", meta.Name),
		zap.String("version", meta.Version))
	return nil
}

// Unregister removes a constructor.
func (c *Catalog) Unregister(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[name]; !exists {
		return fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	delete(c.entries, name)
	return nil
}

// Get returns the entry by name.
func (c *Catalog) Get(name string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	return e, ok
}

// List returns the metadata of all entries sorted by name.
func (c *Catalog) List() []Metadata {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]Metadata, 0, len(c.entries))
	for _, e := range c.entries {
		result = append(result, e.Metadata)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Search returns the metadata of entries matching any of the given tags.
func (c *Catalog) Search(tags []string) []Metadata {
	if len(tags) == 0 {
		return nil
	}
	tagSet := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		tagSet[t] = struct{}{}
	}

	var result []Metadata
	for _, meta := range c.List() {
		for _, t := range meta.Tags {
			if _, ok := tagSet[t]; ok {
				result = append(result, meta)
				break
			}
		}
	}
	return result
}

// Order returns names plus their transitive dependencies, dependencies first.
func (c *Catalog) Order(names ...string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	const (
		visiting = 1
		done     = 2
	)
	marks := make(map[string]int)
	var order []string

	var visit func(name string) error
	visit = func(name string) error {
		switch marks[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w: %s", ErrDependencyCycle, name)
		}
		e, ok := c.entries[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrPluginNotFound, name)
		}
		marks[name] = visiting
		for _, dep := range e.Metadata.Dependencies {
			if err := visit(dep); err != nil {
				return err
			}
		}
		marks[name] = done
		order = append(order, name)
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// Build constructs fresh instances of names and their dependencies in
// install order.
func (c *Catalog) Build(names ...string) ([]agent.Plugin, error) {
	order, err := c.Order(names...)
	if err != nil {
		return nil, err
	}
	out := make([]agent.Plugin, 0, len(order))
	for _, name := range order {
		e, _ := c.Get(name)
		p, err := e.New()
		if err != nil {
			return nil, fmt.Errorf("construct plugin %s: %w", name, err)
		}
		out = append(out, p)
	}
	return out, nil
}
