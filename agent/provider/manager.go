package provider

import (
	"fmt"
	"sort"
	"sync"
)

// ProviderManager is a named registry of providers. Providers of different
// state types share one registry, so values are stored untyped; use Lookup
// for typed access.
type ProviderManager struct {
	mu        sync.RWMutex
	providers map[string]any
}

// NewProviderManager creates an empty registry.
func NewProviderManager() *ProviderManager {
	return &ProviderManager{providers: make(map[string]any)}
}

// Register adds or replaces a provider under name.
func (m *ProviderManager) Register(name string, p any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[name] = p
}

// Get returns the provider registered under name.
func (m *ProviderManager) Get(name string) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not found", name)
	}
	return p, nil
}

// Has reports whether name is registered.
func (m *ProviderManager) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.providers[name]
	return ok
}

// Remove unregisters name. It reports whether anything was removed.
func (m *ProviderManager) Remove(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.providers[name]
	delete(m.providers, name)
	return ok
}

// Names returns the registered names, sorted.
func (m *ProviderManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the provider under name as Provider[T].
func Lookup[T any](m *ProviderManager, name string) (Provider[T], error) {
	p, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	typed, ok := p.(Provider[T])
	if !ok {
		return nil, fmt.Errorf("provider %s has type %T", name, p)
	}
	return typed, nil
}
