package agent

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Plugin 扩展智能体能力的插件
type Plugin interface {
	Name() string
	Version() string
	// Dependencies 必须先安装的插件名
	Dependencies() []string
	Install(ctx context.Context, a *Agent) error
	Uninstall(ctx context.Context, a *Agent) error
}

// AddPlugin 安装并注册插件。
// 同名插件已存在、依赖未安装或 Install 失败时返回 PLUGIN_ERROR，插件不会被注册。
func (a *Agent) AddPlugin(ctx context.Context, p Plugin) error {
	name := p.Name()

	a.pluginMu.RLock()
	_, exists := a.plugins[name]
	var missing []string
	for _, dep := range p.Dependencies() {
		if _, ok := a.plugins[dep]; !ok {
			missing = append(missing, dep)
		}
	}
	a.pluginMu.RUnlock()

	if exists {
		return pluginError(name, "already installed", nil)
	}
	if len(missing) > 0 {
		return pluginError(name, "missing dependencies: "+strings.Join(missing, ", "), nil).
			WithContext("missing", missing)
	}

	if err := p.Install(ctx, a); err != nil {
		return pluginError(name, "install failed", err)
	}

	a.pluginMu.Lock()
	if _, ok := a.plugins[name]; ok {
		a.pluginMu.Unlock()
		// 并发安装同名插件：撤销本次 Install
		if err := p.Uninstall(ctx, a); err != nil {
			a.logger.Warn("rollback uninstall failed", zap.String("plugin", name), zap.Error(err))
		}
		return pluginError(name, "already installed", nil)
	}
	a.plugins[name] = p
	a.pluginOrder = append(a.pluginOrder, name)
	a.pluginMu.Unlock()

	a.logger.Info("plugin installed", zap.String("plugin", name), zap.String("version", p.Version()))
	return nil
}

// RemovePlugin 卸载并注销插件；Uninstall 失败时插件保持注册
func (a *Agent) RemovePlugin(ctx context.Context, name string) error {
	a.pluginMu.RLock()
	p, ok := a.plugins[name]
	a.pluginMu.RUnlock()
	if !ok {
		return pluginError(name, "not installed", nil)
	}

	if err := p.Uninstall(ctx, a); err != nil {
		return pluginError(name, "uninstall failed", err)
	}

	a.pluginMu.Lock()
	defer a.pluginMu.Unlock()
	delete(a.plugins, name)
	for i, n := range a.pluginOrder {
		if n == name {
			a.pluginOrder = append(a.pluginOrder[:i], a.pluginOrder[i+1:]...)
			break
		}
	}
	a.logger.Info("plugin removed", zap.String("plugin", name))
	return nil
}

// Plugins 返回排序后的插件名
func (a *Agent) Plugins() []string {
	a.pluginMu.RLock()
	defer a.pluginMu.RUnlock()
	names := make([]string, 0, len(a.plugins))
	for name := range a.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Plugin returns the installed plugin with the given name.
func (a *Agent) Plugin(name string) (Plugin, bool) {
	a.pluginMu.RLock()
	defer a.pluginMu.RUnlock()
	p, ok := a.plugins[name]
	return p, ok
}

func (a *Agent) pluginCount() int {
	a.pluginMu.RLock()
	defer a.pluginMu.RUnlock()
	return len(a.plugins)
}
