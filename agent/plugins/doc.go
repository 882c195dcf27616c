// Package plugins provides a catalog of agent plugins and a toolset plugin.
//
// A Catalog maps plugin names to constructors and metadata, resolves
// dependencies into install order, and InstallAll installs a batch onto an
// agent without letting one failure block the others.
//
// Usage:
//
//	catalog := plugins.DefaultCatalog()
//	ps, err := catalog.Build("datetime")
//	err = plugins.InstallAll(ctx, a, ps, logger)
//	defer a.Cleanup(ctx)
package plugins
