package plugins

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/vivekverma239/superfast-ai/agent"
)

// InstallAll adds ps to a in order. A failing plugin is logged and skipped;
// the rest are still installed. The joined errors are returned.
func InstallAll(ctx context.Context, a *agent.Agent, ps []agent.Plugin, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	var errs []error
	for _, p := range ps {
		if err := a.AddPlugin(ctx, p); err != nil {
			logger.Warn("plugin install failed",
				zap.String("name", p.Name()),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}
	}
	return errors.Join(errs...)
}

// RemoveAll removes the named plugins in reverse order, continuing past
// failures.
func RemoveAll(ctx context.Context, a *agent.Agent, names []string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	var errs []error
	for i := len(names) - 1; i >= 0; i-- {
		if err := a.RemovePlugin(ctx, names[i]); err != nil {
			logger.Warn("plugin removal failed",
				zap.String("name", names[i]),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
