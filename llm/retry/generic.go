package retry

import "context"

// Execute is a type-safe generic wrapper around Manager.ExecuteWithRetry.
//
// Usage:
//
//	msg, err := retry.Execute(ctx, m, func(ctx context.Context) (*types.Message, error) {
//	    return runTurn(ctx)
//	}, "agent.run")
func Execute[T any](ctx context.Context, m *Manager, op func(ctx context.Context) (T, error), label string) (T, error) {
	var result T
	err := m.ExecuteWithRetry(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	}, label)
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
