package circuitbreaker

import "context"

// ExecuteTyped is a type-safe generic wrapper around Breaker.Execute.
//
// Usage:
//
//	val, err := circuitbreaker.ExecuteTyped(ctx, cb, func(ctx context.Context) (int, error) {
//	    return 42, nil
//	})
func ExecuteTyped[T any](ctx context.Context, cb *Breaker, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := cb.Execute(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
