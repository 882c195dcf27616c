package types

import (
	"context"
	"errors"
	"strings"
)

// ClassifyError turns an arbitrary error into a typed *Error.
//
// Errors that already carry a *Error pass through unchanged. Everything else
// is classified by its message; unmatched errors default to a retryable
// UNKNOWN_ERROR.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := AsError(err); ok {
		return e
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(ErrTimeout, err.Error()).WithCause(err).WithRetryable(true)
	case errors.Is(err, context.Canceled):
		return NewError(ErrCancelled, err.Error()).WithCause(err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "network", "fetch"):
		return NewError(ErrNetwork, err.Error()).WithCause(err).WithRetryable(true)
	case strings.Contains(msg, "timeout"):
		return NewError(ErrTimeout, err.Error()).WithCause(err).WithRetryable(true)
	case containsAny(msg, "validation", "invalid"):
		return NewError(ErrValidation, err.Error()).WithCause(err)
	case containsAny(msg, "auth", "unauthorized"):
		return NewError(ErrAuthentication, err.Error()).WithCause(err)
	case containsAny(msg, "rate limit", "too many"):
		return NewError(ErrRateLimit, err.Error()).WithCause(err).WithRetryable(true)
	default:
		return NewError(ErrUnknown, err.Error()).WithCause(err).WithRetryable(true)
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
