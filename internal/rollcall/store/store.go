package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrConflict means another writer changed the same worker-day between
	// our read and our write. Callers may retry by re-reading.
	ErrConflict = errors.New("concurrent attendance write")

	ErrNotFound = errors.New("not found")
)

// RetryOnConflict runs op and, if it lost a write race, runs it exactly once
// more. op must re-read current state on every call. A second conflict is
// returned wrapped so callers can still match ErrConflict.
func RetryOnConflict[T any](ctx context.Context, op func(ctx context.Context) (T, error)) (T, error) {
	out, err := op(ctx)
	if !errors.Is(err, ErrConflict) {
		return out, err
	}
	out, err = op(ctx)
	if errors.Is(err, ErrConflict) {
		var zero T
		return zero, fmt.Errorf("after retry: %w", err)
	}
	return out, err
}
