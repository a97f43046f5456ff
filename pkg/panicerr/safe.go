package panicerr

import (
	"context"

	"github.com/sourcegraph/conc/panics"
)

// Safe wraps a function that returns an error, catching any panics and returning them as an error.
func Safe(fn func() error) func() error {
	return func() error {
		var (
			catcher panics.Catcher
			err     error
		)
		catcher.Try(func() {
			err = fn()
		})
		if err != nil {
			return err
		}
		return catcher.Recovered().AsError()
	}
}

// Call runs fn and converts a panic into an error. The zero value of T is
// returned when fn panicked.
func Call[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	var (
		catcher panics.Catcher
		out     T
		err     error
	)
	catcher.Try(func() {
		out, err = fn(ctx)
	})
	if rerr := catcher.Recovered().AsError(); rerr != nil {
		var zero T
		return zero, rerr
	}
	return out, err
}
