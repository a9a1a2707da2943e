package util

import (
	"context"
)

// Sel runs f in its own goroutine and returns its error, or the
// context error if ctx is done first. When ctx wins, f keeps running
// until its blocking call returns; the caller must treat whatever f
// was reading or writing as abandoned.
func Sel(ctx context.Context, f func() error) error {
	var d = make(chan error, 1)
	go func() {
		d <- f()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-d:
		return err
	}
}
