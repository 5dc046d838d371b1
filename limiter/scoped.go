/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package limiter

import (
	"context"
	"errors"

	"github.com/rs/xid"

	"github.com/acronis/go-sawtooth/log"
)

// ScopedFunc is a function that is called by Do with the acquired resource.
// It should return ErrBackpressure (may be wrapped) if the operation observed overload.
type ScopedFunc[R any] func(ctx context.Context, resource R) error

// Do acquires the resource under a newly generated operation ID, calls fn with it and releases it.
// See DoWithID for details.
func (l *Limiter[R]) Do(ctx context.Context, fn ScopedFunc[R]) error {
	return l.DoWithID(ctx, xid.New().String(), fn)
}

// DoWithID acquires the resource under the given operation ID, calls fn with it and releases it
// exactly once on every exit path:
//   - if fn returns ErrBackpressure (may be wrapped), the operation is released with backpressure
//     and nil is returned, the signal is consumed;
//   - if fn returns any other error or nil, the operation is released as successful and the error is returned as is;
//   - if fn panics, the operation is released as successful and the panic is propagated.
//
// If the resource cannot be acquired (e.g., the context is done while waiting), fn is not called
// and the acquisition error is returned.
func (l *Limiter[R]) DoWithID(ctx context.Context, id string, fn ScopedFunc[R]) (err error) {
	resource, err := l.Acquire(ctx, id)
	if err != nil {
		return err
	}

	backpressure := false
	defer func() {
		if releaseErr := l.Release(id, backpressure); releaseErr != nil {
			l.logger.Error("release acquired operation", log.String(LogFieldOperationID, id), log.Error(releaseErr))
		}
	}()

	if err = fn(ctx, resource); err != nil && errors.Is(err, ErrBackpressure) {
		backpressure = true
		return nil
	}
	return err
}
