/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package limiter provides an adaptive concurrency limiter that bounds the number of simultaneously
// in-flight operations against a shared resource and tunes that bound from observed outcomes.
//
// The limit grows after successful operations and shrinks after operations that observed backpressure,
// following the shape of TCP congestion control:
//   - slow start: while the number of in-flight operations is below the slow-start threshold,
//     the limit grows by the whole step size per success;
//   - congestion avoidance: above the threshold the limit grows by step/limit per success;
//   - multiplicative back-off: backpressure resets both the threshold and the limit
//     to limit*BackoffFactor (but not below MinConcurrency).
//
// Operations that were already in flight when the limit was reduced are ignored
// if they report backpressure as well, so one overload incident reduces the limit only once.
//
// Callers that cannot be admitted are queued in FIFO order and wait until a release frees capacity
// or their context is done.
//
//	lim, err := limiter.New(client, limiter.NewDefaultConfig())
//	if err != nil {
//		return err
//	}
//	err = lim.Do(ctx, func(ctx context.Context, client *Client) error {
//		if err := client.Call(ctx); err != nil {
//			if isOverloaded(err) {
//				return limiter.ErrBackpressure
//			}
//			return err
//		}
//		return nil
//	})
package limiter
