/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package limiter_test

import (
	"context"
	"fmt"

	"github.com/acronis/go-sawtooth/limiter"
)

func Example() {
	cfg := limiter.NewDefaultConfig()
	cfg.MaxConcurrency = 10
	cfg.StartingConcurrency = 4
	cfg.BackoffFactor = 0.5

	lim := limiter.MustNew("downstream", cfg)

	call := func(overloaded bool) {
		err := lim.Do(context.Background(), func(ctx context.Context, name string) error {
			if overloaded {
				return fmt.Errorf("call %s: %w", name, limiter.ErrBackpressure)
			}
			return nil
		})
		if err != nil {
			fmt.Println("error:", err)
		}
	}

	call(true)
	fmt.Printf("limit after backpressure: %v\n", lim.Stats().Concurrency)
	call(false)
	fmt.Printf("limit after success: %v\n", lim.Stats().Concurrency)

	// Output:
	// limit after backpressure: 2
	// limit after success: 2
}

func ExampleLimiter_Acquire() {
	cfg := limiter.NewDefaultConfig()
	cfg.MaxConcurrency = 10
	cfg.StartingConcurrency = 1

	lim := limiter.MustNew(struct{}{}, cfg)
	if _, err := lim.Acquire(context.Background(), "request-1"); err != nil {
		fmt.Println("acquire:", err)
		return
	}
	// Slot is busy, non-blocking attempt fails.
	_, ok, _ := lim.TryAcquire("request-2")
	fmt.Println("request-2 admitted:", ok)

	if err := lim.Release("request-1", false); err != nil {
		fmt.Println("release:", err)
		return
	}
	fmt.Println("limit:", lim.Stats().Concurrency)

	// Output:
	// request-2 admitted: false
	// limit: 2
}
