/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package limiter

import (
	"errors"
	"fmt"
)

// Configuration errors. Config.Validate wraps exactly one of them into ConfigError.
var (
	ErrStartingConcurrencyOutOfRange = errors.New(
		"starting concurrency needs to be between minimum and maximum concurrency")
	ErrMinConcurrencyNotPositive    = errors.New("minimum concurrency needs to be greater than 0")
	ErrMinConcurrencyNotLessThanMax = errors.New("minimum concurrency needs to be less than maximum concurrency")
	ErrBackoffFactorOutOfRange      = errors.New("backoff factor must have a value between 0 and 1 (exclusive)")
	ErrStepSizeNotPositive          = errors.New("step size needs to be greater than 0")
)

// ErrBackpressure is a signal that the guarded operation observed overload.
// It should be returned (may be wrapped) from the function passed to Limiter.Do.
// The limiter consumes it and reduces the concurrency limit.
var ErrBackpressure = errors.New("backpressure")

// ErrOperationOutstanding is returned by Acquire when the operation ID is already admitted or waiting.
var ErrOperationOutstanding = errors.New("operation is already outstanding")

// ErrOperationNotFlying is returned by Release when the operation ID is not admitted.
var ErrOperationNotFlying = errors.New("operation is not in flight")

// ConfigError is returned when the limiter configuration is invalid.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Err.Error())
}

// Unwrap returns the next error in the error chain.
func (e *ConfigError) Unwrap() error {
	return e.Err
}
