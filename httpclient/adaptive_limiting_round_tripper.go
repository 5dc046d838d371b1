/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package httpclient provides http.RoundTripper implementations that admit outgoing requests
// through adaptive concurrency limiters.
package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/acronis/go-sawtooth/limiter"
	"github.com/acronis/go-sawtooth/log"
)

// DefaultAdaptiveLimitingWaitTimeout is a default maximum time an outgoing request may wait for admission.
const DefaultAdaptiveLimitingWaitTimeout = 15 * time.Second

// AdaptiveLimitingIsBackpressureFunc reports whether the result of the round trip means the server is overloaded.
type AdaptiveLimitingIsBackpressureFunc func(resp *http.Response, err error) bool

// AdaptiveLimitingRoundTripperOpts represents an options for AdaptiveLimitingRoundTripper.
type AdaptiveLimitingRoundTripperOpts struct {
	// Name identifies the limiter in logs and metrics.
	Name string

	// WaitTimeout is a maximum time a request may wait for admission. If zero, 15 seconds is used.
	WaitTimeout time.Duration

	// IsBackpressure is used for detecting overload. If nil, 429 and 503 responses are backpressure,
	// and transport errors are backpressure only if TransportErrorIsBackpressure is true.
	IsBackpressure AdaptiveLimitingIsBackpressureFunc

	TransportErrorIsBackpressure bool

	Logger           log.FieldLogger
	MetricsCollector *limiter.MetricsCollector
}

// AdaptiveLimitingRoundTripper wraps implementing http.RoundTripper interface object
// and bounds the number of concurrent outgoing requests with an adaptive concurrency limiter.
// The limit grows while the server responds successfully and shrinks on overload responses.
type AdaptiveLimitingRoundTripper struct {
	Delegate    http.RoundTripper
	WaitTimeout time.Duration

	limiter        *limiter.Limiter[http.RoundTripper]
	isBackpressure AdaptiveLimitingIsBackpressureFunc
}

// NewAdaptiveLimitingRoundTripper creates a new AdaptiveLimitingRoundTripper with the specified limiter configuration.
func NewAdaptiveLimitingRoundTripper(delegate http.RoundTripper, cfg limiter.Config) (*AdaptiveLimitingRoundTripper, error) {
	return NewAdaptiveLimitingRoundTripperWithOpts(delegate, cfg, AdaptiveLimitingRoundTripperOpts{})
}

// NewAdaptiveLimitingRoundTripperWithOpts creates a new AdaptiveLimitingRoundTripper
// with the specified limiter configuration and options.
// For options that are not presented, the default values will be used.
func NewAdaptiveLimitingRoundTripperWithOpts(
	delegate http.RoundTripper, cfg limiter.Config, opts AdaptiveLimitingRoundTripperOpts,
) (*AdaptiveLimitingRoundTripper, error) {
	if delegate == nil {
		delegate = http.DefaultTransport
	}
	if opts.WaitTimeout < 0 {
		return nil, fmt.Errorf("wait timeout must not be negative")
	}
	if opts.WaitTimeout == 0 {
		opts.WaitTimeout = DefaultAdaptiveLimitingWaitTimeout
	}
	isBackpressure := opts.IsBackpressure
	if isBackpressure == nil {
		isBackpressure = makeDefaultAdaptiveLimitingIsBackpressure(opts.TransportErrorIsBackpressure)
	}

	lim, err := limiter.NewWithOpts(delegate, cfg, limiter.Opts{
		Name:             opts.Name,
		Logger:           opts.Logger,
		MetricsCollector: opts.MetricsCollector,
	})
	if err != nil {
		return nil, fmt.Errorf("create limiter: %w", err)
	}

	return &AdaptiveLimitingRoundTripper{
		Delegate:       delegate,
		WaitTimeout:    opts.WaitTimeout,
		limiter:        lim,
		isBackpressure: isBackpressure,
	}, nil
}

// Limiter returns the limiter that admits requests.
func (rt *AdaptiveLimitingRoundTripper) Limiter() *limiter.Limiter[http.RoundTripper] {
	return rt.limiter
}

// RoundTrip executes a single HTTP transaction, returning a Response for the provided Request.
func (rt *AdaptiveLimitingRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(r.Context(), rt.WaitTimeout)
	defer cancel()

	var resp *http.Response
	var rtErr error
	err := rt.limiter.Do(ctx, func(_ context.Context, delegate http.RoundTripper) error {
		resp, rtErr = delegate.RoundTrip(r)
		if rt.isBackpressure(resp, rtErr) {
			return limiter.ErrBackpressure
		}
		return nil
	})
	if err != nil {
		if r.Body != nil {
			_ = r.Body.Close() // Per RoundTripper contract.
		}
		return nil, &AdaptiveLimitingWaitError{Inner: err}
	}
	return resp, rtErr
}

func makeDefaultAdaptiveLimitingIsBackpressure(transportErrorIsBackpressure bool) AdaptiveLimitingIsBackpressureFunc {
	return func(resp *http.Response, err error) bool {
		if err != nil {
			return transportErrorIsBackpressure
		}
		return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable
	}
}

// AdaptiveLimitingWaitError is returned in RoundTrip method of AdaptiveLimitingRoundTripper
// when the request was not admitted in time.
type AdaptiveLimitingWaitError struct {
	Inner error
}

func (e *AdaptiveLimitingWaitError) Error() string {
	return fmt.Sprintf("wait due to client side adaptive concurrency limiting: %s", e.Inner.Error())
}

// Unwrap returns the next error in the error chain.
func (e *AdaptiveLimitingWaitError) Unwrap() error {
	return e.Inner
}
