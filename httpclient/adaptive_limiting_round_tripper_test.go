/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/acronis/go-sawtooth/limiter"
)

type roundTripperFunc func(r *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

type trackingBody struct {
	io.Reader
	closed atomic.Bool
}

func (b *trackingBody) Close() error {
	b.closed.Store(true)
	return nil
}

func makeLimiterConfig(starting int) limiter.Config {
	return limiter.Config{
		MaxConcurrency:      10,
		MinConcurrency:      1,
		StepSize:            1,
		BackoffFactor:       0.5,
		StartingConcurrency: starting,
	}
}

func respondWithStatus(statusCode int) roundTripperFunc {
	return func(r *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: statusCode, Body: http.NoBody, Request: r}, nil
	}
}

func TestNewAdaptiveLimitingRoundTripper(t *testing.T) {
	t.Run("invalid limiter config", func(t *testing.T) {
		cfg := makeLimiterConfig(4)
		cfg.MinConcurrency = 0
		_, err := NewAdaptiveLimitingRoundTripper(nil, cfg)
		require.ErrorIs(t, err, limiter.ErrMinConcurrencyNotPositive)
	})

	t.Run("negative wait timeout", func(t *testing.T) {
		_, err := NewAdaptiveLimitingRoundTripperWithOpts(nil, makeLimiterConfig(4),
			AdaptiveLimitingRoundTripperOpts{WaitTimeout: -1})
		require.EqualError(t, err, "wait timeout must not be negative")
	})

	t.Run("defaults", func(t *testing.T) {
		rt, err := NewAdaptiveLimitingRoundTripper(nil, makeLimiterConfig(4))
		require.NoError(t, err)
		require.Equal(t, http.DefaultTransport, rt.Delegate)
		require.Equal(t, DefaultAdaptiveLimitingWaitTimeout, rt.WaitTimeout)
		require.Equal(t, http.DefaultTransport, rt.Limiter().Resource())
	})
}

func TestAdaptiveLimitingRoundTripper_RoundTrip(t *testing.T) {
	t.Run("real server", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			_, _ = rw.Write([]byte("ok"))
		}))
		defer server.Close()

		rt, err := NewAdaptiveLimitingRoundTripper(http.DefaultTransport, makeLimiterConfig(4))
		require.NoError(t, err)
		client := &http.Client{Transport: rt}
		resp, err := client.Get(server.URL)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, "ok", string(body))
		require.Equal(t, 0, rt.Limiter().Stats().InFlight)
	})

	t.Run("overload responses decrease limit", func(t *testing.T) {
		for _, statusCode := range []int{http.StatusTooManyRequests, http.StatusServiceUnavailable} {
			rt, err := NewAdaptiveLimitingRoundTripper(respondWithStatus(statusCode), makeLimiterConfig(4))
			require.NoError(t, err)
			resp, err := rt.RoundTrip(httptest.NewRequest(http.MethodGet, "/", nil))
			require.NoError(t, err)
			require.Equal(t, statusCode, resp.StatusCode)
			require.Equal(t, 2.0, rt.Limiter().Stats().Concurrency)
		}
	})

	t.Run("other responses do not decrease limit", func(t *testing.T) {
		rt, err := NewAdaptiveLimitingRoundTripper(respondWithStatus(http.StatusInternalServerError), makeLimiterConfig(4))
		require.NoError(t, err)
		_, err = rt.RoundTrip(httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)
		require.Equal(t, 4.0, rt.Limiter().Stats().Concurrency)
	})

	t.Run("transport errors", func(t *testing.T) {
		transportErr := errors.New("connection reset by peer")
		failing := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return nil, transportErr
		})

		rt, err := NewAdaptiveLimitingRoundTripper(failing, makeLimiterConfig(4))
		require.NoError(t, err)
		_, err = rt.RoundTrip(httptest.NewRequest(http.MethodGet, "/", nil))
		require.ErrorIs(t, err, transportErr)
		require.Equal(t, 4.0, rt.Limiter().Stats().Concurrency)

		rt, err = NewAdaptiveLimitingRoundTripperWithOpts(failing, makeLimiterConfig(4),
			AdaptiveLimitingRoundTripperOpts{TransportErrorIsBackpressure: true})
		require.NoError(t, err)
		_, err = rt.RoundTrip(httptest.NewRequest(http.MethodGet, "/", nil))
		require.ErrorIs(t, err, transportErr)
		require.Equal(t, 2.0, rt.Limiter().Stats().Concurrency)
	})

	t.Run("custom backpressure detection", func(t *testing.T) {
		delegate := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
			resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: http.NoBody}
			resp.Header.Set("X-Load", "high")
			return resp, nil
		})
		rt, err := NewAdaptiveLimitingRoundTripperWithOpts(delegate, makeLimiterConfig(4), AdaptiveLimitingRoundTripperOpts{
			IsBackpressure: func(resp *http.Response, err error) bool {
				return err == nil && resp.Header.Get("X-Load") == "high"
			},
		})
		require.NoError(t, err)
		_, err = rt.RoundTrip(httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)
		require.Equal(t, 2.0, rt.Limiter().Stats().Concurrency)
	})

	t.Run("wait timeout", func(t *testing.T) {
		started := make(chan struct{})
		unblock := make(chan struct{})
		delegate := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
			close(started)
			<-unblock
			return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
		})
		rt, err := NewAdaptiveLimitingRoundTripperWithOpts(delegate, makeLimiterConfig(1),
			AdaptiveLimitingRoundTripperOpts{WaitTimeout: time.Millisecond * 50})
		require.NoError(t, err)

		done := make(chan error, 1)
		go func() {
			_, rtErr := rt.RoundTrip(httptest.NewRequest(http.MethodGet, "/", nil))
			done <- rtErr
		}()
		<-started

		body := &trackingBody{Reader: strings.NewReader("payload")}
		req := httptest.NewRequest(http.MethodPost, "/", body)
		resp, err := rt.RoundTrip(req)
		require.Nil(t, resp)
		var waitErr *AdaptiveLimitingWaitError
		require.ErrorAs(t, err, &waitErr)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.True(t, body.closed.Load())
		require.Equal(t, 0, rt.Limiter().Stats().Waiting)

		close(unblock)
		require.NoError(t, <-done)
	})
}
