/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package limiter

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestKeyed(t *testing.T) {
	t.Run("invalid config", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.BackoffFactor = 2
		_, err := NewKeyed(struct{}{}, cfg, KeyedOpts{})
		require.ErrorIs(t, err, ErrBackoffFactorOutOfRange)
	})

	t.Run("negative max keys", func(t *testing.T) {
		_, err := NewKeyed(struct{}{}, NewDefaultConfig(), KeyedOpts{MaxKeys: -1})
		require.Error(t, err)
	})

	t.Run("limiters are independent", func(t *testing.T) {
		k, err := NewKeyed("pool", makeConfig(4, 10, 0.5), KeyedOpts{Opts: Opts{Name: "hosts"}})
		require.NoError(t, err)

		a := k.Get("a")
		require.Same(t, a, k.Get("a"))
		require.Equal(t, "hosts/a", a.Name())
		require.Equal(t, "pool", a.Resource())

		_, err = a.Acquire(context.Background(), "1")
		require.NoError(t, err)
		require.NoError(t, a.Release("1", true))

		b := k.Get("b")
		require.Equal(t, 2.0, a.Stats().Concurrency)
		require.Equal(t, 4.0, b.Stats().Concurrency)
		require.Equal(t, 2, k.Len())
	})

	t.Run("least recently used limiter is evicted", func(t *testing.T) {
		mc := NewMetricsCollector("")
		k, err := NewKeyed(struct{}{}, makeConfig(4, 10, 0.5), KeyedOpts{MaxKeys: 2, Opts: Opts{MetricsCollector: mc}})
		require.NoError(t, err)

		a := k.Get("a")
		k.Get("b")
		k.Get("a")
		k.Get("c") // "b" is evicted
		require.Equal(t, 2, k.Len())
		require.Same(t, a, k.Get("a"))

		require.Equal(t, 4.0, testutil.ToFloat64(mc.ConcurrencyLimit.With(prometheus.Labels{metricsLabelLimiter: "a"})))
		require.Equal(t, 2, testutil.CollectAndCount(mc.ConcurrencyLimit), "evicted limiter series must be deleted")
	})
}
