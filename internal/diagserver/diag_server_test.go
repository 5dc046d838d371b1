/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package diagserver

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/acronis/go-sawtooth/internal/libinfo"
	"github.com/acronis/go-sawtooth/limiter"
	"github.com/acronis/go-sawtooth/log/logtest"
	"github.com/acronis/go-sawtooth/testutil"
)

func startServer(t *testing.T, opts Opts) *DiagServer {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.Address = testutil.GetLocalAddrWithFreeTCPPort()
	srv := New(cfg, logtest.NewRecorder(), opts)

	fatalErr := make(chan error, 1)
	go srv.Start(fatalErr)
	require.NoError(t, testutil.WaitListeningServer(cfg.Address, time.Second*3))
	t.Cleanup(func() {
		require.NoError(t, srv.Stop(true))
		testutil.RequireNoErrorInChannel(t, fatalErr)
	})
	return srv
}

func httpGet(t *testing.T, url string) (statusCode int, body string) {
	t.Helper()
	resp, err := http.Get(url) //nolint:gosec // test URL
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()
	bodyBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(bodyBytes)
}

func TestDiagServer(t *testing.T) {
	registry := prometheus.NewRegistry()
	mc := limiter.NewMetricsCollector("test")
	registry.MustRegister(mc.ConcurrencyLimit)
	lim := limiter.MustNewWithOpts(struct{}{}, limiter.Config{
		MaxConcurrency: 100, MinConcurrency: 1, StepSize: 1, BackoffFactor: 0.5, StartingConcurrency: 12,
	}, limiter.Opts{Name: "downstream", MetricsCollector: mc})

	srv := startServer(t, Opts{Gatherer: registry, LimiterStats: lim.Stats})

	t.Run("metrics", func(t *testing.T) {
		code, body := httpGet(t, srv.URL+MetricsPath)
		require.Equal(t, http.StatusOK, code)
		require.Contains(t, body, `test_sawtooth_concurrency_limit{`+
			libinfo.PrometheusVersionLabel+`="`+libinfo.Version()+`",limiter="downstream"} 12`)
	})

	t.Run("pprof", func(t *testing.T) {
		code, body := httpGet(t, srv.URL+DebugPath+"/pprof/")
		require.Equal(t, http.StatusOK, code)
		require.Contains(t, body, "goroutine")
	})

	t.Run("limiter stats", func(t *testing.T) {
		code, body := httpGet(t, srv.URL+LimiterPath)
		require.Equal(t, http.StatusOK, code)
		var stats limiter.Stats
		require.NoError(t, json.Unmarshal([]byte(body), &stats))
		require.Equal(t, 12.0, stats.Concurrency)
	})
}

func TestDiagServer_WithoutLimiterStats(t *testing.T) {
	srv := startServer(t, Opts{Gatherer: prometheus.NewRegistry()})
	code, _ := httpGet(t, srv.URL+LimiterPath)
	require.Equal(t, http.StatusNotFound, code)
}

func TestDiagServer_ListenError(t *testing.T) {
	busy := startServer(t, Opts{Gatherer: prometheus.NewRegistry()})

	cfg := NewDefaultConfig()
	cfg.Address = busy.HTTPServer.Addr
	srv := New(cfg, nil, Opts{})
	fatalErr := make(chan error, 1)
	srv.Start(fatalErr)
	testutil.RequireErrorInChannelWithin(t, fatalErr, time.Second)
}
