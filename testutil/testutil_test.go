/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type mockT struct {
	failed bool
	format string
}

func (t *mockT) FailNow() {
	t.failed = true
}

func (t *mockT) Errorf(format string, args ...interface{}) {
	t.format = format
}

func TestRequireNoErrorInChannel(t *testing.T) {
	c := make(chan error, 1)
	RequireNoErrorInChannel(t, c)

	c <- errors.New("internal error")
	mt := &mockT{}
	RequireNoErrorInChannel(mt, c)
	require.True(t, mt.failed)
}

func TestRequireErrorInChannelWithin(t *testing.T) {
	c := make(chan error, 1)
	c <- errors.New("listen error")
	require.EqualError(t, RequireErrorInChannelWithin(t, c, time.Second), "listen error")

	mt := &mockT{}
	RequireErrorInChannelWithin(mt, c, time.Millisecond*10)
	require.True(t, mt.failed)
}

func TestRequireErrorInRecorder(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set("Content-Type", "application/json")
	rec.WriteHeader(http.StatusServiceUnavailable)
	_, err := rec.WriteString(`{"error":{"domain":"MyService","code":"tooManyInFlightRequests"}}`)
	require.NoError(t, err)
	RequireErrorInRecorder(t, rec, http.StatusServiceUnavailable, "MyService", "tooManyInFlightRequests")

	mt := &mockT{}
	RequireErrorInRecorder(mt, httptest.NewRecorder(), http.StatusServiceUnavailable, "MyService", "tooManyInFlightRequests")
	require.True(t, mt.failed)
}

func TestRequireGaugeValue(t *testing.T) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "concurrency_limit"})
	gauge.Set(12)
	RequireGaugeValue(t, gauge, 12)

	mt := &mockT{}
	RequireGaugeValue(mt, gauge, 13)
	require.True(t, mt.failed)
}

func TestRequireSamplesCountInCounter(t *testing.T) {
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "limit_decreases_total"})
	counter.Add(3)
	RequireSamplesCountInCounter(t, counter, 3)

	mt := &mockT{}
	RequireSamplesCountInCounter(mt, counter, 1)
	require.True(t, mt.failed)
}

func TestWaitListeningServer(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { require.NoError(t, listener.Close()) }()
	go func() {
		for {
			conn, acceptErr := listener.Accept()
			if acceptErr != nil {
				return
			}
			_ = conn.Close()
		}
	}()
	require.NoError(t, WaitListeningServer(listener.Addr().String(), time.Second))

	require.Error(t, WaitListeningServer(GetLocalAddrWithFreeTCPPort(), time.Millisecond*50))
}
