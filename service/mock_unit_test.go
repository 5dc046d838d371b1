/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"fmt"
	"sync"

	"go.uber.org/atomic"
)

type mockUnit struct {
	name     string
	startErr error
	stopErr  bool

	stopped     chan struct{}
	stopOnce    sync.Once
	running     atomic.Bool
	started     atomic.Int32
	stops       atomic.Int32
	graceful    atomic.Int32
	registered  atomic.Int32
	unregistered atomic.Int32
}

func newMockUnit(name string) *mockUnit {
	return &mockUnit{name: name, stopped: make(chan struct{})}
}

func (u *mockUnit) Start(fatalErr chan<- error) {
	u.started.Inc()
	if u.startErr != nil {
		fatalErr <- u.startErr
		return
	}
	u.running.Store(true)
	<-u.stopped
	u.running.Store(false)
}

func (u *mockUnit) Stop(gracefully bool) error {
	u.stops.Inc()
	if gracefully {
		u.graceful.Inc()
	}
	u.stopOnce.Do(func() { close(u.stopped) })
	if u.stopErr {
		return fmt.Errorf("%s: stop failed", u.name)
	}
	return nil
}

func (u *mockUnit) MustRegisterMetrics() {
	u.registered.Inc()
}

func (u *mockUnit) UnregisterMetrics() {
	u.unregistered.Inc()
}
