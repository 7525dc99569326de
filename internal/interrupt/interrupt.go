// Package interrupt provides the single cancellation token observed by the recorder.
//
// A Signal is raised at most once. The OS signal handler and interactive key handlers are the
// only writers; the recorder control loop is the only reader.
package interrupt

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
)

// Signal is a one-shot, goroutine-safe interrupt flag
type Signal struct {
	raised atomic.Bool
	once   sync.Once
	done   chan struct{}
}

// New returns a Signal that has not been raised
func New() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Trigger raises the signal. It returns true only for the call that raised it;
// later calls are no-ops.
func (s *Signal) Trigger() bool {
	first := false
	s.once.Do(func() {
		s.raised.Store(true)
		close(s.done)
		first = true
	})
	return first
}

// Raised reports whether the signal has been triggered
func (s *Signal) Raised() bool {
	return s.raised.Load()
}

// Done is closed when the signal is triggered
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// NotifyOS raises s on SIGINT or SIGTERM. onSignal, when non-nil, is called for every
// delivered signal with whether it was the first one. The returned func stops delivery.
func NotifyOS(s *Signal, onSignal func(sig os.Signal, first bool)) func() {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	quit := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-sigChan:
				first := s.Trigger()
				if onSignal != nil {
					onSignal(sig, first)
				}
			case <-quit:
				return
			}
		}
	}()

	var stopOnce sync.Once
	return func() {
		stopOnce.Do(func() {
			signal.Stop(sigChan)
			close(quit)
		})
	}
}
