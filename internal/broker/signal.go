package broker

import (
	"context"
	"sync"
	"time"
)

// connSignal carries the result of one connection attempt from the
// on-connect callback to the goroutine blocked in Connect.
//
// reset arms a fresh signal for a new attempt; a result recorded before the
// reset is discarded.
type connSignal struct {
	mu   sync.Mutex
	done chan struct{}
	code byte
	set  bool
}

func newConnSignal() *connSignal {
	s := &connSignal{}
	s.reset()
	return s
}

func (s *connSignal) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = make(chan struct{})
	s.code = 0
	s.set = false
}

// resolve records code and wakes the waiter. A later resolve in the same
// attempt overwrites the code.
func (s *connSignal) resolve(code byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.code = code
	if !s.set {
		s.set = true
		close(s.done)
	}
}

// wait blocks until resolve is called, timeout elapses, or ctx is done.
func (s *connSignal) wait(ctx context.Context, timeout time.Duration) (byte, error) {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.code, nil
	case <-timer.C:
		return 0, ErrConnectTimeout
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// result returns the recorded code and whether one has been recorded since the last reset.
func (s *connSignal) result() (byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code, s.set
}
