package mqtt

import (
	"sync"
	"time"
)

// reconnectScheduler owns the single pending reconnect timer.
//
// Every failure path schedules through here, and scheduling cancels
// any timer already pending. At most one reconnect attempt can ever be
// queued, regardless of how many failure signals arrive while the
// connection is down.
type reconnectScheduler struct {
	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

// schedule queues fn after delay, replacing any pending attempt.
func (s *reconnectScheduler) schedule(delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.gen == gen {
			s.timer = nil
		}
		s.mu.Unlock()
		fn()
	})
}

// cancel stops any pending attempt.
func (s *reconnectScheduler) cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

// pending reports whether an attempt is currently queued.
func (s *reconnectScheduler) pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}
