package mirror

import (
	"context"
	"sync"
)

// Session owns the per-process execution state shared by the consumer and the
// redemption scheduler: the one-time simulation claim, the pause gate, and
// the in-flight execution count.
type Session struct {
	mu        sync.Mutex
	paused    bool
	resumed   chan struct{}
	simulated bool
	inflight  sync.WaitGroup
}

func newSession() *Session {
	return &Session{resumed: make(chan struct{})}
}

// ClaimSimulation returns true exactly once per process. The first caller
// runs the signing dry run; everyone after skips straight to submission.
func (s *Session) ClaimSimulation() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.simulated {
		return false
	}
	s.simulated = true
	return true
}

// Enter joins the in-flight group, honouring the pause gate. While paused,
// deferOnPause=true blocks the caller until Resume and deferOnPause=false
// drops it. Returns false when the trade must not run. The gate check and
// the in-flight join are atomic: once Pause returns, no new entry can slip
// past a subsequent Drain.
func (s *Session) Enter(ctx context.Context, deferOnPause bool) bool {
	for {
		s.mu.Lock()
		if !s.paused {
			s.inflight.Add(1)
			s.mu.Unlock()
			return true
		}
		resumed := s.resumed
		s.mu.Unlock()

		if !deferOnPause {
			return false
		}
		select {
		case <-resumed:
		case <-ctx.Done():
			return false
		}
	}
}

// Exit releases an entry taken by Enter.
func (s *Session) Exit() {
	s.inflight.Done()
}

// Pause closes the gate. New entries block or drop until Resume.
func (s *Session) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// Drain blocks until every entered execution has exited. Call after Pause.
func (s *Session) Drain() {
	s.inflight.Wait()
}

// Resume reopens the gate and wakes deferred entries. Idempotent.
func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused {
		return
	}
	s.paused = false
	close(s.resumed)
	s.resumed = make(chan struct{})
}
