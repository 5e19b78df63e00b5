package app

import (
	"context"
	"sync"
	"time"

	"quizbook-service/internal/session"
)

// Session is one live quiz session. Every connection of the same taker on the
// same quiz shares it, so events from several tabs are applied one at a time
// to a single state machine.
type Session struct {
	key     string
	mu      sync.Mutex
	machine *session.Machine

	refs        int
	timerCancel context.CancelFunc
	timerGen    int
	subscribers map[chan session.View]struct{}
}

// NewSession wraps machine. It is exported for infrastructure layers that
// store sessions.
func NewSession(key string, machine *session.Machine) *Session {
	return &Session{
		key:         key,
		machine:     machine,
		subscribers: make(map[chan session.View]struct{}),
	}
}

// Key identifies the session as quizID:subject.
func (s *Session) Key() string {
	return s.key
}

// Retain registers one more holder of the session.
func (s *Session) Retain() {
	s.mu.Lock()
	s.refs++
	s.mu.Unlock()
}

// Release drops one holder. The countdown stops when nobody holds the session.
func (s *Session) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
}

// releaseLocked also retires the timer generation, so a tick already waiting
// for the lock does nothing.
func (s *Session) releaseLocked() {
	if s.refs > 0 {
		s.refs--
	}
	if s.refs == 0 && s.timerCancel != nil {
		s.timerCancel()
		s.timerCancel = nil
		s.timerGen++
	}
}

// IsIdle reports whether no connection holds the session.
func (s *Session) IsIdle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs == 0
}

// do applies op under the session lock and broadcasts the resulting view.
func (s *Session) do(op func(m *session.Machine) error) (session.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := op(s.machine)
	view := s.machine.View()
	s.broadcastLocked(view)
	return view, err
}

func (s *Session) view() session.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.View()
}

func (s *Session) subscribe() (<-chan session.View, func()) {
	ch := make(chan session.View, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.machine.View()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked(view session.View) {
	for ch := range s.subscribers {
		select {
		case ch <- view:
		default:
			// drop the oldest view so slow readers never block the session
			select {
			case <-ch:
			default:
			}
			ch <- view
		}
	}
}

// startTimer runs tick once per interval until the machine leaves Active, the
// clock runs out or the last holder releases the session. At most one timer
// runs per session.
func (s *Session) startTimer(interval time.Duration, tick func(ctx context.Context, m *session.Machine) error) bool {
	s.mu.Lock()
	if s.timerCancel != nil || s.refs == 0 || s.machine.Status() != session.StatusActive {
		s.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.timerCancel = cancel
	s.timerGen++
	gen := s.timerGen
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		defer cancel()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			done := false
			_, _ = s.do(func(m *session.Machine) error {
				if s.timerGen != gen || ctx.Err() != nil {
					done = true
					return nil
				}
				err := tick(ctx, m)
				if m.Status() != session.StatusActive || m.State().RemainingSeconds == 0 {
					s.timerCancel = nil
					done = true
				}
				return err
			})
			if done {
				return
			}
		}
	}()
	return true
}
