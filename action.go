package nrf70

import (
	"context"
	"sync"

	"github.com/soypat/nrf70/nrfwifi"
)

type actionKind uint8

const (
	_ actionKind = iota
	actionBoot
	actionCommand
	actionGet
)

func (k actionKind) String() string {
	switch k {
	case actionBoot:
		return "boot"
	case actionCommand:
		return "command"
	case actionGet:
		return "get"
	}
	return "unknown"
}

// item selects the cached runner state returned by an actionGet.
type item uint8

const (
	itemUMACInfo item = iota + 1
	itemVersion
)

// action is a request from the control side to the runner. Slices are
// borrowed from the caller, who is blocked in issue until the action is done.
type action struct {
	kind     actionKind
	firmware []byte
	cmd      nrfwifi.Command
	// wait is set when the command completes on an RPU event.
	wait bool
	// resp receives the response bytes, if any.
	resp []byte
	item item
}

type actionStatus uint8

const (
	statusDone actionStatus = iota
	statusPending
	statusSent
)

// actionState is the mailbox between the control side and the runner.
// At most one action is outstanding at any time.
type actionState struct {
	mu     sync.Mutex
	status actionStatus
	// seq identifies the action being processed so stale responses are ignored.
	seq uint32
	act action
	// Result of the last action.
	n   int
	err error
	// runner is signalled when an action becomes pending.
	runner chan struct{}
	// control is signalled when the action is done.
	control chan struct{}
}

func (s *actionState) init() {
	s.runner = make(chan struct{}, 1)
	s.control = make(chan struct{}, 1)
}

// issue submits a and blocks until the runner responds or ctx is done.
// It returns the number of response bytes written to a.resp.
func (s *actionState) issue(ctx context.Context, a action) (int, error) {
	s.mu.Lock()
	if s.status != statusDone {
		s.mu.Unlock()
		return 0, ErrBusy
	}
	s.seq++
	seq := s.seq
	s.act = a
	s.status = statusPending
	s.n, s.err = 0, nil
	// Discard a wakeup left over by a cancelled action.
	select {
	case <-s.control:
	default:
	}
	s.mu.Unlock()
	notify(s.runner)

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			if s.seq == seq && s.status != statusDone {
				s.status = statusDone
				s.act = action{}
			}
			s.mu.Unlock()
			return 0, ctx.Err()
		case <-s.control:
		}
		s.mu.Lock()
		if s.seq != seq || s.status == statusDone {
			n, err := s.n, s.err
			s.mu.Unlock()
			return n, err
		}
		s.mu.Unlock()
	}
}

// takePending returns the pending action and marks it sent.
func (s *actionState) takePending() (a action, seq uint32, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != statusPending {
		return a, 0, false
	}
	s.status = statusSent
	return s.act, s.seq, true
}

// sent reports whether action seq is awaiting its response.
func (s *actionState) sent(seq uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == statusSent && s.seq == seq
}

// respond completes the sent action seq with data and err. It returns false
// and does nothing when seq is not the sent action.
func (s *actionState) respond(seq uint32, data []byte, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != statusSent || s.seq != seq {
		return false
	}
	n := 0
	if err == nil && len(data) > 0 {
		if len(data) > len(s.act.resp) {
			err = ErrBufferTooSmall
		} else {
			n = copy(s.act.resp, data)
		}
	}
	s.n, s.err = n, err
	s.status = statusDone
	s.act = action{}
	notify(s.control)
	return true
}

// cancel forces the mailbox back to done from any state, waking a blocked issuer.
func (s *actionState) cancel() {
	s.mu.Lock()
	s.status = statusDone
	s.act = action{}
	s.n, s.err = 0, nil
	s.mu.Unlock()
	notify(s.control)
}

// notify performs a non-blocking send on a 1-buffered signal channel.
func notify(c chan struct{}) {
	select {
	case c <- struct{}{}:
	default:
	}
}
