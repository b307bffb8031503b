package termloop

import (
	"container/heap"
	"errors"
	"time"
)

// Standard poller errors.
var (
	ErrInvalidFD           = errors.New("termloop: invalid fd")
	ErrFDAlreadyRegistered = errors.New("termloop: fd already registered")
	ErrFDNotRegistered     = errors.New("termloop: fd not registered")
	ErrPollerClosed        = errors.New("termloop: poller closed")
	ErrUnsupportedPlatform = errors.New("termloop: platform not supported")
)

// Interest selects the readiness conditions a registration waits for.
type Interest struct {
	Readable bool
	Writable bool
}

// Common interest sets.
var (
	InterestRead      = Interest{Readable: true}
	InterestWrite     = Interest{Writable: true}
	InterestReadWrite = Interest{Readable: true, Writable: true}
)

// Mode is the trigger mode of a registration.
type Mode uint8

const (
	// Level reports the fd every poll, for as long as it stays ready.
	Level Mode = iota
	// Edge reports the fd once per readiness change.
	Edge
	// OneShot reports the fd once, after which it must be reregistered.
	OneShot
)

// Readiness describes why a source was woken.
type Readiness struct {
	Readable bool
	Writable bool
	Error    bool
}

// PollEvent is a single readiness notification, produced by the Poll.
type PollEvent struct {
	Token     Token
	Readiness Readiness
}

// rawEvent is what a backend reports, before fd to token translation.
type rawEvent struct {
	fd        int
	readiness Readiness
}

// backend is the platform readiness primitive (epoll, kqueue).
type backend interface {
	add(fd int, interest Interest, mode Mode) error
	modify(fd int, interest Interest, mode Mode) error
	remove(fd int) error
	// wait blocks until at least one fd is ready, or the timeout elapses.
	// A negative timeout blocks indefinitely.
	wait(events []rawEvent, timeout time.Duration) (int, error)
	close() error
}

// Poll is the readiness backend handed to event sources during
// registration. It multiplexes file descriptors, via the platform backend,
// and timeouts, via a deadline heap, into a single blocking wait.
//
// A Poll is owned by one Loop and must only be used from the loop goroutine.
type Poll struct {
	backend backend
	fds     map[int]Token
	timers  timerHeap
	buf     []rawEvent
	closed  bool
}

func newPoll(b backend) *Poll {
	return &Poll{
		backend: b,
		fds:     make(map[int]Token),
		buf:     make([]rawEvent, 256),
	}
}

// Register starts monitoring fd, reporting readiness with the given token.
func (p *Poll) Register(fd int, interest Interest, mode Mode, token Token) error {
	if p.closed {
		return ErrPollerClosed
	}
	if fd < 0 {
		return ErrInvalidFD
	}
	if _, ok := p.fds[fd]; ok {
		return ErrFDAlreadyRegistered
	}
	if err := p.backend.add(fd, interest, mode); err != nil {
		return err
	}
	p.fds[fd] = token
	return nil
}

// Reregister updates the interest, mode and token of a registered fd. It
// re-arms OneShot registrations.
func (p *Poll) Reregister(fd int, interest Interest, mode Mode, token Token) error {
	if p.closed {
		return ErrPollerClosed
	}
	if fd < 0 {
		return ErrInvalidFD
	}
	if _, ok := p.fds[fd]; !ok {
		return ErrFDNotRegistered
	}
	if err := p.backend.modify(fd, interest, mode); err != nil {
		return err
	}
	p.fds[fd] = token
	return nil
}

// Unregister stops monitoring fd. It must be called before fd is closed.
func (p *Poll) Unregister(fd int) error {
	if p.closed {
		return ErrPollerClosed
	}
	if fd < 0 {
		return ErrInvalidFD
	}
	if _, ok := p.fds[fd]; !ok {
		return ErrFDNotRegistered
	}
	if err := p.backend.remove(fd); err != nil {
		return err
	}
	delete(p.fds, fd)
	return nil
}

// AddTimeout arms a timeout, reported as readable for token, once deadline
// has passed. A token has at most one pending timeout, arming it again
// replaces the previous deadline.
func (p *Poll) AddTimeout(deadline time.Time, token Token) error {
	if p.closed {
		return ErrPollerClosed
	}
	p.CancelTimeout(token)
	heap.Push(&p.timers, pendingTimeout{deadline: deadline, token: token})
	return nil
}

// CancelTimeout disarms any pending timeout for token.
func (p *Poll) CancelTimeout(token Token) {
	for i := range p.timers {
		if p.timers[i].token == token {
			heap.Remove(&p.timers, i)
			return
		}
	}
}

// poll blocks for at most timeout (negative meaning no limit, further capped
// by the earliest pending deadline), appending what became ready to events.
// File descriptor readiness is reported first, in backend order, followed by
// expired timeouts, earliest first.
func (p *Poll) poll(timeout time.Duration, events []PollEvent) ([]PollEvent, error) {
	if p.closed {
		return events, ErrPollerClosed
	}

	if len(p.timers) > 0 {
		delay := time.Until(p.timers[0].deadline)
		if delay < 0 {
			delay = 0
		}
		if timeout < 0 || delay < timeout {
			timeout = delay
		}
	}

	n, err := p.backend.wait(p.buf, timeout)
	if err != nil {
		return events, err
	}

	for _, ev := range p.buf[:n] {
		if token, ok := p.fds[ev.fd]; ok {
			events = append(events, PollEvent{Token: token, Readiness: ev.readiness})
		}
	}

	now := time.Now()
	for len(p.timers) > 0 && !p.timers[0].deadline.After(now) {
		t := heap.Pop(&p.timers).(pendingTimeout)
		events = append(events, PollEvent{Token: t.token, Readiness: Readiness{Readable: true}})
	}

	return events, nil
}

func (p *Poll) close() error {
	if p.closed {
		return ErrPollerClosed
	}
	p.closed = true
	p.fds = nil
	p.timers = nil
	return p.backend.close()
}

// waitMillis converts a poll timeout to milliseconds, rounding sub
// millisecond delays up to 1ms, so a pending deadline never busy-polls.
func waitMillis(timeout time.Duration) int {
	if timeout < 0 {
		return -1
	}
	if timeout > 0 && timeout < time.Millisecond {
		return 1
	}
	ms := (timeout + time.Millisecond - 1) / time.Millisecond
	return int(ms)
}

// pendingTimeout represents an armed deadline
type pendingTimeout struct {
	deadline time.Time
	token    Token
}

// timerHeap is a min-heap of timeouts
type timerHeap []pendingTimeout

// Implement heap.Interface for timerHeap
func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].deadline.Before(h[j].deadline) }
func (h timerHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x any) {
	*h = append(*h, x.(pendingTimeout))
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
