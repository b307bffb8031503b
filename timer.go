package termloop

import (
	"time"
)

// TimerEvent is delivered by a Timer, each time it fires.
type TimerEvent struct {
	// Deadline is the time the timer was scheduled to fire.
	Deadline time.Time
	// Missed is the number of whole periods that elapsed, between Deadline
	// and the time the event was delivered, and were coalesced into it.
	Missed int
}

// Timer is an EventSource that fires periodically, or once. Its deadlines
// are tracked by the Poll, so timer events interleave with the readiness of
// other sources, rather than taking priority.
//
// Ticks are never queued: if the loop falls behind by one or more periods,
// the missed ticks are coalesced into a single catch-up tick, delivered
// immediately, after which the period is measured from the catch-up.
type Timer struct {
	period   time.Duration
	oneShot  bool
	deadline time.Time
	poll     *Poll
	token    Token
	missed   int
	armed    bool
}

// NewTimer creates a periodic timer. The first tick fires one period after
// the timer is registered.
func NewTimer(period time.Duration) (*Timer, error) {
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}
	return &Timer{period: period}, nil
}

// NewOneShotTimer creates a timer that fires once, delay after registration,
// then disables itself. Re-enabling the source (Loop.EnableSource) re-arms
// it relative to the time of re-enabling.
func NewOneShotTimer(delay time.Duration) (*Timer, error) {
	if delay <= 0 {
		return nil, ErrInvalidPeriod
	}
	return &Timer{period: delay, oneShot: true}, nil
}

// Register implements EventSource.
func (t *Timer) Register(poll *Poll, factory *TokenFactory) error {
	t.poll = poll
	t.token = factory.Token()
	t.deadline = time.Now().Add(t.period)
	t.armed = true
	return poll.AddTimeout(t.deadline, t.token)
}

// Reregister implements EventSource. The current deadline is kept.
func (t *Timer) Reregister(poll *Poll, factory *TokenFactory) error {
	if t.poll != nil {
		t.poll.CancelTimeout(t.token)
	}
	t.poll = poll
	t.token = factory.Token()
	t.armed = true
	return poll.AddTimeout(t.deadline, t.token)
}

// Unregister implements EventSource.
func (t *Timer) Unregister(poll *Poll) error {
	poll.CancelTimeout(t.token)
	t.armed = false
	return nil
}

// ProcessEvents implements EventSource.
func (t *Timer) ProcessEvents(_ Readiness, token Token, callback func(TimerEvent)) (PostAction, error) {
	if token != t.token || !t.armed {
		return PostContinue, nil
	}

	fired := t.deadline
	start := time.Now()
	if start.Before(fired) {
		// not yet due, e.g. re-armed since the poll reported it
		return PostContinue, nil
	}
	missed := t.missed
	t.missed = 0
	if late := start.Sub(fired); late >= t.period && !t.oneShot {
		missed += int(late / t.period)
	}

	callback(TimerEvent{Deadline: fired, Missed: missed})

	if t.oneShot {
		t.armed = false
		return PostDisable, nil
	}

	next := fired.Add(t.period)
	if !next.After(start) {
		// this tick was itself the catch-up
		next = start.Add(t.period)
	}
	if end := time.Now(); !next.After(end) {
		// the callback overran, schedule exactly one catch-up tick
		t.missed = int(end.Sub(next) / t.period)
		next = end
	}
	t.deadline = next
	if err := t.poll.AddTimeout(next, t.token); err != nil {
		return PostContinue, err
	}
	return PostContinue, nil
}

// Period returns the configured period (or delay, for one-shot timers).
func (t *Timer) Period() time.Duration {
	return t.period
}
