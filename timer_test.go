package termloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTimer_InvalidPeriod(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		_, err := NewTimer(d)
		assert.ErrorIs(t, err, ErrInvalidPeriod)
		_, err = NewOneShotTimer(d)
		assert.ErrorIs(t, err, ErrInvalidPeriod)
	}
}

// TestTimer_OverrunSchedulesSingleCatchUp drives a timer directly, against a
// poll with no file descriptors, to check the deadline arithmetic.
func TestTimer_OverrunSchedulesSingleCatchUp(t *testing.T) {
	const period = 10 * time.Millisecond

	poll := newPoll(nopBackend{})
	timer, err := NewTimer(period)
	require.NoError(t, err)
	require.NoError(t, timer.Register(poll, &TokenFactory{key: 1}))
	require.Len(t, poll.timers, 1)

	token := poll.timers[0].token

	// due now, as if delivered on time
	timer.deadline = time.Now()
	first := timer.deadline

	var events []TimerEvent
	_, err = timer.ProcessEvents(Readiness{Readable: true}, token, func(ev TimerEvent) {
		events = append(events, ev)
		time.Sleep(3*period + period/2)
	})
	require.NoError(t, err)

	// exactly one pending deadline, due immediately
	require.Len(t, poll.timers, 1)
	catchUp := poll.timers[0].deadline
	assert.False(t, catchUp.After(time.Now()))
	assert.True(t, catchUp.After(first.Add(3*period)))

	_, err = timer.ProcessEvents(Readiness{Readable: true}, token, func(ev TimerEvent) {
		events = append(events, ev)
	})
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, first, events[0].Deadline)
	assert.GreaterOrEqual(t, events[1].Missed, 2)
	assert.Equal(t, catchUp, events[1].Deadline)

	// back to the regular period, measured from the catch-up
	require.Len(t, poll.timers, 1)
	assert.Equal(t, catchUp.Add(period), poll.timers[0].deadline)
}

func TestTimer_LateDeliveryCountsMissedPeriods(t *testing.T) {
	const period = 10 * time.Millisecond

	poll := newPoll(nopBackend{})
	timer, err := NewTimer(period)
	require.NoError(t, err)
	require.NoError(t, timer.Register(poll, &TokenFactory{key: 1}))
	token := poll.timers[0].token

	// the loop itself was late, by more than two periods
	timer.deadline = time.Now().Add(-(2*period + period/2))

	var event TimerEvent
	_, err = timer.ProcessEvents(Readiness{Readable: true}, token, func(ev TimerEvent) { event = ev })
	require.NoError(t, err)
	assert.Equal(t, 2, event.Missed)

	require.Len(t, poll.timers, 1)
	assert.True(t, poll.timers[0].deadline.After(time.Now()))
}

func TestTimer_OneShotDisables(t *testing.T) {
	poll := newPoll(nopBackend{})
	timer, err := NewOneShotTimer(time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, timer.Register(poll, &TokenFactory{key: 1}))
	token := poll.timers[0].token
	timer.deadline = time.Now()

	var calls int
	action, err := timer.ProcessEvents(Readiness{Readable: true}, token, func(TimerEvent) { calls++ })
	require.NoError(t, err)
	assert.Equal(t, PostDisable, action)
	assert.Equal(t, 1, calls)
	require.NoError(t, timer.Unregister(poll))
	assert.Empty(t, poll.timers)

	// stale notifications are ignored
	action, err = timer.ProcessEvents(Readiness{Readable: true}, token, func(TimerEvent) { calls++ })
	require.NoError(t, err)
	assert.Equal(t, PostContinue, action)
	assert.Equal(t, 1, calls)
}

func TestTimer_IgnoresNotificationBeforeDeadline(t *testing.T) {
	poll := newPoll(nopBackend{})
	timer, err := NewOneShotTimer(time.Hour)
	require.NoError(t, err)
	require.NoError(t, timer.Register(poll, &TokenFactory{key: 1}))
	token := poll.timers[0].token

	var calls int
	action, err := timer.ProcessEvents(Readiness{Readable: true}, token, func(TimerEvent) { calls++ })
	require.NoError(t, err)
	assert.Equal(t, PostContinue, action)
	assert.Equal(t, 0, calls)

	// still armed, for the original deadline
	require.Len(t, poll.timers, 1)
	assert.Equal(t, timer.deadline, poll.timers[0].deadline)
}

func TestTimer_IgnoresForeignToken(t *testing.T) {
	poll := newPoll(nopBackend{})
	timer, err := NewTimer(time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, timer.Register(poll, &TokenFactory{key: 1}))

	var calls int
	_, err = timer.ProcessEvents(Readiness{Readable: true}, Token{key: 2}, func(TimerEvent) { calls++ })
	require.NoError(t, err)
	assert.Equal(t, 0, calls)
}

func TestTimer_InterleavesWithChannel(t *testing.T) {
	type state struct {
		order []string
	}

	loop, err := New[state]()
	require.NoError(t, err)

	sender, channel, err := NewChannel[string]()
	require.NoError(t, err)
	defer sender.Close()

	signal := loop.Signal()
	_, err = InsertSource(loop, channel, func(v string, s *state) {
		s.order = append(s.order, v)
	})
	require.NoError(t, err)

	var ticks int
	_, err = InsertSource(loop, mustTimer(t, 5*time.Millisecond), func(_ TimerEvent, s *state) {
		ticks++
		s.order = append(s.order, "tick")
		if ticks == 3 {
			signal.Stop()
		}
	})
	require.NoError(t, err)

	go func() {
		for i := 0; i < 3; i++ {
			_ = sender.Send("msg")
			time.Sleep(5 * time.Millisecond)
		}
	}()

	var s state
	require.NoError(t, waitRun(t, runAsync(loop, &s, nil), 5*time.Second))
	assert.Contains(t, s.order, "msg")
	assert.Contains(t, s.order, "tick")
}

func mustTimer(t *testing.T, period time.Duration) *Timer {
	t.Helper()
	timer, err := NewTimer(period)
	require.NoError(t, err)
	return timer
}
