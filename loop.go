package termloop

import (
	"errors"
	"io"
	"runtime"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// wakeKey is the token key reserved for the loop's own wake Ping, source
// keys start at 1.
const wakeKey = 0

// Environment is the setup/teardown pair invoked by Loop.Run, e.g. to put a
// terminal into raw mode, and to restore it.
type Environment interface {
	// Enter is called once, before polling begins.
	Enter() error
	// Leave is called once, on every exit path of Run, after a successful
	// Enter.
	Leave() error
}

// EnvironmentFuncs adapts a pair of functions to Environment. Nil functions
// are no-ops.
type EnvironmentFuncs struct {
	EnterFunc func() error
	LeaveFunc func() error
}

// Enter implements Environment.
func (x EnvironmentFuncs) Enter() error {
	if x.EnterFunc == nil {
		return nil
	}
	return x.EnterFunc()
}

// Leave implements Environment.
func (x EnvironmentFuncs) Leave() error {
	if x.LeaveFunc == nil {
		return nil
	}
	return x.LeaveFunc()
}

// RegistrationToken identifies a source inserted into a Loop.
type RegistrationToken struct {
	key uint32
	gen uint32
}

// dispatcher erases the event type of an inserted source.
type dispatcher[D any] interface {
	register(poll *Poll, factory *TokenFactory) error
	reregister(poll *Poll, factory *TokenFactory) error
	unregister(poll *Poll) error
	process(readiness Readiness, token Token, data *D) (PostAction, error)
	close() error
}

type sourceDispatcher[D, E any] struct {
	source   EventSource[E]
	callback func(event E, data *D)
	signal   LoopSignal
}

func (x *sourceDispatcher[D, E]) register(poll *Poll, factory *TokenFactory) error {
	return x.source.Register(poll, factory)
}

func (x *sourceDispatcher[D, E]) reregister(poll *Poll, factory *TokenFactory) error {
	return x.source.Reregister(poll, factory)
}

func (x *sourceDispatcher[D, E]) unregister(poll *Poll) error {
	return x.source.Unregister(poll)
}

func (x *sourceDispatcher[D, E]) process(readiness Readiness, token Token, data *D) (PostAction, error) {
	return x.source.ProcessEvents(readiness, token, func(event E) {
		// stop is observed between every callback, including mid-drain
		if x.signal.Stopped() {
			return
		}
		x.callback(event, data)
	})
}

func (x *sourceDispatcher[D, E]) close() error {
	if c, ok := x.source.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

type sourceSlot[D any] struct {
	dispatcher dispatcher[D]
	gen        uint32
	enabled    bool
}

func (x *sourceSlot[D]) factory(key uint32) *TokenFactory {
	return &TokenFactory{key: key, gen: x.gen}
}

// Loop is a single-threaded, cooperative reactor. It owns a Poll, a set of
// event sources, and (for the duration of each callback) exclusive access to
// the application state, of type D.
//
// Sources are inserted with InsertSource, typically before Run. All methods
// except Signal must be called from the goroutine that runs the loop (or
// before it is run), including from within callbacks.
//
// A Loop is single use: once Run returns, or Close is called, it is
// terminated, and its resources are released.
type Loop[D any] struct {
	// Prevent copying
	_ [0]func()

	poll    *Poll
	wake    *Ping
	signal  LoopSignal
	state   fastState
	logger  *logiface.Logger[logiface.Event]
	limiter *catrate.Limiter
	opts    *loopOptions
	slots   []*sourceSlot[D]
	gens    []uint32
	free    []uint32
	events  []PollEvent
	count   int
}

// New creates a new loop, acquiring the platform readiness backend.
func New[D any](opts ...LoopOption) (*Loop[D], error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}

	b, err := cfg.backend()
	if err != nil {
		return nil, err
	}

	wake, err := NewPing()
	if err != nil {
		_ = b.close()
		return nil, err
	}

	l := &Loop[D]{
		poll:   newPoll(b),
		wake:   wake,
		signal: LoopSignal{state: &signalState{wake: wake}},
		logger: cfg.logger,
		limiter: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 1,
			time.Minute: 10,
		}),
		opts:   cfg,
		events: make([]PollEvent, 0, 64),
	}

	if err := wake.Register(l.poll, &TokenFactory{key: wakeKey}); err != nil {
		_ = l.poll.close()
		_ = wake.Close()
		return nil, err
	}

	return l, nil
}

// Signal returns the stop capability of the loop. It may be called at any
// time, from any goroutine, and the result may be freely copied.
func (l *Loop[D]) Signal() LoopSignal {
	return l.signal
}

// State returns the current loop state.
func (l *Loop[D]) State() LoopState {
	return l.state.Load()
}

// InsertSource registers source with the loop, calling callback, on the
// loop goroutine, with each event the source produces, and mutable access
// to the application state.
//
// Registration failures are returned immediately, as a *RegistrationError.
func InsertSource[D, E any](l *Loop[D], source EventSource[E], callback func(event E, data *D)) (RegistrationToken, error) {
	if source == nil || callback == nil {
		panic("termloop: nil source or callback")
	}
	if l.state.Load() == StateTerminated {
		return RegistrationToken{}, ErrLoopTerminated
	}
	if limit := l.opts.maxSources; limit > 0 && l.count >= limit {
		return RegistrationToken{}, &RegistrationError{Err: ErrTooManySources}
	}

	var key uint32
	if n := len(l.free); n > 0 {
		key = l.free[n-1]
		l.free = l.free[:n-1]
	} else {
		l.slots = append(l.slots, nil)
		l.gens = append(l.gens, 0)
		key = uint32(len(l.slots))
	}
	// every occupant of a key gets a new generation
	l.gens[key-1]++
	rt := RegistrationToken{key: key, gen: l.gens[key-1]}

	slot := &sourceSlot[D]{
		dispatcher: &sourceDispatcher[D, E]{
			source:   source,
			callback: callback,
			signal:   l.signal,
		},
		gen: rt.gen,
	}
	if err := slot.dispatcher.register(l.poll, slot.factory(key)); err != nil {
		// a partial registration must not leak interest
		_ = slot.dispatcher.unregister(l.poll)
		l.free = append(l.free, key)
		return RegistrationToken{}, &RegistrationError{Err: err, Token: rt}
	}
	slot.enabled = true
	l.slots[key-1] = slot
	l.count++

	l.logger.Debug().
		Int64(`source`, int64(key)).
		Log(`termloop: source inserted`)

	return rt, nil
}

// RemoveSource unregisters and removes a source, closing it if it
// implements io.Closer.
func (l *Loop[D]) RemoveSource(rt RegistrationToken) error {
	slot := l.slot(rt.key, rt.gen)
	if slot == nil {
		return ErrSourceNotFound
	}
	return l.remove(rt.key, slot)
}

// DisableSource unregisters a source, without removing it.
func (l *Loop[D]) DisableSource(rt RegistrationToken) error {
	slot := l.slot(rt.key, rt.gen)
	if slot == nil {
		return ErrSourceNotFound
	}
	if !slot.enabled {
		return nil
	}
	slot.enabled = false
	return slot.dispatcher.unregister(l.poll)
}

// EnableSource re-registers a disabled source.
func (l *Loop[D]) EnableSource(rt RegistrationToken) error {
	slot := l.slot(rt.key, rt.gen)
	if slot == nil {
		return ErrSourceNotFound
	}
	if slot.enabled {
		return nil
	}
	if err := slot.dispatcher.register(l.poll, slot.factory(rt.key)); err != nil {
		return &RegistrationError{Err: err, Token: rt}
	}
	slot.enabled = true
	return nil
}

// Run runs the loop until the LoopSignal is stopped, or a fatal error
// occurs, passing data to every callback. If WithTickPeriod was configured,
// and onTick is non-nil, onTick is called at that period, interleaved with
// the other sources.
//
// The configured Environment is entered before polling begins, and left on
// every exit path, including errors and panics. If Enter fails, Run returns
// a *SetupError, and Leave is not called. The loop is terminated, once Run
// returns.
func (l *Loop[D]) Run(data *D, onTick func(data *D)) (err error) {
	if !l.state.TryTransition(StateAwake, StateRunning) {
		if l.state.Load() == StateTerminated {
			return ErrLoopTerminated
		}
		return ErrLoopAlreadyRunning
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	defer l.terminate()

	if env := l.opts.environment; env != nil {
		if err := env.Enter(); err != nil {
			l.logger.Err().
				Err(err).
				Log(`termloop: environment setup failed`)
			return &SetupError{Err: err}
		}
		defer func() {
			if leaveErr := env.Leave(); leaveErr != nil {
				l.logger.Err().
					Err(leaveErr).
					Log(`termloop: environment teardown failed`)
				teardown := &TeardownError{Err: leaveErr}
				if err == nil {
					err = teardown
				} else {
					err = errors.Join(err, teardown)
				}
			}
		}()
	}

	if period := l.opts.tickPeriod; period > 0 && onTick != nil {
		timer, err := NewTimer(period)
		if err != nil {
			return err
		}
		if _, err := InsertSource(l, timer, func(event TimerEvent, data *D) {
			if event.Missed > 0 {
				l.logCoalesced(event)
			}
			onTick(data)
		}); err != nil {
			return err
		}
	}

	l.logger.Info().
		Dur(`tick`, l.opts.tickPeriod).
		Int(`sources`, l.count).
		Log(`termloop: running`)

	for !l.signal.Stopped() {
		if err := l.dispatch(-1, data); err != nil {
			l.logger.Err().
				Err(err).
				Log(`termloop: terminating on error`)
			return err
		}
	}

	l.logger.Info().Log(`termloop: stopped`)

	return nil
}

// DispatchOnce performs a single poll and dispatch cycle, blocking for at
// most timeout (negative meaning until a source is ready). It allows driving
// the loop manually, instead of via Run, and must not be called from within
// a callback. The Environment is not entered.
func (l *Loop[D]) DispatchOnce(timeout time.Duration, data *D) error {
	switch l.state.Load() {
	case StateAwake:
	case StateTerminated:
		return ErrLoopTerminated
	default:
		return ErrLoopAlreadyRunning
	}
	if !l.state.TryTransition(StateAwake, StateRunning) {
		return ErrLoopAlreadyRunning
	}
	defer l.state.TryTransition(StateRunning, StateAwake)
	return l.dispatch(timeout, data)
}

// Close terminates a loop that is not running, releasing its resources.
// If the loop is running, Close stops it instead, like LoopSignal.Stop.
func (l *Loop[D]) Close() error {
	switch {
	case l.state.TryTransition(StateAwake, StateRunning):
		l.terminate()
		return nil
	case l.state.Load() == StateRunning:
		l.signal.Stop()
		return nil
	default:
		return ErrLoopTerminated
	}
}

// dispatch polls once, then processes the ready sources, in the order
// reported by the poll.
func (l *Loop[D]) dispatch(timeout time.Duration, data *D) error {
	events, err := l.poll.poll(timeout, l.events[:0])
	l.events = events[:0]
	if err != nil {
		return &PollError{Err: err}
	}

	for _, ev := range events {
		if l.signal.Stopped() {
			return nil
		}

		if ev.Token.key == wakeKey {
			if err := l.wake.drain(); err != nil {
				return &PollError{Err: err}
			}
			continue
		}

		slot := l.slot(ev.Token.key, ev.Token.gen)
		if slot == nil || !slot.enabled {
			// stale, removed or disabled earlier in this cycle
			continue
		}

		action, err := slot.dispatcher.process(ev.Readiness, ev.Token, data)
		if err != nil {
			return &SourceError{Err: err, Token: RegistrationToken{key: ev.Token.key, gen: slot.gen}}
		}

		if err := l.apply(ev.Token.key, slot, action); err != nil {
			return err
		}
	}

	return nil
}

func (l *Loop[D]) apply(key uint32, slot *sourceSlot[D], action PostAction) error {
	rt := RegistrationToken{key: key, gen: slot.gen}
	switch action {
	case PostContinue:
		return nil
	case PostReregister:
		if err := slot.dispatcher.reregister(l.poll, slot.factory(key)); err != nil {
			return &RegistrationError{Err: err, Token: rt}
		}
		return nil
	case PostDisable:
		slot.enabled = false
		if err := slot.dispatcher.unregister(l.poll); err != nil {
			return &RegistrationError{Err: err, Token: rt}
		}
		return nil
	case PostRemove:
		l.logger.Debug().
			Int64(`source`, int64(key)).
			Log(`termloop: source finished`)
		if err := l.remove(key, slot); err != nil {
			return &RegistrationError{Err: err, Token: rt}
		}
		return nil
	default:
		return &SourceError{Err: errors.New("invalid post action"), Token: rt}
	}
}

func (l *Loop[D]) slot(key, gen uint32) *sourceSlot[D] {
	if key == wakeKey || int(key) > len(l.slots) {
		return nil
	}
	if slot := l.slots[key-1]; slot != nil && slot.gen == gen {
		return slot
	}
	return nil
}

func (l *Loop[D]) remove(key uint32, slot *sourceSlot[D]) error {
	var err error
	if slot.enabled {
		slot.enabled = false
		err = slot.dispatcher.unregister(l.poll)
	}
	if e := slot.dispatcher.close(); err == nil {
		err = e
	}
	l.slots[key-1] = nil
	l.free = append(l.free, key)
	l.count--
	l.logger.Debug().
		Int64(`source`, int64(key)).
		Log(`termloop: source removed`)
	return err
}

// terminate removes all sources, and releases the poll, leaving the loop in
// StateTerminated. Errors are logged, since they cannot be acted on.
func (l *Loop[D]) terminate() {
	for i, slot := range l.slots {
		if slot == nil {
			continue
		}
		if err := l.remove(uint32(i+1), slot); err != nil {
			l.logger.Warning().
				Err(err).
				Int64(`source`, int64(i+1)).
				Log(`termloop: failed to release source`)
		}
	}
	_ = l.wake.Unregister(l.poll)
	if err := l.poll.close(); err != nil {
		l.logger.Warning().
			Err(err).
			Log(`termloop: failed to close poll`)
	}
	_ = l.wake.Close()
	l.state.Store(StateTerminated)
}

func (l *Loop[D]) logCoalesced(event TimerEvent) {
	if _, ok := l.limiter.Allow(`tick`); !ok {
		return
	}
	l.logger.Warning().
		Int(`missed`, event.Missed).
		Dur(`late`, time.Since(event.Deadline)).
		Log(`termloop: ticks coalesced`)
}
