package termloop

import (
	"sync/atomic"
)

// LoopSignal is a capability to stop a Loop, obtained via Loop.Signal.
//
// It is cheap to copy, and all copies share the same underlying flag. It is
// safe to use from any goroutine, including from callbacks running on the
// loop itself. The zero value is inert.
type LoopSignal struct {
	state *signalState
}

type signalState struct {
	wake *Ping
	stop atomic.Bool
}

// Stop requests loop termination. The flag transitions false to true once,
// and is observed by the loop between callbacks, so an in-progress callback
// always completes. If the loop is blocked in poll, it is woken.
func (s LoopSignal) Stop() {
	if s.state == nil {
		return
	}
	if s.state.stop.CompareAndSwap(false, true) {
		// fails only if the loop already terminated
		_ = s.state.wake.Ping()
	}
}

// Stopped reports whether Stop has been called.
func (s LoopSignal) Stopped() bool {
	return s.state != nil && s.state.stop.Load()
}

// Wakeup forces the loop out of a blocking poll, without stopping it.
func (s LoopSignal) Wakeup() {
	if s.state == nil {
		return
	}
	_ = s.state.wake.Ping()
}
