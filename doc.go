// Package termloop provides a single-threaded, readiness-based reactor for
// interactive terminal programs, multiplexing timers, cross-goroutine
// channels, blocking producers, and user-defined event sources into one
// cooperative loop.
//
// # Architecture
//
// A [Loop] owns a [Poll], which combines the platform readiness primitive
// with a deadline heap, and a set of sources, each implementing
// [EventSource]. Each iteration of the loop blocks in the poll, then calls
// ProcessEvents on every ready source, in the order reported by the poll.
// Sources translate readiness into zero or more typed events, each of which
// is passed to the callback given to [InsertSource], along with exclusive,
// mutable access to the application state.
//
// Provided sources:
//   - [Channel] / [Sender]: an unbounded FIFO, fed from any goroutine
//   - [Timer]: periodic or one-shot deadlines, never queuing missed ticks
//   - [Ping]: a coalescing wake-up, with no payload
//   - [Bridge]: runs a blocking producer on its own OS thread, feeding a
//     [Channel]
//
// # Platform Support
//
// Readiness is implemented using platform-native mechanisms:
//   - Linux: epoll, with an eventfd for wake-ups
//   - macOS, FreeBSD: kqueue, with a non-blocking self-pipe for wake-ups
//
// Other platforms are not supported, and New fails with
// [ErrUnsupportedPlatform].
//
// # Thread Safety
//
// A Loop and its sources must only be used from the goroutine running the
// loop (or before it is run). The exceptions are:
//   - [LoopSignal], obtained via [Loop.Signal], is safe to use from any
//     goroutine
//   - [Sender] and [Ping.Ping] are safe to use from any goroutine
//
// Running more than one Loop concurrently, against the same terminal, is not
// supported, since the [Environment] typically mutates process-wide state.
//
// # Lifecycle
//
// [Loop.Run] enters the configured [Environment], polls and dispatches until
// stopped (or an error occurs), then always leaves the environment, even if
// a callback panics. Stopping is cooperative: [LoopSignal.Stop] sets a flag
// that is checked between callbacks, and wakes a loop blocked in poll.
//
// # Usage
//
//	loop, err := termloop.New[State](
//	    termloop.WithTickPeriod(time.Second/30),
//	    termloop.WithEnvironment(env),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sender, channel, err := termloop.NewChannel[string]()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if _, err := termloop.InsertSource(loop, channel, func(msg string, state *State) {
//	    state.Messages = append(state.Messages, msg)
//	}); err != nil {
//	    log.Fatal(err)
//	}
//
//	go produce(sender)
//
//	var state State
//	if err := loop.Run(&state, draw); err != nil {
//	    log.Fatal(err)
//	}
package termloop
