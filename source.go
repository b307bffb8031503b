package termloop

// Token identifies one registration of an event source to the Poll. Tokens
// are assigned by the Loop, via a TokenFactory, and are unique among the
// currently registered sources. A slot reused by a later source carries a
// new generation, so readiness reported for a removed source is never
// delivered to its successor.
type Token struct {
	key uint32
	gen uint32
	sub uint32
}

// TokenFactory allocates tokens for a single source, during (re)registration.
// Reregistration hands the source a fresh factory, so a source that allocates
// its tokens in a consistent order will receive the same tokens again.
type TokenFactory struct {
	key  uint32
	gen  uint32
	next uint32
}

// Token allocates a fresh token.
func (f *TokenFactory) Token() Token {
	t := Token{key: f.key, gen: f.gen, sub: f.next}
	f.next++
	return t
}

// PostAction is returned by EventSource.ProcessEvents, to instruct the Loop
// how to proceed with the source.
type PostAction uint8

const (
	// PostContinue leaves the source registered, as-is.
	PostContinue PostAction = iota
	// PostReregister calls EventSource.Reregister, e.g. to re-arm a OneShot
	// registration.
	PostReregister
	// PostDisable unregisters the source, leaving it inserted, so it may be
	// re-enabled with Loop.EnableSource.
	PostDisable
	// PostRemove unregisters and removes the source from the Loop.
	PostRemove
)

// String returns a human-readable representation of the action.
func (a PostAction) String() string {
	switch a {
	case PostContinue:
		return "Continue"
	case PostReregister:
		return "Reregister"
	case PostDisable:
		return "Disable"
	case PostRemove:
		return "Remove"
	default:
		return "Unknown"
	}
}

// EventSource is the contract implemented by anything that produces events
// for a Loop: timers, channels, pings, or user-defined sources.
//
// All methods are called from the loop goroutine only. Sources that also
// implement io.Closer are closed after they are removed from the loop, or
// when the loop terminates.
type EventSource[E any] interface {
	// Register installs interest in the poll, allocating tokens from factory.
	Register(poll *Poll, factory *TokenFactory) error

	// Reregister re-installs interest, e.g. after the interest changed, or to
	// re-arm a OneShot registration.
	Reregister(poll *Poll, factory *TokenFactory) error

	// Unregister removes all interest installed by the source.
	Unregister(poll *Poll) error

	// ProcessEvents is called when the poll reports one of the source's
	// tokens ready. It must drain all events available for this
	// notification, calling callback once per event, in arrival order.
	// Any error is fatal to the loop.
	ProcessEvents(readiness Readiness, token Token, callback func(event E)) (PostAction, error)
}
