package termloop

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrLoopAlreadyRunning is returned when Run or DispatchOnce is called on
	// a loop that is already running, including from within its own callbacks.
	ErrLoopAlreadyRunning = errors.New("termloop: loop is already running")

	// ErrLoopTerminated is returned when operations are attempted on a loop
	// that has been run or closed.
	ErrLoopTerminated = errors.New("termloop: loop has been terminated")

	// ErrSourceNotFound is returned for an unknown or already removed
	// RegistrationToken.
	ErrSourceNotFound = errors.New("termloop: source not found")

	// ErrTooManySources is returned when the configured source capacity is
	// exhausted, see WithMaxSources.
	ErrTooManySources = errors.New("termloop: too many sources")

	// ErrDisconnected is returned by Sender.Send once the receiving Channel
	// has been closed, or the sending handle itself has been closed.
	ErrDisconnected = errors.New("termloop: channel disconnected")

	// ErrInvalidPeriod is returned for non-positive timer durations.
	ErrInvalidPeriod = errors.New("termloop: invalid timer period")
)

// SetupError wraps a failure from Environment.Enter. Run returns it before
// any polling begins, and Environment.Leave is not called.
type SetupError struct {
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("termloop: environment setup failed: %v", e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// TeardownError wraps a failure from Environment.Leave. If Run was already
// returning an error, the two are joined, see [errors.Join].
type TeardownError struct {
	Err error
}

func (e *TeardownError) Error() string {
	return fmt.Sprintf("termloop: environment teardown failed: %v", e.Err)
}

func (e *TeardownError) Unwrap() error { return e.Err }

// RegistrationError indicates the backend rejected a source, during insert,
// enable, or a PostReregister.
type RegistrationError struct {
	Err   error
	Token RegistrationToken
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("termloop: source %d registration failed: %v", e.Token.key, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// PollError indicates the readiness backend itself failed. It is fatal.
type PollError struct {
	Err error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("termloop: poll failed: %v", e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }

// SourceError wraps an error returned by EventSource.ProcessEvents. It is
// fatal, sources are never resumed after a failed drain.
type SourceError struct {
	Err   error
	Token RegistrationToken
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("termloop: source %d failed: %v", e.Token.key, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }
