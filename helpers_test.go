package termloop

import (
	"bytes"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

var errBackendFailed = errors.New("backend failed")

// withBackend replaces the platform backend, for fault injection.
func withBackend(f func() (backend, error)) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.backend = f
		return nil
	}}
}

// faultyBackend wraps the platform backend, failing every wait after the
// first failAfter.
type faultyBackend struct {
	backend
	failAfter int
	waits     atomic.Int32
	closed    atomic.Bool
}

func (x *faultyBackend) wait(events []rawEvent, timeout time.Duration) (int, error) {
	if int(x.waits.Add(1)) > x.failAfter {
		return 0, errBackendFailed
	}
	return x.backend.wait(events, timeout)
}

func (x *faultyBackend) close() error {
	x.closed.Store(true)
	return x.backend.close()
}

func newFaultyBackend(t *testing.T, failAfter int) *faultyBackend {
	t.Helper()
	b, err := newBackend()
	if err != nil {
		t.Fatal(err)
	}
	return &faultyBackend{backend: b, failAfter: failAfter}
}

// nopBackend never reports fd readiness, which is sufficient for timers.
type nopBackend struct{}

func (nopBackend) add(int, Interest, Mode) error    { return nil }
func (nopBackend) modify(int, Interest, Mode) error { return nil }
func (nopBackend) remove(int) error                 { return nil }
func (nopBackend) close() error                     { return nil }

func (nopBackend) wait(_ []rawEvent, timeout time.Duration) (int, error) {
	if timeout > 0 {
		time.Sleep(timeout)
	}
	return 0, nil
}

// recordingEnv counts calls to Enter and Leave.
type recordingEnv struct {
	enterErr error
	leaveErr error
	enters   atomic.Int32
	leaves   atomic.Int32
}

func (x *recordingEnv) Enter() error {
	x.enters.Add(1)
	return x.enterErr
}

func (x *recordingEnv) Leave() error {
	x.leaves.Add(1)
	return x.leaveErr
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (x *lockedBuffer) Write(p []byte) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.Write(p)
}

func (x *lockedBuffer) String() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.String()
}

func newTestLogger(w *lockedBuffer) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w), stumpy.WithTimeField(``)),
		stumpy.L.WithLevel(logiface.LevelTrace),
	).Logger()
}

// runAsync runs the loop on a new goroutine, returning a channel receiving
// the result of Run.
func runAsync[D any](l *Loop[D], data *D, onTick func(*D)) <-chan error {
	ch := make(chan error, 1)
	go func() {
		ch <- l.Run(data, onTick)
	}()
	return ch
}

func waitRun(t *testing.T, ch <-chan error, timeout time.Duration) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(timeout):
		t.Fatal("timed out waiting for Run to return")
		return nil
	}
}
