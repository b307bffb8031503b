package termloop

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/joeycumines/logiface"
)

// BridgeConfig models the behavior of a Bridge. Read is required.
type BridgeConfig[T any] struct {
	// Setup is optional, and is called once, on the bridge thread, before
	// the first Read. If it fails, NewBridge returns the error, and neither
	// Read nor Teardown are called.
	Setup func() error

	// Read blocks until the next value is available. Any error ends the
	// bridge, which closes its Sender, disconnecting the Channel.
	Read func() (T, error)

	// Teardown is optional, and is called once, on the bridge thread, after
	// the final Read, on every exit path (including a panic in Read).
	Teardown func() error

	// Logger is optional.
	Logger *logiface.Logger[logiface.Event]
}

// Bridge runs a blocking producer (e.g. a terminal read) on a dedicated,
// OS-thread locked goroutine, forwarding each value to the loop via a
// Channel. The producer owns its thread-local state, which is set up and
// torn down on that thread.
//
// The thread is detached: the loop never waits for it, since a producer
// blocked in a read may not return until its input does. Done and Wait are
// available for callers that can unblock the producer.
type Bridge[T any] struct {
	done chan struct{}
	err  error
}

// NewBridge starts a bridge, returning once Setup has completed. The
// returned Channel is expected to be inserted into a Loop.
func NewBridge[T any](cfg BridgeConfig[T]) (*Bridge[T], *Channel[T], error) {
	if cfg.Read == nil {
		panic(`termloop: nil bridge read`)
	}

	sender, channel, err := NewChannel[T]()
	if err != nil {
		return nil, nil, err
	}

	b := &Bridge[T]{done: make(chan struct{})}
	setup := make(chan error, 1)

	go b.run(cfg, sender, setup)

	if err := <-setup; err != nil {
		<-b.done
		_ = channel.Close()
		return nil, nil, err
	}

	return b, channel, nil
}

func (b *Bridge[T]) run(cfg BridgeConfig[T], sender *Sender[T], setup chan<- error) {
	defer close(b.done)
	defer func() {
		// the end of the stream, observed by the loop as PostRemove
		_ = sender.Close()
	}()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if cfg.Setup != nil {
		if err := cfg.Setup(); err != nil {
			cfg.Logger.Warning().
				Err(err).
				Log(`termloop: bridge setup failed`)
			b.err = err
			setup <- err
			return
		}
	}
	setup <- nil

	defer func() {
		if r := recover(); r != nil {
			b.err = fmt.Errorf("termloop: bridge read panic: %v", r)
			cfg.Logger.Err().
				Err(b.err).
				Log(`termloop: bridge read panicked`)
		}
		if cfg.Teardown != nil {
			if err := cfg.Teardown(); err != nil {
				cfg.Logger.Warning().
					Err(err).
					Log(`termloop: bridge teardown failed`)
				if b.err == nil {
					b.err = err
				}
			}
		}
		cfg.Logger.Debug().Log(`termloop: bridge exited`)
	}()

	for {
		value, err := cfg.Read()
		if err != nil {
			b.err = err
			cfg.Logger.Debug().
				Err(err).
				Log(`termloop: bridge read ended`)
			return
		}
		if err := sender.Send(value); err != nil {
			if !errors.Is(err, ErrDisconnected) {
				b.err = err
			}
			cfg.Logger.Debug().
				Err(err).
				Log(`termloop: bridge receiver gone`)
			return
		}
	}
}

// Done returns a channel that is closed once the bridge thread has exited.
func (b *Bridge[T]) Done() <-chan struct{} {
	return b.done
}

// Wait blocks until the bridge thread exits, returning the error that ended
// it (the read error, in most cases), or until ctx is done.
func (b *Bridge[T]) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return b.err
	}
}
