package termloop

import (
	"context"
	"time"
)

// ForwardConfig models optional configuration for ForwardChan.
type ForwardConfig struct {
	// MaxBatch is the maximum number of values forwarded per wake-up.
	// A value < 0 disables the limit.
	//
	// Defaults to 64, if 0.
	MaxBatch int

	// MinBatch is the target number of values to gather before forwarding.
	// Once Linger has elapsed, since the first value of the batch was
	// received, the batch is forwarded regardless.
	//
	// Defaults to 1, if 0.
	MinBatch int

	// Linger is the maximum time the first value of a batch waits for the
	// batch to reach MinBatch.
	//
	// Defaults to 5ms, if 0.
	Linger time.Duration
}

// ForwardChan adapts a native Go channel to a loop Channel, receiving values
// from ch, and sending them to sender in batches, such that a burst of
// values costs a single wake-up of the loop.
//
// ForwardChan blocks until ch is closed (returning nil), ctx is canceled
// (returning its error), or the loop side disconnects (returning
// ErrDisconnected). The sender is not closed, which is the responsibility of
// the caller, e.g. via defer.
//
// Providing a nil ctx, ch, or sender will cause a panic.
func ForwardChan[T any](ctx context.Context, cfg *ForwardConfig, ch <-chan T, sender *Sender[T]) error {
	if ctx == nil {
		panic(`termloop: nil context`)
	}
	if ch == nil {
		panic(`termloop: nil channel`)
	}
	if sender == nil {
		panic(`termloop: nil sender`)
	}

	b := batcher[T]{
		maxBatch: 64,
		minBatch: 1,
		linger:   5 * time.Millisecond,
	}
	if cfg != nil {
		if cfg.MaxBatch != 0 {
			b.maxBatch = cfg.MaxBatch
		}
		if cfg.MinBatch != 0 {
			b.minBatch = cfg.MinBatch
		}
		if cfg.Linger != 0 {
			b.linger = cfg.Linger
		}
	}

	for {
		open, err := b.receive(ctx, ch)
		if len(b.batch) != 0 {
			if err := sender.SendBatch(b.batch...); err != nil {
				return err
			}
			clear(b.batch)
			b.batch = b.batch[:0]
		}
		if err != nil {
			return err
		}
		if !open {
			return nil
		}
	}
}

type batcher[T any] struct {
	batch    []T
	maxBatch int
	minBatch int
	linger   time.Duration
}

// receive blocks for the first value, then gathers up to minBatch values
// (bounded by linger), then whatever else is immediately available, up to
// maxBatch. It reports false if ch was closed.
func (x *batcher[T]) receive(ctx context.Context, ch <-chan T) (bool, error) {
	if err := ctx.Err(); err != nil {
		return true, err
	}

	full := func() bool {
		return x.maxBatch >= 0 && len(x.batch) >= x.maxBatch
	}

	var lingerCh <-chan time.Time

MinLoop:
	for !full() && (len(x.batch) == 0 || len(x.batch) < x.minBatch) {
		select {
		case <-ctx.Done():
			return true, ctx.Err()

		case <-lingerCh:
			break MinLoop

		case value, ok := <-ch:
			if !ok {
				return false, nil
			}
			x.batch = append(x.batch, value)
			if len(x.batch) == 1 && x.linger > 0 {
				timer := time.NewTimer(x.linger)
				//goland:noinspection GoDeferInLoop
				defer timer.Stop()
				lingerCh = timer.C
			}
		}
	}

	for !full() {
		select {
		case value, ok := <-ch:
			if !ok {
				return false, nil
			}
			x.batch = append(x.batch, value)
		default:
			return true, nil
		}
	}

	return true, nil
}
