// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package termloop

import (
	"fmt"
	"time"

	"github.com/joeycumines/logiface"
)

// loopOptions holds configuration options for Loop creation.
type loopOptions struct {
	environment Environment
	logger      *logiface.Logger[logiface.Event]
	tickPeriod  time.Duration
	maxSources  int
	backend     func() (backend, error)
}

// --- Loop Options ---

// LoopOption configures a Loop instance.
type LoopOption interface {
	applyLoop(*loopOptions) error
}

// loopOptionImpl implements LoopOption.
type loopOptionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (l *loopOptionImpl) applyLoop(opts *loopOptions) error {
	return l.applyLoopFunc(opts)
}

// WithTickPeriod sets the period of the per-tick callback passed to
// Loop.Run. A zero period (the default) disables the tick timer, in which
// case Run blocks in poll until a source becomes ready.
func WithTickPeriod(period time.Duration) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if period < 0 {
			return fmt.Errorf("%w: %v", ErrInvalidPeriod, period)
		}
		opts.tickPeriod = period
		return nil
	}}
}

// WithEnvironment sets the setup/teardown pair invoked by Loop.Run.
// Enter is called once before polling begins, and Leave is called once on
// every exit path after a successful Enter.
func WithEnvironment(env Environment) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.environment = env
		return nil
	}}
}

// WithLogger configures structured logging. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithMaxSources limits the number of concurrently inserted sources,
// including the internal tick timer. Zero (the default) means unlimited.
func WithMaxSources(n int) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if n < 0 {
			return fmt.Errorf("termloop: invalid max sources: %d", n)
		}
		opts.maxSources = n
		return nil
	}}
}

// resolveLoopOptions applies LoopOption instances to loopOptions.
func resolveLoopOptions(opts []LoopOption) (*loopOptions, error) {
	cfg := &loopOptions{
		backend: newBackend,
	}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
