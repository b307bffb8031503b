package termloop

import (
	"sync/atomic"
)

// LoopState represents the lifecycle state of a [Loop].
//
// State Machine:
//
//	StateAwake → StateRunning          [Run()]
//	StateAwake → StateTerminated       [Close()]
//	StateRunning → StateTerminated     [Run() returns]
//	StateTerminated → (terminal)
//
// A loop is single use, there is no transition out of StateTerminated.
type LoopState uint64

const (
	// StateAwake indicates the loop has been created but not started.
	StateAwake LoopState = iota
	// StateRunning indicates Run is executing.
	StateRunning
	// StateTerminated indicates the loop has released its resources.
	StateTerminated
)

// String returns a human-readable representation of the state.
func (s LoopState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free state holder.
type fastState struct {
	v atomic.Uint64
}

func (s *fastState) Load() LoopState {
	return LoopState(s.v.Load())
}

// Store is only valid for the irreversible StateTerminated.
func (s *fastState) Store(state LoopState) {
	s.v.Store(uint64(state))
}

// TryTransition attempts to atomically transition from one state to another.
func (s *fastState) TryTransition(from, to LoopState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}
