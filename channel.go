package termloop

import (
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
)

// channelState is shared between all Sender handles and the Channel.
type channelState[T any] struct {
	mu             sync.Mutex
	queue          *queue.Queue
	ping           *Ping
	senders        int
	receiverClosed bool
}

// Sender is the sending half of a channel. It may be used from any
// goroutine. Each handle (see Sender.Clone) must be closed, once no longer
// needed, for the receiving Channel to observe the end of the stream.
type Sender[T any] struct {
	state  *channelState[T]
	closed atomic.Bool
}

// Channel is the receiving half of a channel, implementing EventSource[T].
//
// Messages are delivered in send order. Once every Sender has been closed,
// and the buffered messages have been delivered, the channel reports
// PostRemove. The end of the stream is not delivered to the callback.
type Channel[T any] struct {
	state *channelState[T]
	token Token
}

// NewChannel creates an unbounded channel, returning the first Sender handle
// and the Channel, which is expected to be inserted into a Loop.
func NewChannel[T any]() (*Sender[T], *Channel[T], error) {
	ping, err := NewPing()
	if err != nil {
		return nil, nil, err
	}
	state := &channelState[T]{
		queue:   queue.New(),
		ping:    ping,
		senders: 1,
	}
	return &Sender[T]{state: state}, &Channel[T]{state: state}, nil
}

// Send enqueues value, waking the loop. It never blocks on the receiver,
// and fails with ErrDisconnected if the Channel or this handle is closed.
func (s *Sender[T]) Send(value T) error {
	return s.SendBatch(value)
}

// SendBatch enqueues values in order, as a single wake-up.
func (s *Sender[T]) SendBatch(values ...T) error {
	if s.closed.Load() {
		return ErrDisconnected
	}
	st := s.state
	st.mu.Lock()
	if st.receiverClosed {
		st.mu.Unlock()
		return ErrDisconnected
	}
	for _, v := range values {
		st.queue.Add(v)
	}
	st.mu.Unlock()
	return st.ping.Ping()
}

// Clone returns a new, independent, handle to the same channel.
func (s *Sender[T]) Clone() *Sender[T] {
	st := s.state
	st.mu.Lock()
	st.senders++
	st.mu.Unlock()
	return &Sender[T]{state: st}
}

// Close drops this handle. Closing an already closed handle is a no-op.
func (s *Sender[T]) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	st := s.state
	st.mu.Lock()
	st.senders--
	last := st.senders == 0
	st.mu.Unlock()
	if last {
		// receiver may already be gone, nothing to wake in that case
		_ = st.ping.Ping()
	}
	return nil
}

// Register implements EventSource.
func (c *Channel[T]) Register(poll *Poll, factory *TokenFactory) error {
	c.token = factory.Token()
	return poll.Register(c.state.ping.readFD, InterestRead, Level, c.token)
}

// Reregister implements EventSource.
func (c *Channel[T]) Reregister(poll *Poll, factory *TokenFactory) error {
	c.token = factory.Token()
	return poll.Reregister(c.state.ping.readFD, InterestRead, Level, c.token)
}

// Unregister implements EventSource.
func (c *Channel[T]) Unregister(poll *Poll) error {
	return poll.Unregister(c.state.ping.readFD)
}

// ProcessEvents implements EventSource. It delivers every message that was
// buffered at the time of the call. Messages sent concurrently re-arm the
// ping, and are delivered on the next poll.
func (c *Channel[T]) ProcessEvents(_ Readiness, token Token, callback func(T)) (PostAction, error) {
	if token != c.token {
		return PostContinue, nil
	}
	st := c.state
	if err := st.ping.drain(); err != nil {
		return PostContinue, err
	}

	st.mu.Lock()
	n := st.queue.Length()
	st.mu.Unlock()

	for i := 0; i < n; i++ {
		st.mu.Lock()
		// nil interface values are stored as nil
		value, _ := st.queue.Remove().(T)
		st.mu.Unlock()
		callback(value)
	}

	st.mu.Lock()
	disconnected := st.senders == 0 && st.queue.Length() == 0
	st.mu.Unlock()
	if disconnected {
		return PostRemove, nil
	}
	return PostContinue, nil
}

// Len returns the number of buffered messages.
func (c *Channel[T]) Len() int {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	return c.state.queue.Length()
}

// Close drops the receiver, discarding buffered messages, and causing
// subsequent sends to fail. It must only be called once the channel has
// been unregistered, which the Loop does automatically.
func (c *Channel[T]) Close() error {
	st := c.state
	st.mu.Lock()
	if st.receiverClosed {
		st.mu.Unlock()
		return nil
	}
	st.receiverClosed = true
	for st.queue.Length() > 0 {
		st.queue.Remove()
	}
	st.mu.Unlock()
	return st.ping.Close()
}
