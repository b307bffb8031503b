package termloop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForwardChan_BatchesBurst(t *testing.T) {
	sender, channel, err := NewChannel[int]()
	require.NoError(t, err)
	defer channel.Close()

	ch := make(chan int, 10)
	for i := 0; i < 10; i++ {
		ch <- i
	}
	close(ch)

	require.NoError(t, ForwardChan[int](context.Background(), &ForwardConfig{MaxBatch: 4}, ch, sender))
	assert.Equal(t, 10, channel.Len())

	p := newTestPoll(t)
	require.NoError(t, channel.Register(p, &TokenFactory{key: 1}))
	events, err := p.poll(time.Second, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)

	var got []int
	_, err = channel.ProcessEvents(events[0].Readiness, events[0].Token, func(v int) { got = append(got, v) })
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
	require.NoError(t, channel.Unregister(p))
}

func TestForwardChan_MinBatchLinger(t *testing.T) {
	sender, channel, err := NewChannel[int]()
	require.NoError(t, err)
	defer channel.Close()

	ch := make(chan int)
	done := make(chan error, 1)
	go func() {
		done <- ForwardChan[int](context.Background(), &ForwardConfig{MinBatch: 3, Linger: 20 * time.Millisecond}, ch, sender)
	}()

	ch <- 1
	// below MinBatch, held until the linger elapses
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 0, channel.Len())
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, 1, channel.Len())

	close(ch)
	require.NoError(t, <-done)
}

func TestForwardChan_ContextCanceled(t *testing.T) {
	sender, channel, err := NewChannel[int]()
	require.NoError(t, err)
	defer channel.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, ForwardChan[int](ctx, nil, make(chan int), sender), context.Canceled)
}

func TestForwardChan_Disconnected(t *testing.T) {
	sender, channel, err := NewChannel[int]()
	require.NoError(t, err)
	require.NoError(t, channel.Close())

	ch := make(chan int, 1)
	ch <- 1
	assert.ErrorIs(t, ForwardChan[int](context.Background(), nil, ch, sender), ErrDisconnected)
}

func TestForwardChan_NilArguments(t *testing.T) {
	sender, channel, err := NewChannel[int]()
	require.NoError(t, err)
	defer channel.Close()

	//lint:ignore SA1012 testing nil context
	assert.PanicsWithValue(t, `termloop: nil context`, func() { _ = ForwardChan[int](nil, nil, make(chan int), sender) })
	assert.PanicsWithValue(t, `termloop: nil channel`, func() { _ = ForwardChan[int](context.Background(), nil, nil, sender) })
	assert.PanicsWithValue(t, `termloop: nil sender`, func() { _ = ForwardChan[int](context.Background(), nil, make(chan int), nil) })
}
