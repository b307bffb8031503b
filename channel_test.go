package termloop

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannel_CloneKeepsChannelAlive(t *testing.T) {
	loop, err := New[[]int]()
	require.NoError(t, err)
	defer loop.Close()

	sender, channel, err := NewChannel[int]()
	require.NoError(t, err)
	clone := sender.Clone()

	token, err := InsertSource(loop, channel, func(v int, out *[]int) {
		*out = append(*out, v)
	})
	require.NoError(t, err)

	require.NoError(t, sender.Close())
	require.NoError(t, sender.Close())
	assert.ErrorIs(t, sender.Send(1), ErrDisconnected)

	require.NoError(t, clone.Send(2))

	var out []int
	require.NoError(t, loop.DispatchOnce(time.Second, &out))
	assert.Equal(t, []int{2}, out)

	// still inserted
	require.NoError(t, loop.DisableSource(token))
	require.NoError(t, loop.EnableSource(token))

	require.NoError(t, clone.SendBatch(3, 4))
	require.NoError(t, clone.Close())
	require.NoError(t, loop.DispatchOnce(time.Second, &out))
	assert.Equal(t, []int{2, 3, 4}, out)

	// messages sent before the final close are delivered, then the channel
	// is removed
	assert.ErrorIs(t, loop.RemoveSource(token), ErrSourceNotFound)
}

func TestChannel_NilInterfaceValues(t *testing.T) {
	sender, channel, err := NewChannel[error]()
	require.NoError(t, err)
	defer sender.Close()

	p := newTestPoll(t)
	require.NoError(t, channel.Register(p, &TokenFactory{key: 1}))
	require.NoError(t, sender.SendBatch(nil, assert.AnError))

	events, err := p.poll(time.Second, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)

	var got []error
	_, err = channel.ProcessEvents(events[0].Readiness, events[0].Token, func(v error) { got = append(got, v) })
	require.NoError(t, err)
	assert.Equal(t, []error{nil, assert.AnError}, got)

	require.NoError(t, channel.Unregister(p))
	require.NoError(t, channel.Close())
	assert.ErrorIs(t, sender.Send(nil), ErrDisconnected)
}

func TestChannel_ConcurrentSendersPreserveOrder(t *testing.T) {
	const (
		senders = 4
		each    = 250
	)

	type msg struct{ from, seq int }

	loop, err := New[map[int][]int]()
	require.NoError(t, err)

	sender, channel, err := NewChannel[msg]()
	require.NoError(t, err)

	signal := loop.Signal()
	var received int
	_, err = InsertSource(loop, channel, func(m msg, out *map[int][]int) {
		(*out)[m.from] = append((*out)[m.from], m.seq)
		received++
		if received == senders*each {
			signal.Stop()
		}
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		s := sender.Clone()
		wg.Add(1)
		go func(from int) {
			defer wg.Done()
			defer s.Close()
			for seq := 0; seq < each; seq++ {
				if err := s.Send(msg{from, seq}); err != nil {
					t.Error(err)
					return
				}
			}
		}(i)
	}
	require.NoError(t, sender.Close())

	out := make(map[int][]int)
	require.NoError(t, waitRun(t, runAsync(loop, &out, nil), 10*time.Second))
	wg.Wait()

	require.Len(t, out, senders)
	for from, seqs := range out {
		require.Len(t, seqs, each, "sender %d", from)
		for i, seq := range seqs {
			if seq != i {
				t.Fatalf("sender %d: message %d delivered as %d", from, i, seq)
			}
		}
	}
}
