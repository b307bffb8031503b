package termloop

import (
	"encoding/binary"
	"sync"

	"golang.org/x/sys/unix"
)

// Ping is a cross-goroutine wake primitive: any goroutine may call
// Ping.Ping, which makes the Ping readable to the Poll it is registered
// with, until the loop drains it. Multiple pings before a drain coalesce
// into one notification.
//
// Ping implements EventSource[struct{}], see also NewPing.
type Ping struct {
	mu     sync.RWMutex
	readFD int
	// writeFD equals readFD, where the platform provides eventfd
	writeFD int
	token   Token
	closed  bool
}

// NewPing creates a Ping, backed by an eventfd (Linux) or a non-blocking
// pipe (Darwin/BSD).
func NewPing() (*Ping, error) {
	r, w, err := createWakeFd()
	if err != nil {
		return nil, err
	}
	return &Ping{readFD: r, writeFD: w}, nil
}

// Ping wakes the loop. It is safe to call from any goroutine, and after
// Close, in which case it returns ErrDisconnected.
func (p *Ping) Ping() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrDisconnected
	}

	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)

	_, err := unix.Write(p.writeFD, buf[:])
	if err == unix.EAGAIN {
		// already pending
		return nil
	}
	return err
}

// drain resets the readiness of the Ping.
func (p *Ping) drain() error {
	var buf [64]byte
	for {
		_, err := unix.Read(p.readFD, buf[:])
		switch err {
		case nil:
			continue
		case unix.EAGAIN:
			return nil
		case unix.EINTR:
			continue
		default:
			return err
		}
	}
}

// Register implements EventSource.
func (p *Ping) Register(poll *Poll, factory *TokenFactory) error {
	p.token = factory.Token()
	return poll.Register(p.readFD, InterestRead, Level, p.token)
}

// Reregister implements EventSource.
func (p *Ping) Reregister(poll *Poll, factory *TokenFactory) error {
	p.token = factory.Token()
	return poll.Reregister(p.readFD, InterestRead, Level, p.token)
}

// Unregister implements EventSource.
func (p *Ping) Unregister(poll *Poll) error {
	return poll.Unregister(p.readFD)
}

// ProcessEvents implements EventSource. Any number of pings since the last
// drain result in a single callback.
func (p *Ping) ProcessEvents(_ Readiness, token Token, callback func(struct{})) (PostAction, error) {
	if token != p.token {
		return PostContinue, nil
	}
	if err := p.drain(); err != nil {
		return PostContinue, err
	}
	callback(struct{}{})
	return PostContinue, nil
}

// Close releases the file descriptor(s). It must only be called once the
// Ping has been unregistered.
func (p *Ping) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	err := unix.Close(p.readFD)
	if p.writeFD != p.readFD {
		if e := unix.Close(p.writeFD); err == nil {
			err = e
		}
	}
	return err
}
