//go:build linux

package termloop

import (
	"time"

	"golang.org/x/sys/unix"
)

// epollBackend implements backend using epoll (Linux).
type epollBackend struct {
	epfd     int
	eventBuf []unix.EpollEvent
}

func newBackend() (backend, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollBackend{epfd: epfd}, nil
}

func (b *epollBackend) add(fd int, interest Interest, mode Mode) error {
	ev := &unix.EpollEvent{
		Events: eventsToEpoll(interest, mode),
		Fd:     int32(fd),
	}
	return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_ADD, fd, ev)
}

func (b *epollBackend) modify(fd int, interest Interest, mode Mode) error {
	ev := &unix.EpollEvent{
		Events: eventsToEpoll(interest, mode),
		Fd:     int32(fd),
	}
	return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_MOD, fd, ev)
}

func (b *epollBackend) remove(fd int) error {
	return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (b *epollBackend) wait(events []rawEvent, timeout time.Duration) (int, error) {
	if len(b.eventBuf) < len(events) {
		b.eventBuf = make([]unix.EpollEvent, len(events))
	}
	n, err := unix.EpollWait(b.epfd, b.eventBuf[:len(events)], waitMillis(timeout))
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		events[i] = rawEvent{
			fd:        int(b.eventBuf[i].Fd),
			readiness: epollToReadiness(b.eventBuf[i].Events),
		}
	}
	return n, nil
}

func (b *epollBackend) close() error {
	return unix.Close(b.epfd)
}

// eventsToEpoll converts an Interest and Mode to epoll event flags.
func eventsToEpoll(interest Interest, mode Mode) uint32 {
	var epollEvents uint32
	if interest.Readable {
		epollEvents |= unix.EPOLLIN
	}
	if interest.Writable {
		epollEvents |= unix.EPOLLOUT
	}
	switch mode {
	case Edge:
		epollEvents |= unix.EPOLLET
	case OneShot:
		epollEvents |= unix.EPOLLONESHOT
	}
	return epollEvents
}

// epollToReadiness converts epoll event flags to Readiness.
func epollToReadiness(epollEvents uint32) Readiness {
	return Readiness{
		Readable: epollEvents&(unix.EPOLLIN|unix.EPOLLHUP) != 0,
		Writable: epollEvents&unix.EPOLLOUT != 0,
		Error:    epollEvents&unix.EPOLLERR != 0,
	}
}
