//go:build darwin || freebsd

package termloop

import (
	"time"

	"golang.org/x/sys/unix"
)

// kqueueBackend implements backend using kqueue (Darwin/BSD).
type kqueueBackend struct {
	kq       int
	eventBuf []unix.Kevent_t
}

func newBackend() (backend, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)
	return &kqueueBackend{kq: kq}, nil
}

func (b *kqueueBackend) add(fd int, interest Interest, mode Mode) error {
	return b.apply(fd, interest, mode, false)
}

func (b *kqueueBackend) modify(fd int, interest Interest, mode Mode) error {
	return b.apply(fd, interest, mode, true)
}

// apply installs one filter per interest flag, deleting the unwanted filter
// when modifying an existing registration.
func (b *kqueueBackend) apply(fd int, interest Interest, mode Mode, existing bool) error {
	flags := unix.EV_ADD | unix.EV_ENABLE
	switch mode {
	case Edge:
		flags |= unix.EV_CLEAR
	case OneShot:
		flags |= unix.EV_ONESHOT
	}

	var changes []unix.Kevent_t
	for _, f := range [...]struct {
		filter int
		want   bool
	}{
		{unix.EVFILT_READ, interest.Readable},
		{unix.EVFILT_WRITE, interest.Writable},
	} {
		var kev unix.Kevent_t
		switch {
		case f.want:
			unix.SetKevent(&kev, fd, f.filter, flags)
		case existing:
			unix.SetKevent(&kev, fd, f.filter, unix.EV_DELETE)
		default:
			continue
		}
		changes = append(changes, kev)
	}

	for _, kev := range changes {
		if _, err := unix.Kevent(b.kq, []unix.Kevent_t{kev}, nil, nil); err != nil {
			if kev.Flags&unix.EV_DELETE != 0 && err == unix.ENOENT {
				continue
			}
			return err
		}
	}
	return nil
}

func (b *kqueueBackend) remove(fd int) error {
	for _, filter := range [...]int{unix.EVFILT_READ, unix.EVFILT_WRITE} {
		var kev unix.Kevent_t
		unix.SetKevent(&kev, fd, filter, unix.EV_DELETE)
		if _, err := unix.Kevent(b.kq, []unix.Kevent_t{kev}, nil, nil); err != nil && err != unix.ENOENT {
			return err
		}
	}
	return nil
}

func (b *kqueueBackend) wait(events []rawEvent, timeout time.Duration) (int, error) {
	if len(b.eventBuf) < len(events) {
		b.eventBuf = make([]unix.Kevent_t, len(events))
	}
	var ts *unix.Timespec
	if timeout >= 0 {
		t := unix.NsecToTimespec(int64(timeout))
		ts = &t
	}
	n, err := unix.Kevent(b.kq, nil, b.eventBuf[:len(events)], ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		kev := &b.eventBuf[i]
		var r Readiness
		switch int(kev.Filter) {
		case unix.EVFILT_READ:
			r.Readable = true
		case unix.EVFILT_WRITE:
			r.Writable = true
		}
		if kev.Flags&unix.EV_ERROR != 0 {
			r.Error = true
		}
		events[i] = rawEvent{fd: int(kev.Ident), readiness: r}
	}
	return n, nil
}

func (b *kqueueBackend) close() error {
	return unix.Close(b.kq)
}
