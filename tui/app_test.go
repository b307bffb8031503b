//go:build linux || darwin || freebsd

package tui

import (
	"bytes"
	"context"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/creack/pty"
	termloop "github.com/joeycumines/go-termloop"
	"github.com/joeycumines/go-termloop/terminal"
	"github.com/pkg/term/termios"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type counterApp struct {
	count   int
	keys    []string
	resizes []string
	resized chan struct{}
}

func (x *counterApp) Draw(frame *Frame) {
	frame.SetLine(0, "count: "+strconv.Itoa(x.count))
}

func (x *counterApp) OnEvent(event terminal.Event, exit termloop.LoopSignal) {
	if event.Kind == terminal.EventResize {
		x.resizes = append(x.resizes, event.String())
		if x.resized != nil {
			select {
			case x.resized <- struct{}{}:
			default:
			}
		}
		return
	}
	x.keys = append(x.keys, event.String())
	switch {
	case event.IsRune('q'):
		exit.Stop()
	case event.IsRune('j'), event.IsKey(terminal.KeyUp):
		x.count++
	case event.IsRune('k'), event.IsKey(terminal.KeyDown):
		x.count--
	}
}

type ptyOutput struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (x *ptyOutput) String() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.String()
}

func (x *ptyOutput) waitFor(t *testing.T, substr string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(x.String(), substr) {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %q in %q", substr, x.String())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func openPTY(t *testing.T) (ptm, pts *os.File, out *ptyOutput) {
	t.Helper()
	ptm, pts, err := pty.Open()
	if err != nil {
		t.Skipf("pty unavailable: %v", err)
	}
	require.NoError(t, pty.Setsize(ptm, &pty.Winsize{Rows: 10, Cols: 40}))
	out = &ptyOutput{}
	go func() {
		buf := make([]byte, 1024)
		for {
			n, err := ptm.Read(buf)
			if n > 0 {
				out.mu.Lock()
				out.buf.Write(buf[:n])
				out.mu.Unlock()
			}
			if err != nil {
				return
			}
		}
	}()
	t.Cleanup(func() {
		_ = ptm.Close()
		_ = pts.Close()
	})
	return ptm, pts, out
}

func TestApplicationLoop_Counter(t *testing.T) {
	ptm, pts, out := openPTY(t)

	before, err := termios.Tcgetattr(pts.Fd())
	require.NoError(t, err)

	app, err := NewApplicationLoop[*counterApp](
		WithInput(pts),
		WithOutput(pts),
		WithFrameRate(100),
	)
	require.NoError(t, err)

	state := &counterApp{}
	done := make(chan error, 1)
	go func() { done <- app.Run(state) }()

	out.waitFor(t, "count: 0")

	_, err = io.WriteString(ptm, "jj\x1b[A")
	require.NoError(t, err)
	out.waitFor(t, "count: 3")

	_, err = io.WriteString(ptm, "k")
	require.NoError(t, err)
	out.waitFor(t, "count: 2")

	_, err = io.WriteString(ptm, "q")
	require.NoError(t, err)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("application did not exit")
	}

	assert.Equal(t, 2, state.count)
	assert.Equal(t, []string{"j", "j", "up", "k", "q"}, state.keys)

	// restored
	after, err := termios.Tcgetattr(pts.Fd())
	require.NoError(t, err)
	assert.Equal(t, before.Lflag, after.Lflag)
	assert.NotZero(t, after.Lflag&unix.ICANON)
	out.waitFor(t, "\x1b[?1049l")

	// the input bridge ends on its next read, once the loop is gone
	require.NotNil(t, app.Input())
	_, err = io.WriteString(ptm, "x\n")
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, app.Input().Wait(ctx))

	assert.ErrorIs(t, app.Run(state), termloop.ErrLoopTerminated)
}

func TestApplicationLoop_ExitSignal(t *testing.T) {
	_, pts, _ := openPTY(t)

	app, err := NewApplicationLoop[*counterApp](WithInput(pts), WithOutput(pts), WithAltScreen(false))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- app.Run(&counterApp{}) }()

	time.Sleep(50 * time.Millisecond)
	app.ExitSignal().Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("application did not exit")
	}
}

func TestApplicationLoop_Resize(t *testing.T) {
	ptm, pts, out := openPTY(t)

	app, err := NewApplicationLoop[*counterApp](WithInput(pts), WithOutput(pts), WithFrameRate(100))
	require.NoError(t, err)

	state := &counterApp{resized: make(chan struct{}, 1)}
	done := make(chan error, 1)
	go func() { done <- app.Run(state) }()
	out.waitFor(t, "count: 0")

	require.NoError(t, pty.Setsize(ptm, &pty.Winsize{Rows: 12, Cols: 50}))
	// the pty delivers SIGWINCH to the foreground process group, which a
	// test binary is not necessarily part of
	require.NoError(t, unix.Kill(os.Getpid(), unix.SIGWINCH))

	select {
	case <-state.resized:
	case <-time.After(5 * time.Second):
		t.Fatal("resize was not delivered")
	}

	app.ExitSignal().Stop()
	require.NoError(t, <-done)
	assert.Contains(t, state.resizes, "resize(50x12)")
	w, h := app.frame.Size()
	assert.Equal(t, 50, w)
	assert.Equal(t, 12, h)
}

func TestApplicationLoop_NotTerminal(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	app, err := NewApplicationLoop[*counterApp](WithInput(r), WithOutput(w))
	require.NoError(t, err)

	err = app.Run(&counterApp{})
	assert.ErrorIs(t, err, terminal.ErrNotTerminal)
	var setupErr *termloop.SetupError
	assert.ErrorAs(t, err, &setupErr)

	// nothing was left reading the input
	assert.Nil(t, app.Input())
	assert.ErrorIs(t, app.Run(&counterApp{}), termloop.ErrLoopTerminated)
	assert.Nil(t, app.Input())
}

func TestAppOptions(t *testing.T) {
	_, err := NewApplicationLoop[*counterApp](WithFrameRate(0))
	assert.Error(t, err)
	_, err = NewApplicationLoop[*counterApp](WithInput(nil))
	assert.Error(t, err)
	_, err = NewApplicationLoop[*counterApp](WithOutput(nil))
	assert.Error(t, err)
}
