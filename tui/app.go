package tui

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"time"

	termloop "github.com/joeycumines/go-termloop"
	"github.com/joeycumines/go-termloop/terminal"
	"github.com/joeycumines/logiface"
	"golang.org/x/sys/unix"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
)

// App is a terminal application, driven by an ApplicationLoop.
type App interface {
	// Draw renders the current state into frame, once per frame.
	Draw(frame *Frame)

	// OnEvent handles input, key presses and resizes. The application may
	// request exit by stopping the signal.
	OnEvent(event terminal.Event, exit termloop.LoopSignal)
}

// ApplicationLoop runs an App in a terminal: input is decoded on a bridge
// thread, and dispatched to the app on the loop thread, interleaved with
// drawing at a fixed frame rate. The terminal is always restored on exit,
// including if the app panics.
//
// An ApplicationLoop is single use.
type ApplicationLoop[A App] struct {
	loop   *termloop.Loop[A]
	env    *terminal.Environment
	input  *termloop.Bridge[terminal.Event]
	frame  *Frame
	opts   *appOptions
	logger *logiface.Logger[logiface.Event]
	err    error
}

// NewApplicationLoop prepares (but does not start) an application loop.
func NewApplicationLoop[A App](opts ...AppOption) (*ApplicationLoop[A], error) {
	cfg, err := resolveAppOptions(opts)
	if err != nil {
		return nil, err
	}

	env, err := terminal.NewEnvironment(
		terminal.WithInput(cfg.input),
		terminal.WithOutput(cfg.output),
		terminal.WithAltScreen(cfg.altScreen),
		terminal.WithLogger(cfg.logger),
	)
	if err != nil {
		return nil, err
	}

	x := &ApplicationLoop[A]{
		env:    env,
		frame:  NewFrame(defaultWidth, defaultHeight),
		opts:   cfg,
		logger: cfg.logger,
	}

	x.loop, err = termloop.New[A](
		termloop.WithTickPeriod(time.Second/time.Duration(cfg.frameRate)),
		termloop.WithEnvironment(termloop.EnvironmentFuncs{
			EnterFunc: x.enter,
			LeaveFunc: env.Leave,
		}),
		termloop.WithLogger(cfg.logger),
	)
	if err != nil {
		return nil, err
	}

	return x, nil
}

// ExitSignal returns the stop capability of the loop, which may be used
// from any goroutine.
func (x *ApplicationLoop[A]) ExitSignal() termloop.LoopSignal {
	return x.loop.Signal()
}

// Run runs app until it (or anything else holding the ExitSignal) requests
// exit, or a fatal error occurs.
func (x *ApplicationLoop[A]) Run(app A) error {
	switch x.loop.State() {
	case termloop.StateAwake:
	case termloop.StateTerminated:
		return termloop.ErrLoopTerminated
	default:
		return termloop.ErrLoopAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if w, h, err := x.env.Size(); err == nil {
		x.frame.Resize(w, h)
	}

	if err := x.insertResize(ctx); err != nil {
		_ = x.loop.Close()
		return err
	}

	err := x.loop.Run(&app, x.draw)
	if x.err != nil {
		err = errors.Join(x.err, err)
	}
	return err
}

// Input returns the bridge reading the terminal, or nil if Run never got as
// far as entering the terminal. The bridge outlives Run until its read
// returns, see termloop.Bridge.
func (x *ApplicationLoop[A]) Input() *termloop.Bridge[terminal.Event] {
	return x.input
}

// enter runs on the loop thread, within Run. Input is only read once the
// terminal is in raw mode.
func (x *ApplicationLoop[A]) enter() error {
	if err := x.env.Enter(); err != nil {
		return err
	}
	if err := x.insertInput(); err != nil {
		_ = x.env.Leave()
		return err
	}
	return nil
}

func (x *ApplicationLoop[A]) insertInput() error {
	bridge, input, err := terminal.NewInputSource(
		terminal.WithInput(x.opts.input),
		terminal.WithLogger(x.logger),
	)
	if err != nil {
		return err
	}
	x.input = bridge

	exit := x.loop.Signal()
	_, err = termloop.InsertSource(x.loop, input, func(event terminal.Event, app *A) {
		if event.Kind == terminal.EventKey && event.Action != terminal.KeyPress {
			return
		}
		(*app).OnEvent(event, exit)
	})
	if err != nil {
		_ = input.Close()
	}
	return err
}

func (x *ApplicationLoop[A]) insertResize(ctx context.Context) error {
	sender, resize, err := termloop.NewChannel[os.Signal]()
	if err != nil {
		return err
	}

	exit := x.loop.Signal()
	_, err = termloop.InsertSource(x.loop, resize, func(_ os.Signal, app *A) {
		w, h, err := x.env.Size()
		if err != nil {
			x.logger.Warning().
				Err(err).
				Log(`tui: failed to get terminal size`)
			return
		}
		x.frame.Resize(w, h)
		(*app).OnEvent(terminal.Event{Kind: terminal.EventResize, Width: w, Height: h}, exit)
	})
	if err != nil {
		_ = resize.Close()
		_ = sender.Close()
		return err
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, unix.SIGWINCH)
	go func() {
		defer signal.Stop(ch)
		defer sender.Close()
		// one wake-up per burst of resizes
		_ = termloop.ForwardChan[os.Signal](ctx, &termloop.ForwardConfig{MinBatch: 8, Linger: 10 * time.Millisecond}, ch, sender)
	}()

	return nil
}

func (x *ApplicationLoop[A]) draw(app *A) {
	x.frame.Clear()
	(*app).Draw(x.frame)
	if err := x.frame.Render(x.env.Writer()); err != nil {
		x.logger.Err().
			Err(err).
			Log(`tui: render failed`)
		x.err = err
		x.loop.Signal().Stop()
	}
}
