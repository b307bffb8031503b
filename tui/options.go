package tui

import (
	"errors"
	"fmt"
	"os"

	"github.com/joeycumines/logiface"
)

type appOptions struct {
	input     *os.File
	output    *os.File
	logger    *logiface.Logger[logiface.Event]
	frameRate int
	altScreen bool
}

// AppOption configures an ApplicationLoop.
type AppOption interface {
	applyApp(*appOptions) error
}

type appOptionImpl struct {
	applyAppFunc func(*appOptions) error
}

func (o *appOptionImpl) applyApp(opts *appOptions) error {
	return o.applyAppFunc(opts)
}

// WithFrameRate sets the number of frames drawn per second, defaults to 30.
func WithFrameRate(fps int) AppOption {
	return &appOptionImpl{func(opts *appOptions) error {
		if fps <= 0 {
			return fmt.Errorf("tui: invalid frame rate: %d", fps)
		}
		opts.frameRate = fps
		return nil
	}}
}

// WithInput sets the terminal input, defaults to os.Stdin.
func WithInput(f *os.File) AppOption {
	return &appOptionImpl{func(opts *appOptions) error {
		if f == nil {
			return errors.New("tui: nil input")
		}
		opts.input = f
		return nil
	}}
}

// WithOutput sets the terminal output, defaults to os.Stdout.
func WithOutput(f *os.File) AppOption {
	return &appOptionImpl{func(opts *appOptions) error {
		if f == nil {
			return errors.New("tui: nil output")
		}
		opts.output = f
		return nil
	}}
}

// WithLogger configures logging, for the application loop and everything it
// wires up. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) AppOption {
	return &appOptionImpl{func(opts *appOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithAltScreen toggles use of the alternate screen, enabled by default.
func WithAltScreen(enabled bool) AppOption {
	return &appOptionImpl{func(opts *appOptions) error {
		opts.altScreen = enabled
		return nil
	}}
}

func resolveAppOptions(opts []AppOption) (*appOptions, error) {
	cfg := &appOptions{
		input:     os.Stdin,
		output:    os.Stdout,
		frameRate: 30,
		altScreen: true,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyApp(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
