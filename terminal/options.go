package terminal

import (
	"errors"
	"os"

	"github.com/joeycumines/logiface"
)

type options struct {
	input          *os.File
	output         *os.File
	logger         *logiface.Logger[logiface.Event]
	altScreen      bool
	bracketedPaste bool
	hideCursor     bool
}

// Option configures an Environment, or an input source.
type Option interface {
	apply(*options) error
}

type optionImpl struct {
	applyFunc func(*options) error
}

func (o *optionImpl) apply(opts *options) error {
	return o.applyFunc(opts)
}

// WithInput sets the terminal input, defaults to os.Stdin.
func WithInput(f *os.File) Option {
	return &optionImpl{func(opts *options) error {
		if f == nil {
			return errors.New("terminal: nil input")
		}
		opts.input = f
		return nil
	}}
}

// WithOutput sets the terminal output, defaults to os.Stdout.
func WithOutput(f *os.File) Option {
	return &optionImpl{func(opts *options) error {
		if f == nil {
			return errors.New("terminal: nil output")
		}
		opts.output = f
		return nil
	}}
}

// WithLogger configures logging. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *options) error {
		opts.logger = logger
		return nil
	}}
}

// WithAltScreen toggles use of the alternate screen buffer, enabled by
// default.
func WithAltScreen(enabled bool) Option {
	return &optionImpl{func(opts *options) error {
		opts.altScreen = enabled
		return nil
	}}
}

// WithBracketedPaste toggles bracketed paste mode, enabled by default.
func WithBracketedPaste(enabled bool) Option {
	return &optionImpl{func(opts *options) error {
		opts.bracketedPaste = enabled
		return nil
	}}
}

// WithHideCursor toggles hiding the cursor, enabled by default.
func WithHideCursor(enabled bool) Option {
	return &optionImpl{func(opts *options) error {
		opts.hideCursor = enabled
		return nil
	}}
}

func resolveOptions(opts []Option) (*options, error) {
	cfg := &options{
		input:          os.Stdin,
		output:         os.Stdout,
		altScreen:      true,
		bracketedPaste: true,
		hideCursor:     true,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
