package terminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/joeycumines/logiface"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// ErrNotTerminal is returned by Environment.Enter if the input is not a
// terminal.
var ErrNotTerminal = errors.New("terminal: not a terminal")

const (
	seqAltScreenEnter = "\x1b[?1049h"
	seqAltScreenLeave = "\x1b[?1049l"
	seqHideCursor     = "\x1b[?25l"
	seqShowCursor     = "\x1b[?25h"
	seqPasteEnable    = "\x1b[?2004h"
	seqPasteDisable   = "\x1b[?2004l"
	seqClear          = "\x1b[2J\x1b[H"
)

// Environment puts a terminal into raw mode, and (optionally) the
// alternate screen, restoring it on Leave. It implements
// termloop.Environment.
type Environment struct {
	in         *os.File
	out        io.Writer
	outFile    *os.File
	logger     *logiface.Logger[logiface.Event]
	mu         sync.Mutex
	state      *term.State
	alt        bool
	paste      bool
	hideCursor bool
	entered    bool
}

// NewEnvironment configures an environment, by default, for stdin and
// stdout, with the alternate screen, bracketed paste, and a hidden cursor.
func NewEnvironment(opts ...Option) (*Environment, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Environment{
		in:         cfg.input,
		out:        colorable.NewColorable(cfg.output),
		outFile:    cfg.output,
		logger:     cfg.logger,
		alt:        cfg.altScreen,
		paste:      cfg.bracketedPaste,
		hideCursor: cfg.hideCursor,
	}, nil
}

// Enter switches the input into raw mode, then writes the configured
// screen setup sequences.
func (x *Environment) Enter() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.entered {
		return nil
	}

	fd := x.in.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return fmt.Errorf("%w: %s", ErrNotTerminal, x.in.Name())
	}

	state, err := term.MakeRaw(int(fd))
	if err != nil {
		return fmt.Errorf("terminal: failed to enter raw mode: %w", err)
	}

	if _, err := io.WriteString(x.out, x.setupSequence()); err != nil {
		_ = term.Restore(int(fd), state)
		return fmt.Errorf("terminal: failed to write setup: %w", err)
	}

	x.state = state
	x.entered = true

	x.logger.Debug().
		Str(`input`, x.in.Name()).
		Bool(`alt_screen`, x.alt).
		Log(`terminal: entered raw mode`)

	return nil
}

// Leave restores the screen, then the original terminal mode. Both are
// attempted, even if the first fails.
func (x *Environment) Leave() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.entered {
		return nil
	}
	x.entered = false

	_, writeErr := io.WriteString(x.out, x.teardownSequence())
	if writeErr != nil {
		writeErr = fmt.Errorf("terminal: failed to write teardown: %w", writeErr)
	}

	var restoreErr error
	if err := term.Restore(int(x.in.Fd()), x.state); err != nil {
		restoreErr = fmt.Errorf("terminal: failed to restore mode: %w", err)
	}
	x.state = nil

	x.logger.Debug().Log(`terminal: restored`)

	return errors.Join(writeErr, restoreErr)
}

// Size returns the current terminal size, in cells.
func (x *Environment) Size() (width, height int, err error) {
	return term.GetSize(int(x.outFile.Fd()))
}

// Writer returns the output writer, for rendering.
func (x *Environment) Writer() io.Writer {
	return x.out
}

// Input returns the input file, e.g. for NewInputSource.
func (x *Environment) Input() *os.File {
	return x.in
}

func (x *Environment) setupSequence() string {
	var s string
	if x.alt {
		s += seqAltScreenEnter + seqClear
	}
	if x.paste {
		s += seqPasteEnable
	}
	if x.hideCursor {
		s += seqHideCursor
	}
	return s
}

func (x *Environment) teardownSequence() string {
	var s string
	if x.hideCursor {
		s += seqShowCursor
	}
	if x.paste {
		s += seqPasteDisable
	}
	if x.alt {
		s += seqAltScreenLeave
	}
	return s
}
