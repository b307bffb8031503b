package terminal

import (
	"io"
	"os"

	termloop "github.com/joeycumines/go-termloop"
	"github.com/joeycumines/logiface"
)

// reader adapts blocking reads of a terminal to one event per call.
type reader struct {
	in      *os.File
	buf     []byte
	decoder Decoder
	events  []Event
	logger  *logiface.Logger[logiface.Event]
}

func (x *reader) read() (Event, error) {
	for len(x.events) == 0 {
		n, err := x.in.Read(x.buf)
		if n > 0 {
			x.events = x.decoder.Decode(x.events, x.buf[:n])
		}
		if err != nil {
			x.events = x.decoder.Flush(x.events)
			if len(x.events) == 0 {
				return Event{}, err
			}
			break
		}
		if n == 0 {
			return Event{}, io.EOF
		}
	}
	ev := x.events[0]
	x.events[0] = Event{}
	x.events = x.events[1:]
	return ev, nil
}

// NewInputSource starts a bridge thread, decoding terminal input into
// events, delivered by the returned channel. Only the WithInput and
// WithLogger options apply.
//
// The input is expected to already be in raw mode, e.g. by an Environment.
// The bridge ends (disconnecting the channel) once the input reaches EOF, or
// fails.
func NewInputSource(opts ...Option) (*termloop.Bridge[Event], *termloop.Channel[Event], error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, nil, err
	}
	r := &reader{
		in:     cfg.input,
		buf:    make([]byte, 4096),
		logger: cfg.logger,
	}
	return termloop.NewBridge(termloop.BridgeConfig[Event]{
		Setup: func() error {
			r.logger.Debug().
				Str(`input`, r.in.Name()).
				Log(`terminal: input started`)
			return nil
		},
		Read:   r.read,
		Logger: cfg.logger,
	})
}
