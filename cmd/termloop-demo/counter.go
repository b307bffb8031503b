package main

import (
	"strconv"

	termloop "github.com/joeycumines/go-termloop"
	"github.com/joeycumines/go-termloop/terminal"
	"github.com/joeycumines/go-termloop/tui"
)

type counter struct {
	count  int
	width  int
	height int
	last   string
}

func (x *counter) Draw(frame *tui.Frame) {
	_, h := frame.Size()
	mid := h / 2
	frame.SetCentered(mid-1, "termloop demo")
	frame.SetCentered(mid, "count: "+strconv.Itoa(x.count))
	if x.last != "" {
		frame.SetCentered(mid+1, "last key: "+x.last)
	}
	if x.width != 0 {
		frame.SetCentered(mid+2, "resized: "+strconv.Itoa(x.width)+"x"+strconv.Itoa(x.height))
	}
	frame.SetCentered(h-1, "k/up: +1  j/down: -1  q: quit")
}

func (x *counter) OnEvent(event terminal.Event, exit termloop.LoopSignal) {
	switch event.Kind {
	case terminal.EventResize:
		x.width, x.height = event.Width, event.Height
		return
	case terminal.EventPaste:
		return
	}
	x.last = event.String()
	switch {
	case event.IsRune('q'), event.IsKey(terminal.KeyEscape), isInterrupt(event):
		exit.Stop()
	case event.IsRune('j'), event.IsKey(terminal.KeyDown):
		x.count--
	case event.IsRune('k'), event.IsKey(terminal.KeyUp):
		x.count++
	}
}

// raw mode disables ISIG, so ^C arrives as input
func isInterrupt(event terminal.Event) bool {
	return event.IsKey(terminal.KeyRune) && event.Rune == 'c' && event.Mod&terminal.ModCtrl != 0
}
