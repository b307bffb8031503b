package terminal

import (
	"strconv"
	"strings"
)

// EventKind discriminates Event.
type EventKind uint8

const (
	// EventKey is a key press.
	EventKey EventKind = iota + 1
	// EventPaste is a bracketed paste, see Event.Text.
	EventPaste
	// EventResize reports the new terminal size, see Event.Width and
	// Event.Height.
	EventResize
)

// Key identifies a key, KeyRune meaning Event.Rune holds a printable
// character.
type Key uint16

const (
	KeyRune Key = iota + 1
	KeyEnter
	KeyTab
	KeyBackTab
	KeyBackspace
	KeyEscape
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
	KeyInsert
	KeyDelete
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
)

var keyNames = map[Key]string{
	KeyEnter:     "enter",
	KeyTab:       "tab",
	KeyBackTab:   "backtab",
	KeyBackspace: "backspace",
	KeyEscape:    "esc",
	KeyUp:        "up",
	KeyDown:      "down",
	KeyLeft:      "left",
	KeyRight:     "right",
	KeyHome:      "home",
	KeyEnd:       "end",
	KeyPageUp:    "pgup",
	KeyPageDown:  "pgdown",
	KeyInsert:    "insert",
	KeyDelete:    "delete",
	KeyF1:        "f1",
	KeyF2:        "f2",
	KeyF3:        "f3",
	KeyF4:        "f4",
	KeyF5:        "f5",
	KeyF6:        "f6",
	KeyF7:        "f7",
	KeyF8:        "f8",
	KeyF9:        "f9",
	KeyF10:       "f10",
	KeyF11:       "f11",
	KeyF12:       "f12",
}

// Modifier is a bit set of held modifier keys.
type Modifier uint8

const (
	ModShift Modifier = 1 << iota
	ModAlt
	ModCtrl
)

// KeyAction distinguishes presses from releases and repeats, where the
// terminal reports them. The Decoder only produces KeyPress.
type KeyAction uint8

const (
	KeyPress KeyAction = iota
	KeyRepeat
	KeyRelease
)

// Event is a single terminal input event.
type Event struct {
	Kind EventKind

	Key    Key
	Rune   rune
	Mod    Modifier
	Action KeyAction

	// Text is the pasted text, for EventPaste.
	Text string

	Width  int
	Height int
}

// KeyEvent is a convenience constructor for a key press.
func KeyEvent(key Key, r rune, mod Modifier) Event {
	return Event{Kind: EventKey, Key: key, Rune: r, Mod: mod}
}

// RuneEvent is a convenience constructor for a printable key press.
func RuneEvent(r rune) Event {
	return KeyEvent(KeyRune, r, 0)
}

// IsRune reports whether the event is an unmodified press of r.
func (e Event) IsRune(r rune) bool {
	return e.Kind == EventKey && e.Action == KeyPress && e.Key == KeyRune && e.Rune == r && e.Mod&(ModCtrl|ModAlt) == 0
}

// IsKey reports whether the event is a press of key, ignoring modifiers.
func (e Event) IsKey(key Key) bool {
	return e.Kind == EventKey && e.Action == KeyPress && e.Key == key
}

// String returns a friendly name, e.g. "ctrl+c", "alt+up", or "paste(3)".
func (e Event) String() string {
	switch e.Kind {
	case EventPaste:
		return "paste(" + strconv.Itoa(len(e.Text)) + ")"
	case EventResize:
		return "resize(" + strconv.Itoa(e.Width) + "x" + strconv.Itoa(e.Height) + ")"
	case EventKey:
	default:
		return "unknown"
	}

	var b strings.Builder
	if e.Mod&ModCtrl != 0 {
		b.WriteString("ctrl+")
	}
	if e.Mod&ModAlt != 0 {
		b.WriteString("alt+")
	}
	if e.Mod&ModShift != 0 {
		b.WriteString("shift+")
	}
	if e.Key == KeyRune {
		if e.Rune == ' ' {
			b.WriteString("space")
		} else {
			b.WriteRune(e.Rune)
		}
	} else if name, ok := keyNames[e.Key]; ok {
		b.WriteString(name)
	} else {
		b.WriteString("unknown")
	}
	return b.String()
}
