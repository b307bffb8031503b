package terminal

import (
	"bytes"
	"unicode/utf8"
)

const (
	esc = 0x1b

	pasteStart = "\x1b[200~"
	pasteEnd   = "\x1b[201~"
)

// Decoder translates raw terminal input (xterm-style VT sequences, UTF-8)
// into events. Sequences may be split across calls to Decode, incomplete
// trailing input is buffered until the next call.
//
// A lone escape byte, at the end of the input, is reported as KeyEscape,
// since terminals write whole sequences at once.
type Decoder struct {
	pending []byte
	paste   []byte
	pasting bool
}

// Decode appends the events encoded by p to events.
func (d *Decoder) Decode(events []Event, p []byte) []Event {
	buf := p
	if len(d.pending) != 0 {
		d.pending = append(d.pending, p...)
		buf = d.pending
	}

	for len(buf) > 0 {
		if d.pasting {
			i := bytes.Index(buf, []byte(pasteEnd))
			if i < 0 {
				// keep anything that might be the start of the terminator
				keep := partialSuffix(buf, pasteEnd)
				d.paste = append(d.paste, buf[:len(buf)-keep]...)
				buf = buf[len(buf)-keep:]
				break
			}
			d.paste = append(d.paste, buf[:i]...)
			events = append(events, Event{Kind: EventPaste, Text: string(d.paste)})
			d.paste = d.paste[:0]
			d.pasting = false
			buf = buf[i+len(pasteEnd):]
			continue
		}

		n, ev, ok := decodeOne(buf)
		if n == 0 {
			// incomplete
			break
		}
		buf = buf[n:]
		if !ok {
			continue
		}
		if ev.Kind == EventPaste {
			d.pasting = true
			continue
		}
		events = append(events, ev)
	}

	// buf aliases either p or d.pending, copy before reuse
	d.pending = append(d.pending[:0:0], buf...)
	return events
}

// Flush reports any buffered, incomplete input, as individual keys.
func (d *Decoder) Flush(events []Event) []Event {
	buf := d.pending
	d.pending = nil
	for len(buf) > 0 {
		if buf[0] == esc {
			events = append(events, KeyEvent(KeyEscape, 0, 0))
			buf = buf[1:]
			continue
		}
		n, ev, ok := decodeOne(buf)
		if n == 0 {
			events = append(events, RuneEvent(utf8.RuneError))
			break
		}
		buf = buf[n:]
		if ok {
			events = append(events, ev)
		}
	}
	return events
}

// decodeOne decodes the first event in buf, returning the number of bytes
// consumed (zero if incomplete) and whether an event was produced.
func decodeOne(buf []byte) (int, Event, bool) {
	b := buf[0]
	if b == esc {
		return decodeEscape(buf)
	}
	if b < 0x20 || b == 0x7f {
		return 1, decodeControl(b), true
	}
	if b < utf8.RuneSelf {
		return 1, RuneEvent(rune(b)), true
	}
	if !utf8.FullRune(buf) {
		return 0, Event{}, false
	}
	r, n := utf8.DecodeRune(buf)
	return n, RuneEvent(r), true
}

func decodeControl(b byte) Event {
	switch b {
	case '\r', '\n':
		return KeyEvent(KeyEnter, 0, 0)
	case '\t':
		return KeyEvent(KeyTab, 0, 0)
	case 0x7f, 0x08:
		return KeyEvent(KeyBackspace, 0, 0)
	case 0x00:
		return KeyEvent(KeyRune, ' ', ModCtrl)
	case esc:
		return KeyEvent(KeyEscape, 0, 0)
	}
	if b <= 0x1a {
		return KeyEvent(KeyRune, rune('a'+b-1), ModCtrl)
	}
	// 0x1c-0x1f
	return KeyEvent(KeyRune, rune("\\]^_"[b-0x1c]), ModCtrl)
}

func decodeEscape(buf []byte) (int, Event, bool) {
	if len(buf) == 1 {
		return 1, KeyEvent(KeyEscape, 0, 0), true
	}
	switch buf[1] {
	case '[':
		return decodeCSI(buf)
	case 'O':
		return decodeSS3(buf)
	case esc:
		// a double escape is a literal escape, then the rest
		return 1, KeyEvent(KeyEscape, 0, 0), true
	}
	// alt+key
	n, ev, ok := decodeOne(buf[1:])
	if n == 0 {
		return 0, Event{}, false
	}
	ev.Mod |= ModAlt
	return n + 1, ev, ok
}

func decodeSS3(buf []byte) (int, Event, bool) {
	if len(buf) < 3 {
		return 0, Event{}, false
	}
	if key, ok := finalKey(buf[2]); ok {
		return 3, KeyEvent(key, 0, 0), true
	}
	// unknown, drop it
	return 3, Event{}, false
}

// decodeCSI decodes ESC [ params final.
func decodeCSI(buf []byte) (int, Event, bool) {
	i := 2
	for i < len(buf) && buf[i] >= 0x30 && buf[i] <= 0x3f {
		i++
	}
	for i < len(buf) && buf[i] >= 0x20 && buf[i] <= 0x2f {
		i++
	}
	if i >= len(buf) {
		return 0, Event{}, false
	}
	final := buf[i]
	n := i + 1
	if final < 0x40 || final > 0x7e {
		// malformed, skip the introducer only
		return 2, Event{}, false
	}

	params := parseParams(buf[2:i])
	mod := modifier(params)

	if final == '~' {
		if len(params) == 0 {
			return n, Event{}, false
		}
		if params[0] == 200 {
			return n, Event{Kind: EventPaste}, true
		}
		key, ok := tildeKey(params[0])
		if !ok {
			return n, Event{}, false
		}
		return n, KeyEvent(key, 0, mod), true
	}

	if final == 'Z' {
		return n, KeyEvent(KeyBackTab, 0, mod), true
	}

	if key, ok := finalKey(final); ok {
		return n, KeyEvent(key, 0, mod), true
	}

	return n, Event{}, false
}

func finalKey(b byte) (Key, bool) {
	switch b {
	case 'A':
		return KeyUp, true
	case 'B':
		return KeyDown, true
	case 'C':
		return KeyRight, true
	case 'D':
		return KeyLeft, true
	case 'H':
		return KeyHome, true
	case 'F':
		return KeyEnd, true
	case 'P':
		return KeyF1, true
	case 'Q':
		return KeyF2, true
	case 'R':
		return KeyF3, true
	case 'S':
		return KeyF4, true
	}
	return 0, false
}

func tildeKey(n int) (Key, bool) {
	switch n {
	case 1, 7:
		return KeyHome, true
	case 2:
		return KeyInsert, true
	case 3:
		return KeyDelete, true
	case 4, 8:
		return KeyEnd, true
	case 5:
		return KeyPageUp, true
	case 6:
		return KeyPageDown, true
	case 11, 12, 13, 14, 15:
		return KeyF1 + Key(n-11), true
	case 17, 18, 19, 20, 21:
		return KeyF6 + Key(n-17), true
	case 23, 24:
		return KeyF11 + Key(n-23), true
	}
	return 0, false
}

// parseParams parses semicolon separated decimal parameters, missing values
// are zero.
func parseParams(b []byte) []int {
	if len(b) == 0 {
		return nil
	}
	params := make([]int, 1, 2)
	for _, c := range b {
		switch {
		case c == ';':
			params = append(params, 0)
		case c >= '0' && c <= '9':
			params[len(params)-1] = params[len(params)-1]*10 + int(c-'0')
		}
	}
	return params
}

// modifier decodes the xterm modifier parameter (1 + bit set), if present.
func modifier(params []int) Modifier {
	if len(params) < 2 || params[1] < 2 {
		return 0
	}
	m := params[1] - 1
	var mod Modifier
	if m&1 != 0 {
		mod |= ModShift
	}
	if m&2 != 0 {
		mod |= ModAlt
	}
	if m&4 != 0 {
		mod |= ModCtrl
	}
	return mod
}

// partialSuffix returns the length of the longest suffix of b that is a
// proper prefix of s.
func partialSuffix(b []byte, s string) int {
	for n := min(len(b), len(s)-1); n > 0; n-- {
		if string(b[len(b)-n:]) == s[:n] {
			return n
		}
	}
	return 0
}
