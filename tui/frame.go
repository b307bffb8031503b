package tui

import (
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Frame is a grid of text lines, sized to the terminal, drawn by an App on
// each tick. Lines are truncated and padded by display width, so wide
// characters never wrap.
//
// Rendering only rewrites the lines that changed since the previous render.
type Frame struct {
	width, height int
	lines         []string
	prev          []string
	invalid       bool
	b             strings.Builder
}

// NewFrame allocates a frame of the given size, in cells.
func NewFrame(width, height int) *Frame {
	f := &Frame{}
	f.Resize(width, height)
	return f
}

// Size returns the frame size, in cells.
func (f *Frame) Size() (width, height int) {
	return f.width, f.height
}

// Resize changes the frame size, forcing a full redraw on the next Render.
func (f *Frame) Resize(width, height int) {
	width = max(width, 0)
	height = max(height, 0)
	f.width, f.height = width, height
	f.lines = make([]string, height)
	f.prev = make([]string, height)
	f.invalid = true
}

// Clear blanks every line.
func (f *Frame) Clear() {
	clear(f.lines)
}

// SetLine sets line y (zero based), ignoring out of range lines.
func (f *Frame) SetLine(y int, text string) {
	if y < 0 || y >= f.height {
		return
	}
	f.lines[y] = text
}

// Line returns line y, as it will be rendered.
func (f *Frame) Line(y int) string {
	if y < 0 || y >= f.height {
		return ""
	}
	return f.fit(f.lines[y])
}

// SetCentered sets line y to text, centered horizontally.
func (f *Frame) SetCentered(y int, text string) {
	pad := (f.width - runewidth.StringWidth(text)) / 2
	if pad > 0 {
		text = strings.Repeat(" ", pad) + text
	}
	f.SetLine(y, text)
}

// Render writes the changed lines to w, positioning the cursor absolutely.
func (f *Frame) Render(w io.Writer) error {
	f.b.Reset()
	for y := range f.lines {
		line := f.fit(f.lines[y])
		if !f.invalid && line == f.prev[y] {
			continue
		}
		f.prev[y] = line
		f.b.WriteString("\x1b[")
		f.b.WriteString(strconv.Itoa(y + 1))
		f.b.WriteString(";1H")
		f.b.WriteString(line)
	}
	f.invalid = false
	if f.b.Len() == 0 {
		return nil
	}
	if _, err := io.WriteString(w, f.b.String()); err != nil {
		// the screen state is unknown
		f.invalid = true
		return err
	}
	return nil
}

func (f *Frame) fit(s string) string {
	return runewidth.FillRight(runewidth.Truncate(s, f.width, ""), f.width)
}
