package framebuffer

import (
	"regexp"
	"strconv"
	"strings"
)

// Render produces H row strings for the currently visible viewport —
// scrollback plus live grid when scroll_offset > 0, the live grid alone
// when it is 0. Style transitions between adjacent cells emit exactly one
// escape; the cursor cell, when requested and in view, renders inverted
// independent of its own style; trailing all-blank rows collapse to a
// single space.
func (f *Framebuffer) Render(showCursor bool) []string {
	rows, cursorRow := f.viewport()
	out := make([]string, len(rows))

	for i, row := range rows {
		var b strings.Builder
		cur := Style{}
		open := false
		cursorShown := false
		for x, cell := range row {
			if cell.Style != cur {
				if open {
					b.WriteString("\x1b[0m")
					open = false
				}
				if params := sgrParams(cell.Style); len(params) > 0 {
					b.WriteString("\x1b[" + joinParams(params) + "m")
					open = true
				}
				cur = cell.Style
			}
			ch := cell.Ch
			if ch == 0 {
				continue // continuation cell of a wide character
			}
			inverted := showCursor && i == cursorRow && x == f.cursorX
			if inverted {
				cursorShown = true
				b.WriteString("\x1b[7m")
				b.WriteRune(ch)
				b.WriteString("\x1b[27m")
				// \x1b[27m unconditionally turns reverse-video off on the
				// terminal; if cur's own style actually wants it on, restore
				// that so later cells sharing cur don't skip re-emitting it.
				if cur.Reverse {
					b.WriteString("\x1b[7m")
				}
			} else {
				b.WriteRune(ch)
			}
		}
		if open {
			b.WriteString("\x1b[0m")
		}
		line := b.String()
		if !cursorShown && isBlankRendered(line) {
			line = " "
		}
		out[i] = line
	}
	return out
}

// viewport returns the height rows currently visible and, when the live
// grid is part of that view, the row index within the result that holds
// the cursor (-1 if the cursor isn't in view).
func (f *Framebuffer) viewport() ([][]Cell, int) {
	n := len(f.scrollback)
	start := n - f.scrollOffset
	rows := make([][]Cell, f.height)
	cursorRow := -1
	for i := 0; i < f.height; i++ {
		idx := start + i
		switch {
		case idx < n:
			rows[i] = f.scrollback[idx]
		case idx-n < f.height:
			liveY := idx - n
			rows[i] = f.grid[liveY]
			if liveY == f.cursorY {
				cursorRow = i
			}
		default:
			rows[i] = blankRow(f.width)
		}
	}
	return rows, cursorRow
}

var ansiEscape = regexp.MustCompile("\x1b\\[[0-9;]*m")

func isBlankRendered(line string) bool {
	return strings.TrimSpace(ansiEscape.ReplaceAllString(line, "")) == ""
}

func joinParams(params []int) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ";")
}

// sgrParams lists the SGR parameters that reproduce s, in the same
// attribute-then-color order the ANSI/VT interpreter accumulates them.
func sgrParams(s Style) []int {
	var p []int
	if s.Bold {
		p = append(p, 1)
	}
	if s.Dim {
		p = append(p, 2)
	}
	if s.Italic {
		p = append(p, 3)
	}
	if s.Underline {
		p = append(p, 4)
	}
	if s.Blink {
		p = append(p, 5)
	}
	if s.Reverse {
		p = append(p, 7)
	}
	if s.Hidden {
		p = append(p, 8)
	}
	if s.Strike {
		p = append(p, 9)
	}
	p = append(p, colorParams(s.Fg, 30, 90, 38)...)
	p = append(p, colorParams(s.Bg, 40, 100, 48)...)
	return p
}

func colorParams(c Color, base, brightBase, extended int) []int {
	switch c.Type {
	case ColorIndexed:
		if c.Value < 8 {
			return []int{base + int(c.Value)}
		}
		if c.Value < 16 {
			return []int{brightBase + int(c.Value) - 8}
		}
		return []int{extended, 5, int(c.Value)}
	case ColorRGB:
		r := (c.Value >> 16) & 0xff
		g := (c.Value >> 8) & 0xff
		b := c.Value & 0xff
		return []int{extended, 2, int(r), int(g), int(b)}
	default:
		return nil
	}
}
