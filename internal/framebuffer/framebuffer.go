// Package framebuffer implements the virtual terminal screen: a fixed-size
// cell grid with scrollback, cursor, and current style — the component the
// ANSI/VT interpreter mutates and the update coalescer renders.
package framebuffer

// Framebuffer is a fixed W×H grid of Cells plus a bounded scrollback FIFO.
// It is not safe for concurrent use: exactly one goroutine (a session's
// reader) is expected to mutate it at a time.
type Framebuffer struct {
	width, height int

	grid       [][]Cell
	scrollback [][]Cell
	scrollCap  int

	cursorX, cursorY int
	savedX, savedY   int

	currentStyle Style
	scrollOffset int
}

// New builds a blank Framebuffer of the given dimensions with a scrollback
// capacity of scrollCap rows.
func New(width, height, scrollCap int) *Framebuffer {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	if scrollCap < 0 {
		scrollCap = 0
	}
	f := &Framebuffer{
		width:     width,
		height:    height,
		scrollCap: scrollCap,
		grid:      make([][]Cell, height),
	}
	for y := range f.grid {
		f.grid[y] = blankRow(width)
	}
	return f
}

func (f *Framebuffer) Width() int  { return f.width }
func (f *Framebuffer) Height() int { return f.height }

// Cursor returns the current cursor position.
func (f *Framebuffer) Cursor() (x, y int) { return f.cursorX, f.cursorY }

// CellAt returns the live-grid cell at (x, y), for inspection by tests and
// the ANSI/VT interpreter's callers.
func (f *Framebuffer) CellAt(x, y int) Cell {
	return f.grid[y][x]
}

// ScrollbackLen reports how many rows have been evicted into scrollback.
func (f *Framebuffer) ScrollbackLen() int { return len(f.scrollback) }

// ScrollOffset reports the current pager offset into scrollback.
func (f *Framebuffer) ScrollOffset() int { return f.scrollOffset }

// SetScrollOffset clamps and sets the pager offset that Render's viewport
// uses. The session manager does not call it: its [PGUP]/[PGDN] tokens are
// written to the shell as CSI 5~ / CSI 6~.
func (f *Framebuffer) SetScrollOffset(n int) {
	f.scrollOffset = clamp(n, 0, len(f.scrollback))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (f *Framebuffer) clampCursor() {
	f.cursorX = clamp(f.cursorX, 0, f.width-1)
	f.cursorY = clamp(f.cursorY, 0, f.height-1)
}

// pushScrollback evicts row into the scrollback FIFO, trimming the oldest
// entry first once at capacity.
func (f *Framebuffer) pushScrollback(row []Cell) {
	if f.scrollCap == 0 {
		return
	}
	f.scrollback = append(f.scrollback, row)
	if over := len(f.scrollback) - f.scrollCap; over > 0 {
		f.scrollback = f.scrollback[over:]
	}
}
