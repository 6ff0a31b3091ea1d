package framebuffer

import "github.com/mattn/go-runewidth"

// Write places a codepoint at the cursor with the current style, advancing
// the cursor and wrapping/scrolling as needed.
func (f *Framebuffer) Write(c rune) {
	w := runewidth.RuneWidth(c)
	if w <= 0 {
		w = 1
	}

	if f.cursorX >= f.width {
		f.CarriageReturn()
		f.advanceLine()
	}
	if w == 2 && f.cursorX == f.width-1 {
		f.grid[f.cursorY][f.cursorX] = Cell{Ch: ' ', Style: f.currentStyle, Width: 1}
		f.CarriageReturn()
		f.advanceLine()
	}

	row := f.grid[f.cursorY]
	if cur := row[f.cursorX]; cur.Width == 0 && f.cursorX > 0 {
		row[f.cursorX-1] = blankCell()
	}
	if cur := row[f.cursorX]; cur.Width == 2 && f.cursorX+1 < f.width {
		row[f.cursorX+1] = blankCell()
	}
	row[f.cursorX] = Cell{Ch: c, Style: f.currentStyle, Width: w}
	if w == 2 && f.cursorX+1 < f.width {
		row[f.cursorX+1] = Cell{Ch: 0, Style: f.currentStyle, Width: 0}
	}

	f.cursorX += w
}

// advanceLine moves the cursor down one row, scrolling the top row into
// scrollback when it runs past the bottom.
func (f *Framebuffer) advanceLine() {
	f.cursorY++
	if f.cursorY >= f.height {
		f.scrollUpInternal(1)
		f.cursorY = f.height - 1
	}
}

// Newline resets the column to 0 and advances the row, scrolling on
// overflow.
func (f *Framebuffer) Newline() {
	f.cursorX = 0
	f.advanceLine()
}

func (f *Framebuffer) CarriageReturn() {
	f.cursorX = 0
}

// Backspace moves the cursor left without deleting the cell it passes over.
func (f *Framebuffer) Backspace() {
	if f.cursorX > 0 {
		f.cursorX--
	}
}

// Tab advances to the next multiple of 8, writing spaces with the current
// style along the way. When the next stop lies past the right edge it fills
// to the edge and leaves the cursor at the right margin; Tab itself does not
// wrap or scroll, the next Write does.
func (f *Framebuffer) Tab() {
	for {
		next := ((f.cursorX / 8) + 1) * 8
		if next >= f.width {
			for x := f.cursorX; x < f.width; x++ {
				f.grid[f.cursorY][x] = Cell{Ch: ' ', Style: f.currentStyle, Width: 1}
			}
			f.cursorX = f.width
			return
		}
		for x := f.cursorX; x < next; x++ {
			f.grid[f.cursorY][x] = Cell{Ch: ' ', Style: f.currentStyle, Width: 1}
		}
		f.cursorX = next
		return
	}
}

// MoveCursorTo sets both coordinates (0-based), clamped in bounds. Used for
// CSI H/f.
func (f *Framebuffer) MoveCursorTo(x, y int) {
	f.cursorX = x
	f.cursorY = y
	f.clampCursor()
}

// MoveCursorCol sets the column only, leaving the row untouched. Used for
// CSI G.
func (f *Framebuffer) MoveCursorCol(x int) {
	f.cursorX = x
	f.clampCursor()
}

// MoveCursorRow sets the row only, leaving the column untouched. Used for
// CSI d.
func (f *Framebuffer) MoveCursorRow(y int) {
	f.cursorY = y
	f.clampCursor()
}

// MoveCursorRel moves the cursor by a relative delta, clamped in bounds.
// Used for CSI A/B/C/D.
func (f *Framebuffer) MoveCursorRel(dx, dy int) {
	f.cursorX += dx
	f.cursorY += dy
	f.clampCursor()
}

// ClearLine implements CSI K, modes 0 (cursor..end), 1 (start..cursor
// inclusive), 2 (entire row).
func (f *Framebuffer) ClearLine(mode int) {
	row := f.grid[f.cursorY]
	switch mode {
	case 0:
		for x := f.cursorX; x < f.width; x++ {
			row[x] = blankCell()
		}
	case 1:
		for x := 0; x <= f.cursorX && x < f.width; x++ {
			row[x] = blankCell()
		}
	case 2:
		f.grid[f.cursorY] = blankRow(f.width)
	}
}

// ClearScreen implements CSI J, modes 0 (cursor..end), 1 (start..cursor),
// 2 (entire screen).
func (f *Framebuffer) ClearScreen(mode int) {
	switch mode {
	case 0:
		f.ClearLine(0)
		for y := f.cursorY + 1; y < f.height; y++ {
			f.grid[y] = blankRow(f.width)
		}
	case 1:
		for y := 0; y < f.cursorY; y++ {
			f.grid[y] = blankRow(f.width)
		}
		f.ClearLine(1)
	case 2:
		for y := 0; y < f.height; y++ {
			f.grid[y] = blankRow(f.width)
		}
	}
}

// ScrollUp pushes the top n rows into scrollback and appends n blank rows at
// the bottom. Exposed for CSI S in addition to internal overflow scrolling.
func (f *Framebuffer) ScrollUp(n int) {
	f.scrollUpInternal(n)
}

func (f *Framebuffer) scrollUpInternal(n int) {
	for i := 0; i < n; i++ {
		if len(f.grid) == 0 {
			break
		}
		f.pushScrollback(f.grid[0])
		f.grid = append(f.grid[1:], blankRow(f.width))
	}
}

// ScrollDown removes the bottom n rows and prepends n blank rows at the top.
// Scrollback is not consulted.
func (f *Framebuffer) ScrollDown(n int) {
	for i := 0; i < n; i++ {
		if len(f.grid) == 0 {
			break
		}
		f.grid = append([][]Cell{blankRow(f.width)}, f.grid[:len(f.grid)-1]...)
	}
}

// SaveCursor stores the cursor position only; style is not part of the
// saved state.
func (f *Framebuffer) SaveCursor() {
	f.savedX, f.savedY = f.cursorX, f.cursorY
}

// RestoreCursor restores a previously saved cursor position.
func (f *Framebuffer) RestoreCursor() {
	f.cursorX, f.cursorY = f.savedX, f.savedY
	f.clampCursor()
}

// SetStyle replaces the current style; the ANSI/VT interpreter is the only
// caller, after accumulating an SGR sequence's parameters.
func (f *Framebuffer) SetStyle(s Style) {
	f.currentStyle = s
}

// Style returns the current style.
func (f *Framebuffer) Style() Style {
	return f.currentStyle
}

// InsertChars shifts the row from the cursor right by n, dropping characters
// that fall off the right edge and filling the gap with blanks.
func (f *Framebuffer) InsertChars(n int) {
	row := f.grid[f.cursorY]
	if n <= 0 {
		return
	}
	tail := row[f.cursorX:]
	if n > len(tail) {
		n = len(tail)
	}
	kept := len(tail) - n
	shifted := make([]Cell, len(tail))
	copy(shifted[n:], tail[:kept])
	for i := 0; i < n && i < len(shifted); i++ {
		shifted[i] = blankCell()
	}
	copy(row[f.cursorX:], shifted)
}

// DeleteChars removes n characters starting at the cursor, shifting the
// remainder of the row left and padding the vacated tail with blanks.
func (f *Framebuffer) DeleteChars(n int) {
	row := f.grid[f.cursorY]
	if n <= 0 {
		return
	}
	tail := row[f.cursorX:]
	if n > len(tail) {
		n = len(tail)
	}
	copy(tail, tail[n:])
	for i := len(tail) - n; i < len(tail); i++ {
		tail[i] = blankCell()
	}
}

// InsertLines pushes n blank rows in at the cursor row, shifting rows below
// down and dropping rows that fall off the bottom of the screen.
func (f *Framebuffer) InsertLines(n int) {
	if n <= 0 {
		return
	}
	y := f.cursorY
	tail := f.grid[y:]
	if n > len(tail) {
		n = len(tail)
	}
	kept := len(tail) - n
	shifted := make([][]Cell, len(tail))
	copy(shifted[n:], tail[:kept])
	for i := 0; i < n && i < len(shifted); i++ {
		shifted[i] = blankRow(f.width)
	}
	copy(tail, shifted)
}

// DeleteLines removes n rows starting at the cursor row, shifting rows below
// up and padding the vacated bottom with blanks.
func (f *Framebuffer) DeleteLines(n int) {
	if n <= 0 {
		return
	}
	y := f.cursorY
	tail := f.grid[y:]
	if n > len(tail) {
		n = len(tail)
	}
	copy(tail, tail[n:])
	for i := len(tail) - n; i < len(tail); i++ {
		tail[i] = blankRow(f.width)
	}
}
