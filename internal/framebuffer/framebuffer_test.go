package framebuffer

import "testing"

func rowText(row []Cell) string {
	s := make([]rune, 0, len(row))
	for _, c := range row {
		if c.Ch == 0 {
			continue
		}
		s = append(s, c.Ch)
	}
	return string(s)
}

func writeString(f *Framebuffer, s string) {
	for _, r := range s {
		f.Write(r)
	}
}

func TestWriteAndWrap(t *testing.T) {
	f := New(10, 3, 100)
	writeString(f, "hello worl")
	writeString(f, "d")

	if got := rowText(f.grid[0]); got != "hello worl" {
		t.Errorf("row0 = %q, want %q", got, "hello worl")
	}
	if got := rowText(f.grid[1]); got != "d         " {
		t.Errorf("row1 = %q, want %q", got, "d         ")
	}
	if x, y := f.Cursor(); x != 1 || y != 1 {
		t.Errorf("cursor = (%d,%d), want (1,1)", x, y)
	}
}

// ScrollOnNewline follows the standard terminal-overflow rule (grounded in
// andyrewlee-amux's vterm.newline): on a fresh H-row buffer, N newlines
// scroll exactly max(0, N-(H-1)) times, since the first H-1 newlines just
// advance within the grid.
func TestScrollOnNewline(t *testing.T) {
	f := New(10, 3, 100)
	f.Newline()
	f.Newline()
	f.Newline()

	if got := f.ScrollbackLen(); got != 1 {
		t.Errorf("scrollback length = %d, want 1", got)
	}
	for y := 0; y < f.height; y++ {
		if got := rowText(f.grid[y]); got != "" {
			t.Errorf("row %d = %q, want blank", y, got)
		}
	}
	if x, y := f.Cursor(); x != 0 || y != 2 {
		t.Errorf("cursor = (%d,%d), want (0,2)", x, y)
	}
}

func TestClearLineMode0(t *testing.T) {
	f := New(10, 3, 100)
	writeString(f, "abcdefghij")
	f.MoveCursorTo(5, 0)
	f.ClearLine(0)

	if got := rowText(f.grid[0]); got != "abcde     " {
		t.Errorf("row0 = %q, want %q", got, "abcde     ")
	}
	if x, y := f.Cursor(); x != 5 || y != 0 {
		t.Errorf("cursor = (%d,%d), want (5,0)", x, y)
	}
}

func TestCursorPosition(t *testing.T) {
	f := New(10, 3, 100)
	f.MoveCursorTo(3, 1) // CSI 2;4H, 1-based row 2 col 4
	if x, y := f.Cursor(); x != 3 || y != 1 {
		t.Errorf("cursor = (%d,%d), want (3,1)", x, y)
	}
}

func TestSGRReset(t *testing.T) {
	f := New(10, 3, 100)
	f.SetStyle(Style{Fg: Color{Type: ColorIndexed, Value: 1}})
	f.Write('A')
	f.SetStyle(Style{})
	f.Write('B')

	wantFg := Style{Fg: Color{Type: ColorIndexed, Value: 1}}
	if got := f.grid[0][0].Style; got != wantFg {
		t.Errorf("cell(0,0) style = %+v, want %+v", got, wantFg)
	}
	if got := f.grid[0][1].Style; got != (Style{}) {
		t.Errorf("cell(1,0) style = %+v, want default", got)
	}
}

func TestSaveRestoreCursor(t *testing.T) {
	f := New(10, 3, 100)
	f.MoveCursorTo(4, 1)
	f.SaveCursor()
	f.MoveCursorTo(0, 0)
	f.SetStyle(Style{Bold: true})
	f.Write('x')
	f.RestoreCursor()

	if x, y := f.Cursor(); x != 4 || y != 1 {
		t.Errorf("cursor after restore = (%d,%d), want (4,1)", x, y)
	}
	if got := f.grid[0][0].Style; got != (Style{Bold: true}) {
		t.Errorf("cell written before restore lost its style: %+v", got)
	}
}

func TestInvariantsAfterOperations(t *testing.T) {
	f := New(10, 3, 5)
	ops := []func(){
		func() { writeString(f, "0123456789abcdef") },
		func() { f.Newline() },
		func() { f.Newline() },
		func() { f.Tab() },
		func() { f.MoveCursorRel(-100, 100) },
		func() { f.ClearScreen(2) },
		func() { f.ScrollUp(3) },
		func() { f.ScrollDown(2) },
		func() { f.InsertChars(4) },
		func() { f.DeleteLines(2) },
	}
	for _, op := range ops {
		op()
		x, y := f.Cursor()
		if x < 0 || x >= f.width {
			t.Fatalf("cursor.x = %d out of bounds", x)
		}
		if y < 0 || y >= f.height {
			t.Fatalf("cursor.y = %d out of bounds", y)
		}
		if len(f.scrollback) > f.scrollCap {
			t.Fatalf("scrollback length %d exceeds cap %d", len(f.scrollback), f.scrollCap)
		}
		for _, row := range f.grid {
			if len(row) != f.width {
				t.Fatalf("row length %d != width %d", len(row), f.width)
			}
		}
	}
}

func TestRenderRoundTripPlainASCII(t *testing.T) {
	f := New(10, 3, 100)
	writeString(f, "hello")
	f.Newline()
	writeString(f, "world")

	rows := f.Render(false)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rendered rows, got %d", len(rows))
	}
	trim := func(s string) string {
		i := len(s)
		for i > 0 && s[i-1] == ' ' {
			i--
		}
		return s[:i]
	}
	if got := trim(rows[0]); got != "hello" {
		t.Errorf("row0 trimmed = %q, want %q", got, "hello")
	}
	if got := trim(rows[1]); got != "world" {
		t.Errorf("row1 trimmed = %q, want %q", got, "world")
	}
}

func TestRenderTrailingBlankRowIsSingleSpace(t *testing.T) {
	f := New(10, 3, 100)
	rows := f.Render(false)
	if rows[2] != " " {
		t.Errorf("blank row rendered as %q, want single space", rows[2])
	}
}

func TestRenderStyleTransitionMinimal(t *testing.T) {
	f := New(5, 1, 10)
	f.SetStyle(Style{Bold: true})
	f.Write('a')
	f.Write('b')
	f.SetStyle(Style{})
	f.Write('c')

	row := f.Render(false)[0]
	want := "\x1b[1mab\x1b[0mc"
	if row[:len(want)] != want {
		t.Errorf("row = %q, want prefix %q", row, want)
	}
}

func TestRenderCursorOnAlreadyReversedCellRestoresReverse(t *testing.T) {
	f := New(5, 1, 10)
	f.SetStyle(Style{Reverse: true})
	f.Write('a')
	f.Write('b')
	f.MoveCursorTo(0, 0)

	row := f.Render(true)[0]
	want := "\x1b[7m\x1b[7ma\x1b[27m\x1b[7mb"
	if row[:len(want)] != want {
		t.Errorf("row = %q, want prefix %q — reverse must be restored after the cursor toggle so %q renders inverted too", row, want, "b")
	}
}
