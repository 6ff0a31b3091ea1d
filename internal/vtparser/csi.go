package vtparser

// dispatchCSI executes a fully-parsed CSI sequence ending in final. It is
// the documented, unified contract for the command subset the interpreter
// supports: cursor motion, erase, scroll, save/restore, insert/delete, and
// SGR. `r`, `h`, `l` are accepted and ignored — scroll regions and mode sets
// are not modelled. Anything else is silently ignored, already consumed.
func (p *Interpreter) dispatchCSI(final byte) {
	defer func() { p.private = false }()

	switch final {
	case 'A':
		p.fb.MoveCursorRel(0, -p.getParam(0, 1))
	case 'B':
		p.fb.MoveCursorRel(0, p.getParam(0, 1))
	case 'C':
		p.fb.MoveCursorRel(p.getParam(0, 1), 0)
	case 'D':
		p.fb.MoveCursorRel(-p.getParam(0, 1), 0)
	case 'H', 'f':
		row := p.getParam(0, 1)
		col := p.getParam(1, 1)
		p.fb.MoveCursorTo(col-1, row-1)
	case 'G':
		p.fb.MoveCursorCol(p.getParam(0, 1) - 1)
	case 'd':
		p.fb.MoveCursorRow(p.getParam(0, 1) - 1)
	case 'J':
		p.fb.ClearScreen(p.getParam(0, 0))
	case 'K':
		p.fb.ClearLine(p.getParam(0, 0))
	case 'S':
		p.fb.ScrollUp(p.getParam(0, 1))
	case 'T':
		p.fb.ScrollDown(p.getParam(0, 1))
	case 's':
		p.fb.SaveCursor()
	case 'u':
		p.fb.RestoreCursor()
	case '@':
		p.fb.InsertChars(p.getParam(0, 1))
	case 'P':
		p.fb.DeleteChars(p.getParam(0, 1))
	case 'L':
		p.fb.InsertLines(p.getParam(0, 1))
	case 'M':
		p.fb.DeleteLines(p.getParam(0, 1))
	case 'r', 'h', 'l':
		// scroll region / mode sets: accepted, not modelled
	case 'm':
		p.executeSGR()
	}
}
