package vtparser

import "shellmux/internal/framebuffer"

// executeSGR applies this CSI's parameters, in left-to-right order, to the
// Framebuffer's current style. Grounded on the classic 16/8-color, 256-color
// (`;5;n`), and truecolor (`;2;r;g;b`) SGR table.
func (p *Interpreter) executeSGR() {
	params := p.params
	if len(params) == 0 {
		params = []int{0}
	}

	style := p.fb.Style()
	for i := 0; i < len(params); i++ {
		v := params[i]
		if v < 0 {
			v = 0
		}
		switch v {
		case 0:
			style = framebuffer.Style{}
		case 1:
			style.Bold = true
		case 2:
			style.Dim = true
		case 3:
			style.Italic = true
		case 4:
			style.Underline = true
		case 5, 6:
			style.Blink = true
		case 7:
			style.Reverse = true
		case 8:
			style.Hidden = true
		case 9:
			style.Strike = true
		case 21:
			style.Bold = false
		case 22:
			style.Bold = false
			style.Dim = false
		case 23:
			style.Italic = false
		case 24:
			style.Underline = false
		case 25:
			style.Blink = false
		case 27:
			style.Reverse = false
		case 28:
			style.Hidden = false
		case 29:
			style.Strike = false
		case 30, 31, 32, 33, 34, 35, 36, 37:
			style.Fg = framebuffer.Color{Type: framebuffer.ColorIndexed, Value: uint32(v - 30)}
		case 38:
			i = p.extendedColor(params, i, &style.Fg)
		case 39:
			style.Fg = framebuffer.Color{Type: framebuffer.ColorDefault}
		case 40, 41, 42, 43, 44, 45, 46, 47:
			style.Bg = framebuffer.Color{Type: framebuffer.ColorIndexed, Value: uint32(v - 40)}
		case 48:
			i = p.extendedColor(params, i, &style.Bg)
		case 49:
			style.Bg = framebuffer.Color{Type: framebuffer.ColorDefault}
		case 90, 91, 92, 93, 94, 95, 96, 97:
			style.Fg = framebuffer.Color{Type: framebuffer.ColorIndexed, Value: uint32(v-90) + 8}
		case 100, 101, 102, 103, 104, 105, 106, 107:
			style.Bg = framebuffer.Color{Type: framebuffer.ColorIndexed, Value: uint32(v-100) + 8}
		}
	}
	p.fb.SetStyle(style)
}

// extendedColor handles `38;5;n` / `48;5;n` (256-color) and `38;2;r;g;b` /
// `48;2;r;g;b` (truecolor), returning the index of the last parameter it
// consumed so the caller's loop can skip past it.
func (p *Interpreter) extendedColor(params []int, i int, color *framebuffer.Color) int {
	if i+1 >= len(params) {
		return i
	}
	mode := params[i+1]
	if mode < 0 {
		mode = 0
	}
	switch mode {
	case 2:
		if i+4 < len(params) {
			r, g, b := clampByte(params[i+2]), clampByte(params[i+3]), clampByte(params[i+4])
			color.Type = framebuffer.ColorRGB
			color.Value = uint32(r)<<16 | uint32(g)<<8 | uint32(b)
			return i + 4
		}
	case 5:
		if i+2 < len(params) {
			color.Type = framebuffer.ColorIndexed
			color.Value = uint32(clampByte(params[i+2]))
			return i + 2
		}
	}
	return i + 1
}

func clampByte(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
