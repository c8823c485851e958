// Package vgatext simulates the 80x25 VGA text-mode console: a linear
// buffer of (char, attribute) cells, a per-Console cursor, and the CRTC
// port writes that move the blinking hardware cursor to match it.
package vgatext

import (
	"fmt"

	"github.com/nullboot/kernel/ioport"
)

// Columns and Rows are the fixed text-mode geometry.
const (
	Columns = 80
	Rows    = 25
)

// DefaultAttribute is gray text on a black background.
const DefaultAttribute = 0x07

const (
	crtcIndexPort = 0x3D4
	crtcDataPort  = 0x3D5
	cursorHighReg = 0x0E
	cursorLowReg  = 0x0F
)

// cell is one (char, attribute) pair in the text buffer.
type cell struct {
	char byte
	attr byte
}

// Console owns the simulated text buffer and cursor. The real hardware
// buffer lives at the fixed physical address 0xB8000; here it is just a
// Go slice, with CRTC register writes going out over an ioport.Bus so
// tests can assert on them.
type Console struct {
	bus    ioport.Bus
	cells  [Rows][Columns]cell
	col    int
	row    int
	attr   byte
}

// New returns a blank console with the default attribute and the cursor at
// the origin.
func New(bus ioport.Bus) *Console {
	c := &Console{bus: bus, attr: DefaultAttribute}
	c.clearBuffer()
	return c
}

func (c *Console) clearBuffer() {
	for r := 0; r < Rows; r++ {
		for col := 0; col < Columns; col++ {
			c.cells[r][col] = cell{char: ' ', attr: c.attr}
		}
	}
}

// Clear blanks the buffer and homes the cursor.
func (c *Console) Clear() {
	c.clearBuffer()
	c.col, c.row = 0, 0
	c.updateHardwareCursor()
}

// PutChar writes one character at the cursor and advances it, handling
// newline, backspace, and end-of-line wrap/scroll.
func (c *Console) PutChar(ch byte) {
	switch ch {
	case '\n':
		c.col = 0
		c.row++
	case '\b':
		if c.col > 0 {
			c.col--
		} else if c.row > 0 {
			c.row--
			c.col = Columns - 1
		}
		c.cells[c.row][c.col] = cell{char: ' ', attr: c.attr}
	default:
		c.cells[c.row][c.col] = cell{char: ch, attr: c.attr}
		c.col++
		if c.col >= Columns {
			c.col = 0
			c.row++
		}
	}
	if c.row >= Rows {
		c.scroll()
		c.row = Rows - 1
	}
	c.updateHardwareCursor()
}

// scroll moves every row up by one and blanks the new bottom row,
// standing in for a memmove of the whole buffer.
func (c *Console) scroll() {
	for r := 0; r < Rows-1; r++ {
		c.cells[r] = c.cells[r+1]
	}
	for col := 0; col < Columns; col++ {
		c.cells[Rows-1][col] = cell{char: ' ', attr: c.attr}
	}
}

// Printf formats and writes text through PutChar, the console's only
// output primitive.
func (c *Console) Printf(format string, args ...interface{}) {
	s := fmt.Sprintf(format, args...)
	for i := 0; i < len(s); i++ {
		c.PutChar(s[i])
	}
}

// updateHardwareCursor writes the 16-bit linear cell index of the cursor
// to the CRTC index registers, high byte then low byte.
func (c *Console) updateHardwareCursor() {
	index := uint16(c.row*Columns + c.col)
	indexPort := ioport.NewPort8(c.bus, crtcIndexPort)
	dataPort := ioport.NewPort8(c.bus, crtcDataPort)

	indexPort.Write(cursorHighReg)
	dataPort.Write(byte(index >> 8))
	indexPort.Write(cursorLowReg)
	dataPort.Write(byte(index))
}

// CursorPosition returns the cursor's current (row, column).
func (c *Console) CursorPosition() (row, col int) { return c.row, c.col }

// Snapshot returns the text currently in the buffer, one string per row
// with trailing spaces preserved, for tests that assert on rendered
// output.
func (c *Console) Snapshot() [Rows]string {
	var out [Rows]string
	for r := 0; r < Rows; r++ {
		buf := make([]byte, Columns)
		for col := 0; col < Columns; col++ {
			buf[col] = c.cells[r][col].char
		}
		out[r] = string(buf)
	}
	return out
}
