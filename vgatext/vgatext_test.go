package vgatext_test

import (
	"testing"

	"github.com/nullboot/kernel/ioport"
	"github.com/nullboot/kernel/vgatext"
	"github.com/stretchr/testify/assert"
)

func TestPutCharAdvancesCursorAndWritesCell(t *testing.T) {
	c := vgatext.New(ioport.NewSimulatedBus())
	c.PutChar('A')
	row, col := c.CursorPosition()
	assert.Equal(t, 0, row)
	assert.Equal(t, 1, col)
	assert.Equal(t, byte('A'), c.Snapshot()[0][0])
}

func TestNewlineMovesToNextRow(t *testing.T) {
	c := vgatext.New(ioport.NewSimulatedBus())
	c.PutChar('X')
	c.PutChar('\n')
	row, col := c.CursorPosition()
	assert.Equal(t, 1, row)
	assert.Equal(t, 0, col)
}

func TestBackspaceErasesPreviousCell(t *testing.T) {
	c := vgatext.New(ioport.NewSimulatedBus())
	c.PutChar('A')
	c.PutChar('\b')
	row, col := c.CursorPosition()
	assert.Equal(t, 0, row)
	assert.Equal(t, 0, col)
	assert.Equal(t, byte(' '), c.Snapshot()[0][0])
}

func TestOverflowScrollsBufferUp(t *testing.T) {
	c := vgatext.New(ioport.NewSimulatedBus())
	for i := 0; i < vgatext.Rows; i++ {
		c.Printf("line%d\n", i)
	}
	snap := c.Snapshot()
	assert.Contains(t, snap[vgatext.Rows-2], "line24")
}

func TestPutCharWritesCursorRegistersOverBus(t *testing.T) {
	bus := ioport.NewSimulatedBus()
	var lastIndex, lastData byte
	bus.Register(0x3D4, 1, recorderHandler{target: &lastIndex})
	bus.Register(0x3D5, 1, recorderHandler{target: &lastData})

	c := vgatext.New(bus)
	c.PutChar('Z')
	assert.Equal(t, byte(0x0F), lastIndex) // low-byte register written last
	assert.Equal(t, byte(1), lastData)     // cursor now at linear index 1
}

type recorderHandler struct{ target *byte }

func (r recorderHandler) ReadPort(port uint16) uint8 { return *r.target }
func (r recorderHandler) WritePort(port uint16, value uint8) { *r.target = value }
