// Package idt builds the Interrupt Descriptor Table, remaps the 8259A PIC
// pair off the CPU exception vectors, and dispatches interrupts to
// registered handlers. Real hardware loads the IDTR with LIDT and lets the
// CPU vector straight into a handler on INT/IRQ; here the CPU core's
// simulated interrupt path calls Dispatch with the vector it would have
// taken, so the same gate-descriptor table still governs what runs.
package idt

import (
	"encoding/binary"
	"fmt"

	"github.com/nullboot/kernel/gdt"
	"github.com/nullboot/kernel/ioport"
)

// Gate type nibble values, loaded into bits 0-3 of the type/attribute byte.
const (
	GateTypeTask      = 0x5
	GateTypeInterrupt = 0xE
	GateTypeTrap      = 0xF
)

const (
	attrPresent = 1 << 7
	attrDPL0    = 0 << 5
)

// EntrySize is the size in bytes of one packed gate descriptor.
const EntrySize = 8

// NumEntries is the number of vectors in the table: 32 reserved CPU
// exceptions plus 224 user/IRQ vectors.
const NumEntries = 256

// Gate is the decoded form of one IDT entry.
type Gate struct {
	Offset   uint32 // ISR entry point
	Selector uint16 // code segment selector, normally gdt.CodeSelector
	Type     uint8  // GateTypeInterrupt or GateTypeTrap
	Present  bool
}

// Encode packs a Gate into its 8-byte on-the-wire representation.
func (g Gate) Encode() [EntrySize]byte {
	var raw [EntrySize]byte
	binary.LittleEndian.PutUint16(raw[0:2], uint16(g.Offset))
	binary.LittleEndian.PutUint16(raw[2:4], g.Selector)
	raw[4] = 0 // reserved
	attr := g.Type & 0x0F
	attr |= attrDPL0
	if g.Present {
		attr |= attrPresent
	}
	raw[5] = attr
	binary.LittleEndian.PutUint16(raw[6:8], uint16(g.Offset>>16))
	return raw
}

// Decode reverses Encode, reconstructing the full 32-bit ISR address from
// its two 16-bit halves.
func Decode(raw [EntrySize]byte) Gate {
	low := uint32(binary.LittleEndian.Uint16(raw[0:2]))
	high := uint32(binary.LittleEndian.Uint16(raw[6:8]))
	return Gate{
		Offset:   low | (high << 16),
		Selector: binary.LittleEndian.Uint16(raw[2:4]),
		Type:     raw[5] & 0x0F,
		Present:  raw[5]&attrPresent != 0,
	}
}

// ExceptionNames maps the 32 reserved CPU exception vectors to the names
// printed when no handler claims them.
var ExceptionNames = [32]string{
	0x00: "Divide By Zero Exception",
	0x01: "Debug Exception",
	0x02: "Non Maskable Interrupt Exception",
	0x03: "Breakpoint Exception",
	0x04: "Into Detected Overflow Exception",
	0x05: "Out of Bounds Exception",
	0x06: "Invalid Opcode Exception",
	0x07: "No Coprocessor Exception",
	0x08: "Double Fault Exception",
	0x09: "Coprocessor Segment Overrun Exception",
	0x0A: "Bad TSS Exception",
	0x0B: "Segment Not Present Exception",
	0x0C: "Stack Fault Exception",
	0x0D: "General Protection Fault Exception",
	0x0E: "Page Fault Exception",
	0x0F: "Unknown Interrupt Exception",
	0x10: "Coprocessor Fault Exception",
	0x11: "Alignment Check Exception",
	0x12: "Machine Check Exception",
	0x13: "SIMD Floating-Point Exception",
}

// Remapped PIC vector offsets: master IRQ0-7 land at 0x20-0x27, slave
// IRQ8-15 at 0x28-0x2F, clear of the 0x00-0x1F CPU exception range.
const (
	MasterOffset = 0x20
	SlaveOffset  = 0x28

	masterCommandPort = 0x20
	masterDataPort    = 0x21
	slaveCommandPort  = 0xA0
	slaveDataPort     = 0xA1

	icw1Init       = 0x11
	icw4_8086Mode  = 0x01
	eoiCommand     = 0x20
	masterSlaveLine = 0x04 // ICW3 told to the master: slave sits on IRQ2
	slaveCascadeID  = 0x02 // ICW3 told to the slave: its cascade identity

	// TimerVector is the remapped vector for IRQ0, the PIT tick that drives
	// the scheduler.
	TimerVector = MasterOffset
)

// Handler is implemented by anything that wants to claim an interrupt
// vector. It receives the stack pointer at interrupt entry and returns the
// (possibly different) stack pointer execution should resume at, matching
// the contract a real handler fulfills by way of IRET: most handlers return
// esp unchanged, but the scheduler's timer handler returns the next task's
// saved esp to switch context.
type Handler interface {
	Handle(esp uint32) uint32
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(esp uint32) uint32

func (f HandlerFunc) Handle(esp uint32) uint32 { return f(esp) }

// Manager owns the IDT image, the PIC remap state and the handler table. It
// is the simulated counterpart of LIDT + the PIC's ICW sequence + STI/CLI.
type Manager struct {
	bus      ioport.Bus
	entries  [NumEntries][EntrySize]byte
	handlers [NumEntries]Handler
	active   bool
	lastLog  string
}

// ActiveInterruptManager is the process-wide singleton the rest of the
// kernel dispatches through, mirroring the single real IDTR a CPU core can
// have loaded at a time.
var ActiveInterruptManager *Manager

// New builds a Manager with every gate pointed at a not-present placeholder
// and remaps the PIC over bus. It does not enable interrupts; call
// Activate for that.
func New(bus ioport.Bus) *Manager {
	m := &Manager{bus: bus}
	for v := 0; v < NumEntries; v++ {
		m.entries[v] = Gate{Type: GateTypeInterrupt}.Encode()
	}
	m.remapPIC()
	return m
}

// remapPIC runs the standard four-ICW initialization sequence against both
// PIC chips so hardware IRQs land on MasterOffset/SlaveOffset instead of
// colliding with the CPU exception vectors 0x00-0x1F.
func (m *Manager) remapPIC() {
	masterCmd := ioport.NewPort8(m.bus, masterCommandPort)
	masterData := ioport.NewPort8(m.bus, masterDataPort)
	slaveCmd := ioport.NewPort8(m.bus, slaveCommandPort)
	slaveData := ioport.NewPort8(m.bus, slaveDataPort)

	masterCmd.WriteSlow(icw1Init)
	slaveCmd.WriteSlow(icw1Init)
	masterData.WriteSlow(MasterOffset)
	slaveData.WriteSlow(SlaveOffset)
	masterData.WriteSlow(masterSlaveLine)
	slaveData.WriteSlow(slaveCascadeID)
	masterData.WriteSlow(icw4_8086Mode)
	slaveData.WriteSlow(icw4_8086Mode)
	masterData.WriteSlow(0x00) // clear masks: no IRQ lines disabled
	slaveData.WriteSlow(0x00)
}

// SetGate installs a gate descriptor for vector, pointed at the kernel's
// flat code segment.
func (m *Manager) SetGate(vector int, offset uint32, gateType uint8) {
	m.entries[vector] = Gate{
		Offset:   offset,
		Selector: gdt.CodeSelector,
		Type:     gateType,
		Present:  true,
	}.Encode()
}

// GateAt decodes the descriptor currently installed at vector.
func (m *Manager) GateAt(vector int) Gate {
	return Decode(m.entries[vector])
}

// Bytes returns the packed table, ready to be pointed at by an IDTR.
func (m *Manager) Bytes() []byte {
	out := make([]byte, 0, NumEntries*EntrySize)
	for _, e := range m.entries {
		out = append(out, e[:]...)
	}
	return out
}

// SizeMinusOne is the value stored in the IDTR's limit field.
func (m *Manager) SizeMinusOne() uint16 {
	return uint16(NumEntries*EntrySize - 1)
}

// RegisterHandler claims vector for handler. Registering the timer vector
// (IRQ0) is how the scheduler hooks the PIT tick.
func (m *Manager) RegisterHandler(vector int, handler Handler) {
	m.handlers[vector] = handler
}

// Activate marks the manager live, standing in for STI. Dispatch still
// works before Activate, but real IRQ delivery only begins once the CPU's
// interrupt flag is set.
func (m *Manager) Activate() {
	m.active = true
	ActiveInterruptManager = m
}

// Deactivate stands in for CLI.
func (m *Manager) Deactivate() {
	m.active = false
	if ActiveInterruptManager == m {
		ActiveInterruptManager = nil
	}
}

// Active reports whether interrupts are currently enabled.
func (m *Manager) Active() bool { return m.active }

// LastUnhandledMessage returns the text Dispatch printed for the most
// recent vector that had no registered handler, for tests that assert on
// terminal output without wiring a real console.
func (m *Manager) LastUnhandledMessage() string { return m.lastLog }

// Dispatch simulates the CPU's interrupt entry: it looks up vector, invokes
// its handler if one is registered, sends EOI to the PIC for hardware IRQs,
// and returns the stack pointer execution should resume at. Unhandled CPU
// exceptions (vectors 0x00-0x13) print their name; unhandled hardware IRQs
// print a generic "UNHANDLED INTERRUPT" message. Either way esp passes
// through unchanged when nothing claims the vector.
func (m *Manager) Dispatch(vector int, esp uint32) uint32 {
	handler := m.handlers[vector]
	outEsp := esp
	if handler != nil {
		outEsp = handler.Handle(esp)
	} else {
		m.lastLog = unhandledMessage(vector)
	}
	m.sendEOI(vector)
	return outEsp
}

func unhandledMessage(vector int) string {
	if vector < len(ExceptionNames) && ExceptionNames[vector] != "" {
		return fmt.Sprintf("EXCEPTION: %s", ExceptionNames[vector])
	}
	return fmt.Sprintf("UNHANDLED INTERRUPT %#02x", vector)
}

// sendEOI acknowledges a hardware IRQ at the PIC(s) it came from. CPU
// exceptions and software interrupts below MasterOffset, and anything past
// the 16 remapped IRQ lines, never reach a PIC and are left alone.
func (m *Manager) sendEOI(vector int) {
	if vector < MasterOffset {
		return
	}
	if vector >= MasterOffset+16 {
		return
	}
	masterCmd := ioport.NewPort8(m.bus, masterCommandPort)
	if vector >= SlaveOffset {
		slaveCmd := ioport.NewPort8(m.bus, slaveCommandPort)
		slaveCmd.Write(eoiCommand)
	}
	masterCmd.Write(eoiCommand)
}
