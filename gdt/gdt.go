// Package gdt builds the flat-model Global Descriptor Table used by the
// kernel: a null entry, an unused entry, and flat 64 MiB code/data segments.
// The encoding follows the packed 8-byte segment descriptor layout of the
// x86 architecture; SegmentBase/SegmentLimit are the pure inverse functions
// used by the encoding tests in section 8 of the design notes.
package gdt

import "encoding/binary"

// Access byte flags.
const (
	AccessPresent     = 1 << 7
	AccessDPL0        = 0 << 5
	AccessDescType    = 1 << 4 // 1 = code/data, 0 = system
	AccessExecutable  = 1 << 3
	AccessReadWrite   = 1 << 1
	AccessCodeSegment = AccessPresent | AccessDescType | AccessExecutable | AccessReadWrite | AccessDPL0
	AccessDataSegment = AccessPresent | AccessDescType | AccessReadWrite | AccessDPL0
)

// Flags nibble (the top nibble of Entry.Flags): granularity (4 KiB vs byte)
// and 32-bit default operand size.
const (
	FlagGranularity4K = 1 << 7
	Flag32BitMode     = 1 << 6
)

// EntrySize is the size in bytes of one packed segment descriptor.
const EntrySize = 8

// NumEntries is the number of slots in the kernel's flat-model GDT: null,
// unused, code, data.
const NumEntries = 4

// Selector offsets, i.e. byte index of each descriptor within the table.
// These are the values loaded into CS/DS/SS and into IDT gates.
const (
	NullSelector = 0
	// index 1 is reserved/unused, matching the teacher's four-entry layout
	CodeSelector = 2 * EntrySize
	DataSelector = 3 * EntrySize
)

// Entry is the decoded form of one GDT descriptor.
type Entry struct {
	Base   uint32
	Limit  uint32 // pre-scaling byte limit, e.g. 64 MiB
	Access uint8
	Flags  uint8 // only the top nibble is meaningful; low nibble is reserved
}

// granularityQuantum implements the invariant from the data model: if the
// low 12 bits of Limit aren't all set, the stored 20-bit field is
// (Limit>>12)-1; otherwise it's Limit>>12. This only matters when 4 KiB
// granularity is requested; byte-granular limits are stored as-is (clamped
// to 20 bits).
func granularityQuantum(limit uint32, flags uint8) uint32 {
	if flags&FlagGranularity4K == 0 {
		return limit & 0xFFFFF
	}
	scaled := limit >> 12
	if limit&0xFFF != 0xFFF {
		scaled--
	}
	return scaled & 0xFFFFF
}

// Encode packs an Entry into its 8-byte on-the-wire representation.
func (e Entry) Encode() [EntrySize]byte {
	var raw [EntrySize]byte
	limit20 := granularityQuantum(e.Limit, e.Flags)

	binary.LittleEndian.PutUint16(raw[0:2], uint16(limit20&0xFFFF))
	raw[2] = byte(e.Base)
	raw[3] = byte(e.Base >> 8)
	raw[4] = byte(e.Base >> 16)
	raw[5] = e.Access
	raw[6] = byte((limit20>>16)&0x0F) | (e.Flags & 0xF0)
	raw[7] = byte(e.Base >> 24)
	return raw
}

// Decode reverses Encode, recovering Base and the 20-bit scaled limit field
// (not the original pre-scaling byte limit -- that information is lost
// whenever 4 KiB granularity rounds it down, per the invariant above).
func Decode(raw [EntrySize]byte) (base uint32, scaledLimit uint32, access uint8, flags uint8) {
	scaledLimit = uint32(binary.LittleEndian.Uint16(raw[0:2]))
	scaledLimit |= uint32(raw[6]&0x0F) << 16

	base = uint32(raw[2]) | uint32(raw[3])<<8 | uint32(raw[4])<<16 | uint32(raw[7])<<24
	access = raw[5]
	flags = raw[6] & 0xF0
	return
}

// SegmentBase recovers the 32-bit base address stored in an encoded entry.
func SegmentBase(raw [EntrySize]byte) uint32 {
	base, _, _, _ := Decode(raw)
	return base
}

// SegmentLimit recovers the scaled 20-bit limit field stored in an encoded
// entry (the quantum count, in bytes or 4 KiB pages depending on the
// granularity flag -- not necessarily the original byte limit passed to
// Encode, by the rounding invariant).
func SegmentLimit(raw [EntrySize]byte) uint32 {
	_, limit, _, _ := Decode(raw)
	return limit
}

// Table is the in-memory image of the GDT plus the GDTR fields describing
// it (size-1 and a base address, here just an opaque tag since this is a
// simulation rather than a real linear address).
type Table struct {
	entries [NumEntries][EntrySize]byte
}

// New builds the kernel's standard flat-model table: a null descriptor, an
// unused slot, a 64 MiB code segment and a 64 MiB data segment, both based
// at 0.
func New() *Table {
	t := &Table{}
	t.entries[0] = Entry{}.Encode() // null descriptor
	t.entries[1] = Entry{}.Encode() // unused
	t.entries[2] = Entry{
		Base:   0,
		Limit:  64 * 1024 * 1024,
		Access: AccessCodeSegment,
		Flags:  FlagGranularity4K | Flag32BitMode,
	}.Encode()
	t.entries[3] = Entry{
		Base:   0,
		Limit:  64 * 1024 * 1024,
		Access: AccessDataSegment,
		Flags:  FlagGranularity4K | Flag32BitMode,
	}.Encode()
	return t
}

// Bytes returns the packed table, ready to be pointed at by a GDTR.
func (t *Table) Bytes() []byte {
	out := make([]byte, 0, NumEntries*EntrySize)
	for _, e := range t.entries {
		out = append(out, e[:]...)
	}
	return out
}

// SizeMinusOne is the value stored in the GDTR's limit field.
func (t *Table) SizeMinusOne() uint16 {
	return uint16(len(t.entries)*EntrySize - 1)
}

// CodeSegmentSelector returns the byte offset of the code descriptor.
func (t *Table) CodeSegmentSelector() uint16 { return CodeSelector }

// DataSegmentSelector returns the byte offset of the data descriptor.
func (t *Table) DataSegmentSelector() uint16 { return DataSelector }

// EntryAt decodes the descriptor at the given selector offset.
func (t *Table) EntryAt(selector uint16) (base uint32, limit uint32, access uint8, flags uint8) {
	index := selector / EntrySize
	return Decode(t.entries[index])
}
