// Package heap implements the kernel's first-fit free-list allocator: the
// sole source of dynamic memory backing the global new/delete shims. Real
// hardware has the allocator carve a header directly into the arena and
// hand back a pointer just past it; Go has no raw pointers into a byte
// slice that survive reslicing, so chunks here are addressed by their
// offset into the arena instead, with the header stored at that offset.
package heap

import (
	"fmt"

	"github.com/boljen/go-bitmap"
	kernerr "github.com/nullboot/kernel/errors"
)

// HeaderSize is the number of bytes of bookkeeping prepended to every
// chunk, free or allocated.
const HeaderSize = 16

// NullPointer is the sentinel offset returned by Allocate on failure and
// accepted as a no-op by Deallocate, standing in for a real null pointer.
const NullPointer = ^uint32(0)

// header is the on-arena layout of one chunk's bookkeeping. prev/next are
// byte offsets into the arena, not Go pointers, mirroring the doubly-linked
// list of intrusive headers a C allocator would walk with ptr arithmetic.
type header struct {
	prev      uint32
	next      uint32
	allocated bool
	size      uint32
}

const noLink = ^uint32(0)

// Heap is a fixed memory window managed as a doubly-linked chain of chunks
// in ascending address order. It is not safe for concurrent use; the
// kernel serializes all access by never preempting allocator code.
type Heap struct {
	arena []byte
	// occupied cross-checks the header chain's allocated bits: bit i is set
	// while byte i of the arena belongs to a live allocation's payload. It
	// never participates in the allocation decision itself, only in the
	// consistency assertions exercised by tests.
	occupied bitmap.Bitmap
}

// New carves out a single free chunk spanning the whole window.
func New(size uint32) *Heap {
	h := &Heap{
		arena:    make([]byte, size),
		occupied: bitmap.NewSlice(int(size)),
	}
	h.putHeader(0, header{prev: noLink, next: noLink, allocated: false, size: size - HeaderSize})
	return h
}

func (h *Heap) headerAt(offset uint32) header {
	b := h.arena[offset : offset+HeaderSize]
	return header{
		prev:      le32(b[0:4]),
		next:      le32(b[4:8]),
		allocated: b[8] != 0,
		size:      le32(b[9:13]),
	}
}

func (h *Heap) putHeader(offset uint32, hdr header) {
	b := h.arena[offset : offset+HeaderSize]
	putLE32(b[0:4], hdr.prev)
	putLE32(b[4:8], hdr.next)
	if hdr.allocated {
		b[8] = 1
	} else {
		b[8] = 0
	}
	putLE32(b[9:13], hdr.size)
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func (h *Heap) payloadOffset(chunkOffset uint32) uint32 { return chunkOffset + HeaderSize }
func (h *Heap) chunkOffset(payloadOffset uint32) uint32 { return payloadOffset - HeaderSize }

// Allocate performs first-fit: scan the chunk chain from the head and pick
// the first free chunk whose size can satisfy n. It returns the offset of
// the chunk's payload (what a caller would treat as the returned pointer),
// or NullPointer if no chunk fits.
func (h *Heap) Allocate(n uint32) uint32 {
	offset := uint32(0)
	for {
		hdr := h.headerAt(offset)
		if !hdr.allocated && hdr.size >= n {
			return h.splitAndTake(offset, hdr, n)
		}
		if hdr.next == noLink {
			return NullPointer
		}
		offset = hdr.next
	}
}

// splitAndTake carves n bytes out of the free chunk at offset. If the
// leftover space can hold another header plus at least one payload byte,
// the tail becomes a new free chunk; otherwise the whole chunk (including
// its slack) is handed to the caller, bounding internal fragmentation to
// at most one header's worth of waste.
func (h *Heap) splitAndTake(offset uint32, hdr header, n uint32) uint32 {
	remaining := hdr.size - n
	if remaining >= HeaderSize+1 {
		tailOffset := offset + HeaderSize + n
		h.putHeader(tailOffset, header{
			prev:      offset,
			next:      hdr.next,
			allocated: false,
			size:      remaining - HeaderSize,
		})
		if hdr.next != noLink {
			next := h.headerAt(hdr.next)
			next.prev = tailOffset
			h.putHeader(hdr.next, next)
		}
		hdr.next = tailOffset
		hdr.size = n
	}
	hdr.allocated = true
	h.putHeader(offset, hdr)
	h.markOccupied(h.payloadOffset(offset), hdr.size, true)
	return h.payloadOffset(offset)
}

// Deallocate recovers the header immediately preceding p, marks it free,
// and coalesces with a free predecessor and then a free successor.
// Deallocating NullPointer is a no-op.
func (h *Heap) Deallocate(p uint32) {
	if p == NullPointer {
		return
	}
	offset := h.chunkOffset(p)
	hdr := h.headerAt(offset)
	h.markOccupied(p, hdr.size, false)
	hdr.allocated = false
	h.putHeader(offset, hdr)

	if hdr.prev != noLink {
		prev := h.headerAt(hdr.prev)
		if !prev.allocated {
			offset, hdr = h.merge(hdr.prev, prev, offset, hdr)
		}
	}
	if hdr.next != noLink {
		next := h.headerAt(hdr.next)
		if !next.allocated {
			offset, hdr = h.merge(offset, hdr, hdr.next, next)
		}
	}
}

// merge folds the chunk at rightOffset into the chunk at leftOffset,
// absorbing its header and payload into the left chunk's size and
// re-pointing the new successor's prev link. Returns the surviving
// chunk's offset and header.
func (h *Heap) merge(leftOffset uint32, left header, rightOffset uint32, right header) (uint32, header) {
	left.size += HeaderSize + right.size
	left.next = right.next
	if right.next != noLink {
		successor := h.headerAt(right.next)
		successor.prev = leftOffset
		h.putHeader(right.next, successor)
	}
	h.putHeader(leftOffset, left)
	return leftOffset, left
}

func (h *Heap) markOccupied(payloadOffset uint32, size uint32, value bool) {
	for i := uint32(0); i < size; i++ {
		h.occupied.Set(int(payloadOffset+i), value)
	}
}

// ChunkInfo is the read-only view of one chunk exposed by Walk, used by
// tests asserting the allocator's structural invariants.
type ChunkInfo struct {
	Offset    uint32
	Size      uint32
	Allocated bool
}

// Walk returns every chunk in ascending address order.
func (h *Heap) Walk() []ChunkInfo {
	var out []ChunkInfo
	offset := uint32(0)
	for {
		hdr := h.headerAt(offset)
		out = append(out, ChunkInfo{Offset: offset, Size: hdr.size, Allocated: hdr.allocated})
		if hdr.next == noLink {
			return out
		}
		offset = hdr.next
	}
}

// VerifyOccupancy cross-checks the occupied bitmap against the header
// chain's allocated bits: every payload byte of an allocated chunk must be
// set, every payload byte of a free chunk must be clear. It returns an
// error naming the first mismatching offset, or nil if the bitmap and the
// chain agree.
func (h *Heap) VerifyOccupancy() error {
	for _, c := range h.Walk() {
		payload := h.payloadOffset(c.Offset)
		for i := uint32(0); i < c.Size; i++ {
			if h.occupied.Get(int(payload+i)) != c.Allocated {
				return kernerr.ErrChunkBoundsExceeded.WithMessage(fmt.Sprintf(
					"occupancy bitmap disagrees with chunk at offset %d at byte %d",
					c.Offset, payload+i))
			}
		}
	}
	return nil
}

// FreeBytes sums the payload size of every free chunk, for round-trip
// tests that check a deallocate restores total free space.
func (h *Heap) FreeBytes() uint32 {
	var total uint32
	for _, c := range h.Walk() {
		if !c.Allocated {
			total += c.Size
		}
	}
	return total
}

// Read copies n bytes out of the payload at p, failing if the range
// overruns the chunk's recorded size.
func (h *Heap) Read(p uint32, n uint32) ([]byte, error) {
	offset := h.chunkOffset(p)
	hdr := h.headerAt(offset)
	if n > hdr.size {
		return nil, kernerr.ErrChunkBoundsExceeded.WithMessage("read")
	}
	out := make([]byte, n)
	copy(out, h.arena[p:p+n])
	return out, nil
}

// Write copies data into the payload at p, failing if it would overrun the
// chunk's recorded size.
func (h *Heap) Write(p uint32, data []byte) error {
	offset := h.chunkOffset(p)
	hdr := h.headerAt(offset)
	if uint32(len(data)) > hdr.size {
		return kernerr.ErrChunkBoundsExceeded.WithMessage("write")
	}
	copy(h.arena[p:], data)
	return nil
}
