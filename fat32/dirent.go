package fat32

import (
	"encoding/binary"
	"strings"
)

// Attribute flags, per the standard FAT directory entry layout.
const (
	AttrReadOnly   = 1 << 0
	AttrHidden     = 1 << 1
	AttrSystem     = 1 << 2
	AttrVolumeID   = 1 << 3
	AttrDirectory  = 1 << 4
	AttrArchive    = 1 << 5
)

const deletedMarker = 0xE5
const endOfDirectoryMarker = 0x00

// Raw field offsets within a 32-byte directory entry.
const (
	direntNameOffset         = 0
	direntExtOffset          = 8
	direntAttrOffset         = 11
	direntFirstClusterHigh   = 20
	direntFirstClusterLow    = 26
	direntFileSizeOffset     = 28
)

// Dirent is the decoded form of one 8.3 directory entry, plus the location
// it was read from so a mutation (size/first-cluster update on write) can
// be written back to the same slot.
type Dirent struct {
	Name         string // combined 8.3 name, e.g. "FILE.TXT" or "SUBDIR"
	Attr         uint8
	FirstCluster uint32
	Size         uint32

	slotCluster uint32 // cluster holding this entry's sector (0 for none yet)
	slotSector  uint8  // sector-in-cluster holding this entry
	slotOffset  int    // byte offset within that sector
}

// IsDirectory reports whether this entry's attribute marks it a directory.
func (d Dirent) IsDirectory() bool { return d.Attr&AttrDirectory != 0 }

// decodeDirent parses one 32-byte slot. ok is false for a deleted or
// end-of-directory slot, in which case the caller should skip it (or stop,
// for end-of-directory).
func decodeDirent(raw []byte) (d Dirent, ok bool, endOfDirectory bool) {
	if raw[0] == endOfDirectoryMarker {
		return Dirent{}, false, true
	}
	if raw[0] == deletedMarker {
		return Dirent{}, false, false
	}
	attr := raw[direntAttrOffset]
	if attr&0x0F == 0x0F {
		// Long filename entry; this engine has no LFN support and skips it.
		return Dirent{}, false, false
	}

	name := decode83Name(raw[direntNameOffset : direntNameOffset+11])
	firstClusterHigh := uint32(binary.LittleEndian.Uint16(raw[direntFirstClusterHigh:]))
	firstClusterLow := uint32(binary.LittleEndian.Uint16(raw[direntFirstClusterLow:]))

	return Dirent{
		Name:         name,
		Attr:         attr,
		FirstCluster: (firstClusterHigh << 16) | firstClusterLow,
		Size:         binary.LittleEndian.Uint32(raw[direntFileSizeOffset:]),
	}, true, false
}

// encodeDirent packs d's fields into a 32-byte slot, leaving timestamp
// fields zeroed since this engine never maintains them.
func encodeDirent(d Dirent) []byte {
	raw := make([]byte, DirentSize)
	name83 := encode83Name(d.Name)
	copy(raw[direntNameOffset:direntNameOffset+8], name83[:8])
	copy(raw[direntExtOffset:direntExtOffset+3], name83[8:11])
	raw[direntAttrOffset] = d.Attr
	binary.LittleEndian.PutUint16(raw[direntFirstClusterHigh:], uint16(d.FirstCluster>>16))
	binary.LittleEndian.PutUint16(raw[direntFirstClusterLow:], uint16(d.FirstCluster))
	binary.LittleEndian.PutUint32(raw[direntFileSizeOffset:], d.Size)
	return raw
}

// encode83Name splits NAME.EXT into the space-padded, uppercased 11-byte
// field a FAT directory entry stores.
func encode83Name(name string) [11]byte {
	var out [11]byte
	for i := range out {
		out[i] = ' '
	}
	if name == "." || name == ".." {
		copy(out[:], name)
		return out
	}

	base, ext, _ := strings.Cut(name, ".")
	base = strings.ToUpper(base)
	ext = strings.ToUpper(ext)
	if len(base) > 8 {
		base = base[:8]
	}
	if len(ext) > 3 {
		ext = ext[:3]
	}
	copy(out[0:8], base)
	copy(out[8:11], ext)
	return out
}

// decode83Name reverses encode83Name, reconstructing a "NAME.EXT" string
// (or a bare name with no dot if the extension field is all spaces).
func decode83Name(raw []byte) string {
	base := strings.TrimRight(string(raw[0:8]), " ")
	ext := strings.TrimRight(string(raw[8:11]), " ")
	if base == "." || strings.TrimRight(string(raw[0:11]), " ") == ".." {
		return strings.TrimRight(string(raw[0:11]), " ")
	}
	if ext == "" {
		return base
	}
	return base + "." + ext
}

// sameName compares two 8.3 names case-insensitively, the directory
// search semantics FAT uses since the on-disk form is already uppercase.
func sameName(a, b string) bool {
	return strings.EqualFold(a, b)
}
