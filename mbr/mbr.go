// Package mbr parses the Master Boot Record sector of a BIOS-partitioned
// disk: the boot signature and the four primary partition table entries.
package mbr

import (
	"encoding/binary"

	kernerr "github.com/nullboot/kernel/errors"
)

// SectorSize is the size of the MBR sector itself.
const SectorSize = 512

const bootSignatureOffset = 510
const bootSignature = 0xAA55
const partitionTableOffset = 0x1BE
const partitionEntrySize = 16
const numPartitionEntries = 4

// FAT32 partition type IDs, per the data model: LBA FAT32 (0x0C) and
// CHS/overflowing FAT32 (0x0B) are both accepted.
const (
	PartitionTypeFAT32CHS = 0x0B
	PartitionTypeFAT32LBA = 0x0C
)

// PartitionEntry is one decoded 16-byte entry from the partition table.
type PartitionEntry struct {
	Bootable    bool
	PartitionID uint8
	StartLBA    uint32
	Length      uint32
}

// IsFAT32 reports whether PartitionID names one of the FAT32 type bytes.
func (p PartitionEntry) IsFAT32() bool {
	return p.PartitionID == PartitionTypeFAT32CHS || p.PartitionID == PartitionTypeFAT32LBA
}

// Table is the parsed form of an MBR sector.
type Table struct {
	Partitions [numPartitionEntries]PartitionEntry
}

// Parse validates the boot signature and decodes the four partition table
// entries out of a raw 512-byte MBR sector.
func Parse(sector []byte) (Table, error) {
	if len(sector) < SectorSize {
		return Table{}, kernerr.ErrBadBootSignature.WithMessage("sector shorter than 512 bytes")
	}
	signature := binary.LittleEndian.Uint16(sector[bootSignatureOffset : bootSignatureOffset+2])
	if signature != bootSignature {
		return Table{}, kernerr.ErrBadBootSignature.WithMessage("missing 0xAA55 signature")
	}

	var table Table
	for i := 0; i < numPartitionEntries; i++ {
		entry := sector[partitionTableOffset+i*partitionEntrySize:]
		table.Partitions[i] = PartitionEntry{
			Bootable:    entry[0] == 0x80,
			PartitionID: entry[4],
			StartLBA:    binary.LittleEndian.Uint32(entry[8:12]),
			Length:      binary.LittleEndian.Uint32(entry[12:16]),
		}
	}
	return table, nil
}

// FirstFAT32 returns the first partition entry whose type byte marks it as
// FAT32, or false if none qualifies.
func (t Table) FirstFAT32() (PartitionEntry, bool) {
	for _, p := range t.Partitions {
		if p.IsFAT32() {
			return p, true
		}
	}
	return PartitionEntry{}, false
}

// Encode renders table back into a 512-byte MBR sector, including the
// 0xAA55 boot signature. Entries beyond the four populated in t.Partitions
// are left zeroed, the standard's way of marking a slot unused.
func (t Table) Encode() []byte {
	sector := make([]byte, SectorSize)
	for i, p := range t.Partitions {
		off := partitionTableOffset + i*partitionEntrySize
		if p.Bootable {
			sector[off] = 0x80
		}
		sector[off+4] = p.PartitionID
		binary.LittleEndian.PutUint32(sector[off+8:], p.StartLBA)
		binary.LittleEndian.PutUint32(sector[off+12:], p.Length)
	}
	binary.LittleEndian.PutUint16(sector[bootSignatureOffset:], bootSignature)
	return sector
}
