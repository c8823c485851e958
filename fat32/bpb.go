// Package fat32 implements a read/write FAT32 engine: BPB parsing,
// cluster-chain walking and allocation, 8.3 directory traversal and
// mutation, and a fixed file descriptor table for open/read/write/close.
package fat32

import (
	"encoding/binary"

	kernerr "github.com/nullboot/kernel/errors"

	"github.com/hashicorp/go-multierror"
)

// SectorSize is the sector size this engine assumes throughout; the BPB's
// own BytesPerSector field is decoded but neither checked against it nor
// substituted in.
const SectorSize = 512

// DirentSize is the size of one 8.3 directory entry.
const DirentSize = 32

// BPB32 is the decoded subset of the BIOS Parameter Block this engine
// consumes from the first sector of a FAT32 partition.
type BPB32 struct {
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	FATCopies         uint8
	TableSize         uint32 // sectors per FAT
	RootCluster       uint32
	ExtendedBootSig   uint8
	FileSystemType    [8]byte

	// Derived layout, computed once at parse time.
	FATStart  uint32 // LBA of the first FAT, relative to the partition
	DataStart uint32 // LBA of cluster 2, relative to the partition
}

// raw field offsets within the 512-byte boot sector, per the standard
// FAT32 BPB layout.
const (
	offBytesPerSector    = 11
	offSectorsPerCluster = 13
	offReservedSectors   = 14
	offFATCopies         = 16
	offTableSize32       = 36
	offExtendedBootSig   = 66
	offFileSystemType    = 82
	offRootCluster       = 44
)

// ParseBPB32 validates and decodes the BPB embedded in a partition's first
// sector. Every structural check the data model calls out is aggregated
// into a single multierror rather than failing fast on the first one, so a
// caller sees every defect in a corrupt boot sector at once.
func ParseBPB32(sector []byte) (BPB32, error) {
	var result *multierror.Error
	if len(sector) < SectorSize {
		return BPB32{}, kernerr.ErrBadBootSignature.WithMessage("boot sector shorter than 512 bytes")
	}

	bpb := BPB32{
		BytesPerSector:    binary.LittleEndian.Uint16(sector[offBytesPerSector:]),
		SectorsPerCluster: sector[offSectorsPerCluster],
		ReservedSectors:   binary.LittleEndian.Uint16(sector[offReservedSectors:]),
		FATCopies:         sector[offFATCopies],
		TableSize:         binary.LittleEndian.Uint32(sector[offTableSize32:]),
		RootCluster:       binary.LittleEndian.Uint32(sector[offRootCluster:]),
		ExtendedBootSig:   sector[offExtendedBootSig],
	}
	copy(bpb.FileSystemType[:], sector[offFileSystemType:offFileSystemType+8])

	if bpb.ExtendedBootSig != 0x28 && bpb.ExtendedBootSig != 0x29 {
		result = multierror.Append(result, kernerr.ErrBadBootSignature.WithMessage("extended boot signature is neither 0x28 nor 0x29"))
	}
	if string(bpb.FileSystemType[:]) != "FAT32   " {
		result = multierror.Append(result, kernerr.ErrNotFAT32.WithMessage("filesystem type label is not \"FAT32   \""))
	}
	if bpb.SectorsPerCluster == 0 {
		result = multierror.Append(result, kernerr.ErrZeroBPBField.WithMessage("sectors_per_cluster"))
	}
	if bpb.ReservedSectors == 0 {
		result = multierror.Append(result, kernerr.ErrZeroBPBField.WithMessage("reserved_sectors"))
	}
	if bpb.FATCopies == 0 {
		result = multierror.Append(result, kernerr.ErrZeroBPBField.WithMessage("fat_copies"))
	}
	if bpb.TableSize == 0 {
		result = multierror.Append(result, kernerr.ErrZeroBPBField.WithMessage("table_size"))
	}
	if bpb.RootCluster < 2 {
		result = multierror.Append(result, kernerr.ErrBadRootCluster)
	}

	if result != nil {
		return BPB32{}, result
	}

	bpb.FATStart = uint32(bpb.ReservedSectors)
	bpb.DataStart = bpb.FATStart + bpb.TableSize*uint32(bpb.FATCopies)
	return bpb, nil
}

// ClusterToLBA maps a cluster number (>= 2) to its first data sector,
// relative to the start of the partition.
func (b BPB32) ClusterToLBA(cluster uint32) uint32 {
	return b.DataStart + (cluster-2)*uint32(b.SectorsPerCluster)
}

// BytesPerCluster is the size in bytes of one cluster's worth of data.
func (b BPB32) BytesPerCluster() uint32 {
	return uint32(b.SectorsPerCluster) * SectorSize
}

// fatSectorAndOffset locates the FAT sector and byte offset within it
// holding the 32-bit entry for cluster.
func (b BPB32) fatSectorAndOffset(cluster uint32) (sector uint32, byteOffset uint32) {
	entriesPerSector := uint32(SectorSize / 4)
	sector = b.FATStart + cluster/entriesPerSector
	byteOffset = (cluster % entriesPerSector) * 4
	return
}
