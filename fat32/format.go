package fat32

import "encoding/binary"

// rootDirCluster is the cluster number every FAT32 volume this engine
// formats assigns to the root directory; the standard permits other values
// but nothing here needs that generality.
const rootDirCluster = 2

// FormatOptions describes the handful of BPB fields a freshly formatted
// volume needs; everything else follows FAT32 convention or is computed.
type FormatOptions struct {
	TotalSectors      uint32
	SectorsPerCluster uint8
	ReservedSectors   uint16
	FATCopies         uint8
	TableSizeSectors  uint32
}

// DefaultFormatOptions picks a minimal, valid layout for a volume of the
// given size: one reserved sector, one FAT, one sector per cluster, and a
// FAT sized generously enough to address every cluster the volume could
// hold.
func DefaultFormatOptions(totalSectors uint32) FormatOptions {
	entriesPerFATSector := uint32(SectorSize / 4)
	maxClusters := totalSectors
	tableSizeSectors := maxClusters/entriesPerFATSector + 1

	return FormatOptions{
		TotalSectors:      totalSectors,
		SectorsPerCluster: 1,
		ReservedSectors:   1,
		FATCopies:         1,
		TableSizeSectors:  tableSizeSectors,
	}
}

// Format lays down a fresh FAT32 volume on device starting at partitionLBA:
// a BPB in the partition's first sector, a single FAT with the root
// directory's cluster pre-marked end-of-chain, and a zeroed root directory
// cluster. Sector numbers in opts and written internally are relative to
// partitionLBA, matching how Mount interprets them.
//
// The root cluster's FAT entry must be marked before Format returns — the
// allocator's free-cluster scan starts at cluster 2 and would otherwise
// hand the root directory's own storage back out as "free" the first time
// anything is created.
func Format(device BlockDevice, partitionLBA uint32, opts FormatOptions) error {
	bpbSector := make([]byte, SectorSize)
	binary.LittleEndian.PutUint16(bpbSector[offBytesPerSector:], SectorSize)
	bpbSector[offSectorsPerCluster] = opts.SectorsPerCluster
	binary.LittleEndian.PutUint16(bpbSector[offReservedSectors:], opts.ReservedSectors)
	bpbSector[offFATCopies] = opts.FATCopies
	binary.LittleEndian.PutUint32(bpbSector[offTableSize32:], opts.TableSizeSectors)
	binary.LittleEndian.PutUint32(bpbSector[offRootCluster:], rootDirCluster)
	bpbSector[offExtendedBootSig] = 0x29
	copy(bpbSector[offFileSystemType:], "FAT32   ")
	device.WriteSector(partitionLBA, bpbSector)

	fatSector := make([]byte, SectorSize)
	binary.LittleEndian.PutUint32(fatSector[rootDirCluster*4:], eocMarker)
	device.WriteSector(partitionLBA+uint32(opts.ReservedSectors), fatSector)

	dataStart := uint32(opts.ReservedSectors) + opts.TableSizeSectors*uint32(opts.FATCopies)
	zero := make([]byte, SectorSize)
	for i := uint8(0); i < opts.SectorsPerCluster; i++ {
		device.WriteSector(partitionLBA+dataStart+uint32(i), zero)
	}
	return nil
}
