package testkit

import "github.com/nullboot/kernel/fat32"

// MemoryBlockDevice is an in-memory fat32.BlockDevice: every sector lives in
// a flat byte slice, addressed directly by LBA. It stands in for an
// ata.SectorCache-backed device in filesystem and terminal tests that don't
// need to exercise the ATA PIO protocol itself.
type MemoryBlockDevice struct {
	sectors []byte
}

// NewMemoryBlockDevice returns a zeroed device with room for totalSectors
// sectors.
func NewMemoryBlockDevice(totalSectors int) *MemoryBlockDevice {
	return &MemoryBlockDevice{sectors: make([]byte, totalSectors*fat32.SectorSize)}
}

// ReadSector implements fat32.BlockDevice.
func (m *MemoryBlockDevice) ReadSector(lba uint32) ([]byte, error) {
	offset := int(lba) * fat32.SectorSize
	out := make([]byte, fat32.SectorSize)
	copy(out, m.sectors[offset:offset+fat32.SectorSize])
	return out, nil
}

// WriteSector implements fat32.BlockDevice.
func (m *MemoryBlockDevice) WriteSector(lba uint32, data []byte) {
	offset := int(lba) * fat32.SectorSize
	copy(m.sectors[offset:offset+fat32.SectorSize], data)
}

// DefaultFormatOptions is a fixed small layout for in-memory test images:
// one reserved sector, one two-sector FAT, one sector per cluster. It does
// not follow the "fat32-32mib" geometry.
func DefaultFormatOptions(totalSectors int) fat32.FormatOptions {
	return fat32.FormatOptions{
		TotalSectors:      uint32(totalSectors),
		SectorsPerCluster: 1,
		ReservedSectors:   1,
		FATCopies:         1,
		TableSizeSectors:  2,
	}
}

// NewFormattedFAT32Image builds a minimal valid in-memory FAT32 volume via
// fat32.Format, for tests that want a ready-to-mount fat32.BlockDevice
// without formatting a real disk image file.
func NewFormattedFAT32Image(opts fat32.FormatOptions) *MemoryBlockDevice {
	dev := NewMemoryBlockDevice(int(opts.TotalSectors))
	if err := fat32.Format(dev, 0, opts); err != nil {
		panic(err)
	}
	return dev
}
