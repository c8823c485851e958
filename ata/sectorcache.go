package ata

import (
	"github.com/boljen/go-bitmap"
)

// SectorCache is a write-back cache over a fixed-size block device
// addressed by 28-bit LBA. It tracks which sectors are resident and which
// are dirty with a pair of bitmaps rather than scanning a present/dirty
// flag per sector.
type SectorCache struct {
	data         []byte
	loadedBlocks bitmap.Bitmap
	dirtyBlocks  bitmap.Bitmap
	totalSectors uint32
	device       *Device
}

// NewSectorCache builds a cache over the first totalSectors sectors of
// device, with nothing loaded yet.
func NewSectorCache(device *Device, totalSectors uint32) *SectorCache {
	return &SectorCache{
		data:         make([]byte, uint64(totalSectors)*SectorSize),
		loadedBlocks: bitmap.NewSlice(int(totalSectors)),
		dirtyBlocks:  bitmap.NewSlice(int(totalSectors)),
		totalSectors: totalSectors,
		device:       device,
	}
}

func (c *SectorCache) sectorSlice(lba uint32) []byte {
	offset := uint64(lba) * SectorSize
	return c.data[offset : offset+SectorSize]
}

// ReadSector returns the current contents of lba, fetching it from the
// device on first access and serving every subsequent read from memory.
func (c *SectorCache) ReadSector(lba uint32) ([]byte, error) {
	if !c.loadedBlocks.Get(int(lba)) {
		sector, err := c.device.ReadSector(lba)
		if err != nil {
			return nil, err
		}
		copy(c.sectorSlice(lba), sector)
		c.loadedBlocks.Set(int(lba), true)
	}
	out := make([]byte, SectorSize)
	copy(out, c.sectorSlice(lba))
	return out, nil
}

// WriteSector stores data into lba's cached image and marks it dirty. It
// does not touch the device until FlushSector or FlushAll is called.
func (c *SectorCache) WriteSector(lba uint32, data []byte) {
	copy(c.sectorSlice(lba), data)
	c.loadedBlocks.Set(int(lba), true)
	c.dirtyBlocks.Set(int(lba), true)
}

// FlushSector writes lba back to the device if it is dirty, then clears
// its dirty bit.
func (c *SectorCache) FlushSector(lba uint32) error {
	if !c.dirtyBlocks.Get(int(lba)) {
		return nil
	}
	if err := c.device.WriteSector(lba, c.sectorSlice(lba)); err != nil {
		return err
	}
	c.dirtyBlocks.Set(int(lba), false)
	return nil
}

// FlushAll writes every dirty sector back to the device, in ascending LBA
// order, then issues FLUSH CACHE so the device commits them to stable
// media.
func (c *SectorCache) FlushAll() error {
	for lba := uint32(0); lba < c.totalSectors; lba++ {
		if err := c.FlushSector(lba); err != nil {
			return err
		}
	}
	return c.device.Flush()
}

// IsDirty reports whether lba has unflushed writes, exposed for tests that
// assert on cache bookkeeping without a fake device to observe writes
// through.
func (c *SectorCache) IsDirty(lba uint32) bool {
	return c.dirtyBlocks.Get(int(lba))
}
