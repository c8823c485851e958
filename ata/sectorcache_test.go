package ata_test

import (
	"testing"

	"github.com/nullboot/kernel/ata"
	"github.com/nullboot/kernel/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, sectors int) (*ata.SectorCache, *testkit.FakeATADrive) {
	t.Helper()
	drive := testkit.NewFakeATADrive(sectors)
	dev := newTestDevice(drive)
	return ata.NewSectorCache(dev, uint32(sectors)), drive
}

func TestReadSectorFetchesOnceThenServesFromMemory(t *testing.T) {
	cache, drive := newTestCache(t, 8)
	copy(drive.Disk()[ata.SectorSize*3:], []byte("on disk"))

	first, err := cache.ReadSector(3)
	require.NoError(t, err)
	assert.Equal(t, byte('o'), first[0])

	// Mutate the backing disk directly; a cached read must not see it.
	drive.Disk()[ata.SectorSize*3] = 'X'
	second, err := cache.ReadSector(3)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestWriteSectorMarksDirtyUntilFlushed(t *testing.T) {
	cache, _ := newTestCache(t, 4)
	payload := make([]byte, ata.SectorSize)
	copy(payload, []byte("pending"))

	cache.WriteSector(1, payload)
	assert.True(t, cache.IsDirty(1))

	require.NoError(t, cache.FlushSector(1))
	assert.False(t, cache.IsDirty(1))
}

func TestFlushAllWritesEveryDirtySectorToDevice(t *testing.T) {
	cache, drive := newTestCache(t, 4)
	a := make([]byte, ata.SectorSize)
	copy(a, []byte("sector-a"))
	b := make([]byte, ata.SectorSize)
	copy(b, []byte("sector-b"))

	cache.WriteSector(0, a)
	cache.WriteSector(2, b)
	require.NoError(t, cache.FlushAll())

	assert.False(t, cache.IsDirty(0))
	assert.False(t, cache.IsDirty(2))
	assert.Equal(t, a, drive.Disk()[:ata.SectorSize])
	assert.Equal(t, b, drive.Disk()[ata.SectorSize*2:ata.SectorSize*3])
}
