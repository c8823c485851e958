package disks_test

import (
	"testing"

	"github.com/nullboot/kernel/disks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPredefinedDiskGeometryKnownSlug(t *testing.T) {
	g, err := disks.GetPredefinedDiskGeometry("fat32-32mib")
	require.NoError(t, err)
	assert.Equal(t, "fat32-32mib", g.Slug)
	assert.EqualValues(t, 512, g.AddressUnitsPerSector)
}

func TestGetPredefinedDiskGeometryUnknownSlug(t *testing.T) {
	_, err := disks.GetPredefinedDiskGeometry("does-not-exist")
	require.Error(t, err)
}

func TestSlugsIncludesEveryLoadedGeometry(t *testing.T) {
	slugs := disks.Slugs()
	assert.Contains(t, slugs, "fat32-32mib")
	assert.Contains(t, slugs, "35-hd-1440")
}

func TestTotalSizeBytesRoundsUpToWholeByte(t *testing.T) {
	g := disks.DiskGeometry{
		BitsPerAddressUnit:    12,
		AddressUnitsPerSector: 1,
		SectorsPerTrack:       1,
		TotalDataTracks:       1,
		Heads:                 1,
	}
	assert.EqualValues(t, 2, g.TotalSizeBytes())
}
