package fat32_test

import (
	"testing"

	"github.com/nullboot/kernel/fat32"
	"github.com/nullboot/kernel/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatProducesMountableVolume(t *testing.T) {
	dev := testkit.NewMemoryBlockDevice(64)
	opts := fat32.FormatOptions{
		TotalSectors:      64,
		SectorsPerCluster: 1,
		ReservedSectors:   1,
		FATCopies:         1,
		TableSizeSectors:  2,
	}
	require.NoError(t, fat32.Format(dev, 0, opts))

	v, err := fat32.Mount(dev, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, v.RootCluster())

	entries, err := v.List("/")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFormatThenCreateFilesSurvivesRootClusterAllocation(t *testing.T) {
	dev := testkit.NewMemoryBlockDevice(64)
	opts := fat32.DefaultFormatOptions(64)
	require.NoError(t, fat32.Format(dev, 0, opts))

	v, err := fat32.Mount(dev, 0)
	require.NoError(t, err)

	// If the root directory's own cluster were left unmarked in the FAT,
	// the first allocation would hand it straight back out.
	require.NoError(t, v.Touch("/a.txt"))
	require.NoError(t, v.Touch("/b.txt"))

	entries, err := v.List("/")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestFormatAtNonZeroPartitionOffsetMounts(t *testing.T) {
	const partitionLBA = 8
	dev := testkit.NewMemoryBlockDevice(80)
	opts := fat32.DefaultFormatOptions(64)
	require.NoError(t, fat32.Format(dev, partitionLBA, opts))

	v, err := fat32.Mount(dev, partitionLBA)
	require.NoError(t, err)
	require.NoError(t, v.Touch("/c.txt"))

	entries, err := v.List("/")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
