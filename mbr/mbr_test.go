package mbr_test

import (
	"encoding/binary"
	"testing"

	kernerr "github.com/nullboot/kernel/errors"
	"github.com/nullboot/kernel/mbr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSector(entries [4]mbr.PartitionEntry) []byte {
	sector := make([]byte, mbr.SectorSize)
	for i, e := range entries {
		off := 0x1BE + i*16
		if e.Bootable {
			sector[off] = 0x80
		}
		sector[off+4] = e.PartitionID
		binary.LittleEndian.PutUint32(sector[off+8:], e.StartLBA)
		binary.LittleEndian.PutUint32(sector[off+12:], e.Length)
	}
	binary.LittleEndian.PutUint16(sector[510:], 0xAA55)
	return sector
}

func TestParseRejectsMissingSignature(t *testing.T) {
	sector := make([]byte, mbr.SectorSize)
	_, err := mbr.Parse(sector)
	require.Error(t, err)
	assert.ErrorIs(t, err, kernerr.ErrBadBootSignature)
}

func TestParseDecodesFAT32Partition(t *testing.T) {
	sector := buildSector([4]mbr.PartitionEntry{
		{PartitionID: mbr.PartitionTypeFAT32LBA, StartLBA: 2048, Length: 65536, Bootable: true},
	})
	table, err := mbr.Parse(sector)
	require.NoError(t, err)

	part, ok := table.FirstFAT32()
	require.True(t, ok)
	assert.EqualValues(t, 2048, part.StartLBA)
	assert.EqualValues(t, 65536, part.Length)
	assert.True(t, part.Bootable)
}

func TestEncodeThenParseRoundTrips(t *testing.T) {
	table := mbr.Table{
		Partitions: [4]mbr.PartitionEntry{
			{PartitionID: mbr.PartitionTypeFAT32LBA, StartLBA: 2048, Length: 65536, Bootable: true},
		},
	}
	decoded, err := mbr.Parse(table.Encode())
	require.NoError(t, err)

	part, ok := decoded.FirstFAT32()
	require.True(t, ok)
	assert.EqualValues(t, 2048, part.StartLBA)
	assert.EqualValues(t, 65536, part.Length)
	assert.True(t, part.Bootable)
}

func TestFirstFAT32ReturnsFalseWhenNoneQualify(t *testing.T) {
	sector := buildSector([4]mbr.PartitionEntry{{PartitionID: 0x07}})
	table, err := mbr.Parse(sector)
	require.NoError(t, err)
	_, ok := table.FirstFAT32()
	assert.False(t, ok)
}
