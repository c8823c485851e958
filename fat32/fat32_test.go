package fat32_test

import (
	"testing"

	kernerr "github.com/nullboot/kernel/errors"
	"github.com/nullboot/kernel/fat32"
	"github.com/nullboot/kernel/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mountTestVolume(t *testing.T) *fat32.Volume {
	t.Helper()
	dev := testkit.NewFormattedFAT32Image(testkit.DefaultFormatOptions(64))
	v, err := fat32.Mount(dev, 0)
	require.NoError(t, err)
	return v
}

func TestMountRejectsBadSignature(t *testing.T) {
	dev := testkit.NewMemoryBlockDevice(4)
	_, err := fat32.Mount(dev, 0)
	require.Error(t, err)
}

func TestMountParsesBPB(t *testing.T) {
	v := mountTestVolume(t)
	assert.EqualValues(t, 2, v.RootCluster())
}

func TestTouchThenListShowsFile(t *testing.T) {
	v := mountTestVolume(t)
	require.NoError(t, v.Touch("/hello.txt"))

	entries, err := v.List("/")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "HELLO.TXT", entries[0].Name)
}

func TestTouchDuplicateNameFails(t *testing.T) {
	v := mountTestVolume(t)
	require.NoError(t, v.Touch("/a.txt"))
	err := v.Touch("/a.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, kernerr.ErrAlreadyExists)
}

func TestMkdirThenNestedTouch(t *testing.T) {
	v := mountTestVolume(t)
	require.NoError(t, v.Mkdir("/sub"))
	require.NoError(t, v.Touch("/sub/file.txt"))

	entries, err := v.List("/sub")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "FILE.TXT", entries[0].Name)
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	v := mountTestVolume(t)
	require.NoError(t, v.Touch("/data.bin"))

	fd, err := v.Open("/data.bin")
	require.NoError(t, err)
	payload := []byte("the quick brown fox jumps over the lazy dog")
	n, err := v.Write(fd, payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	require.NoError(t, v.Close(fd))

	fd2, err := v.Open("/data.bin")
	require.NoError(t, err)
	buf := make([]byte, len(payload))
	n, err = v.Read(fd2, buf)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, payload, buf)
	require.NoError(t, v.Close(fd2))
}

func TestWriteSpanningMultipleClustersRoundTrips(t *testing.T) {
	v := mountTestVolume(t)
	require.NoError(t, v.Touch("/big.bin"))
	fd, err := v.Open("/big.bin")
	require.NoError(t, err)

	payload := make([]byte, fat32.SectorSize*3+17)
	for i := range payload {
		payload[i] = byte(i)
	}
	n, err := v.Write(fd, payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.NoError(t, v.Close(fd))

	fd2, err := v.Open("/big.bin")
	require.NoError(t, err)
	buf := make([]byte, len(payload))
	n, err = v.Read(fd2, buf)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, payload, buf)
}

func TestOpenDirectoryFails(t *testing.T) {
	v := mountTestVolume(t)
	require.NoError(t, v.Mkdir("/sub"))
	_, err := v.Open("/sub")
	require.Error(t, err)
	assert.ErrorIs(t, err, kernerr.ErrIsADirectory)
}

func TestRemoveRejectsDirectory(t *testing.T) {
	v := mountTestVolume(t)
	require.NoError(t, v.Mkdir("/sub"))
	err := v.Remove("/sub")
	require.Error(t, err)
	assert.ErrorIs(t, err, kernerr.ErrIsADirectory)
}

func TestRemoveThenNotFound(t *testing.T) {
	v := mountTestVolume(t)
	require.NoError(t, v.Touch("/f.txt"))
	require.NoError(t, v.Remove("/f.txt"))

	_, err := v.Resolve("/f.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, kernerr.ErrNotFound)
}

func TestRmdirRecursivelyDeletesContents(t *testing.T) {
	v := mountTestVolume(t)
	require.NoError(t, v.Mkdir("/sub"))
	require.NoError(t, v.Touch("/sub/a.txt"))
	require.NoError(t, v.Mkdir("/sub/child"))
	require.NoError(t, v.Touch("/sub/child/b.txt"))

	require.NoError(t, v.Rmdir("/sub"))
	_, err := v.Resolve("/sub")
	require.Error(t, err)
	assert.ErrorIs(t, err, kernerr.ErrNotFound)
}

func TestDeletedSlotIsReusedByNextCreate(t *testing.T) {
	v := mountTestVolume(t)
	require.NoError(t, v.Touch("/a.txt"))
	require.NoError(t, v.Remove("/a.txt"))
	require.NoError(t, v.Touch("/b.txt"))

	entries, err := v.List("/")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "B.TXT", entries[0].Name)
}

func TestTooManyOpenFilesFails(t *testing.T) {
	v := mountTestVolume(t)
	for i := 0; i < fat32.MaxOpenFiles; i++ {
		require.NoError(t, v.Touch(string(rune('a'+i))+".txt"))
		_, err := v.Open("/" + string(rune('a'+i)) + ".txt")
		require.NoError(t, err)
	}
	require.NoError(t, v.Touch("/overflow.txt"))
	_, err := v.Open("/overflow.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, kernerr.ErrTooManyOpenFiles)
}
