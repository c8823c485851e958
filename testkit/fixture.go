package testkit

import (
	"bytes"
	"fmt"
	"io"

	"github.com/nullboot/kernel/utilities/compression"
	"github.com/xaionaro-go/bytesextra"
)

// CompressFixture RLE8+gzip compresses a raw disk image, for checking
// synthetic fixtures into the repository without storing the whole image
// verbatim.
func CompressFixture(raw []byte) ([]byte, error) {
	var out bytes.Buffer
	if _, err := compression.CompressImage(bytes.NewReader(raw), &out); err != nil {
		return nil, fmt.Errorf("compress fixture: %w", err)
	}
	return out.Bytes(), nil
}

// LoadFixture decompresses a fixture produced by CompressFixture and returns
// a seekable stream over it sized exactly totalSectors*sectorSize. Writes to
// the returned stream do not affect compressed.
func LoadFixture(compressed []byte, sectorSize, totalSectors int) (io.ReadWriteSeeker, error) {
	decompressed, err := compression.DecompressImageToBytes(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("decompress fixture: %w", err)
	}

	want := sectorSize * totalSectors
	if len(decompressed) != want {
		return nil, fmt.Errorf(
			"decompressed fixture is %d bytes, expected %d", len(decompressed), want)
	}
	return bytesextra.NewReadWriteSeeker(decompressed), nil
}

// StreamToBlockDevice copies every sector out of a seekable disk image
// stream into a fresh MemoryBlockDevice, for adapting a LoadFixture result
// to the fat32.BlockDevice interface.
func StreamToBlockDevice(stream io.ReadWriteSeeker, sectorSize, totalSectors int) (*MemoryBlockDevice, error) {
	if _, err := stream.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	dev := NewMemoryBlockDevice(totalSectors)
	buf := make([]byte, sectorSize)
	for lba := 0; lba < totalSectors; lba++ {
		if _, err := io.ReadFull(stream, buf); err != nil {
			return nil, fmt.Errorf("read sector %d from fixture: %w", lba, err)
		}
		dev.WriteSector(uint32(lba), buf)
	}
	return dev, nil
}
