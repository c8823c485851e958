package fat32

import (
	"encoding/binary"

	kernerr "github.com/nullboot/kernel/errors"
)

// fatEntryMask keeps only the 28 low bits of a FAT32 entry; the top 4 bits
// are reserved and must be preserved by implementations that care about
// them, but this engine always treats them as zero.
const fatEntryMask = 0x0FFFFFFF

// eocThreshold is the lowest value that marks end-of-chain; anything at or
// above it terminates a cluster chain.
const eocThreshold = 0x0FFFFFF8

// eocMarker is written into the FAT entry of a chain's new tail.
const eocMarker = 0x0FFFFFFF

// freeEntry marks a FAT slot as unallocated.
const freeEntry = 0

// nextCluster reads the FAT entry for cluster and returns the next
// cluster in its chain, or 0 if cluster is the last one (an EOC marker).
func (v *Volume) nextCluster(cluster uint32) (uint32, error) {
	if cluster < 2 {
		return 0, kernerr.ErrInvalidCluster.WithMessage("cluster number below 2")
	}
	entry, err := v.readFATEntry(cluster)
	if err != nil {
		return 0, err
	}
	if entry >= eocThreshold {
		return 0, nil
	}
	return entry, nil
}

func (v *Volume) readFATEntry(cluster uint32) (uint32, error) {
	sectorLBA, byteOffset := v.bpb.fatSectorAndOffset(cluster)
	sector, err := v.device.ReadSector(v.partitionLBA + sectorLBA)
	if err != nil {
		return 0, kernerr.ErrFATReadFailed.WrapError(err)
	}
	return binary.LittleEndian.Uint32(sector[byteOffset:]) & fatEntryMask, nil
}

// setFATEntry writes value into every FAT copy's entry for cluster, per
// the data model's table_size/fat_copies fields.
func (v *Volume) setFATEntry(cluster uint32, value uint32) error {
	sectorOffset, byteOffset := v.bpb.fatSectorAndOffset(cluster)
	for copyIndex := uint8(0); copyIndex < v.bpb.FATCopies; copyIndex++ {
		lba := v.partitionLBA + sectorOffset + uint32(copyIndex)*v.bpb.TableSize
		sector, err := v.device.ReadSector(lba)
		if err != nil {
			return kernerr.ErrFATReadFailed.WrapError(err)
		}
		binary.LittleEndian.PutUint32(sector[byteOffset:], value&fatEntryMask)
		v.device.WriteSector(lba, sector)
	}
	return nil
}

// allocateCluster performs a linear scan of the FAT for a free (zero)
// entry, marks it end-of-chain, and zero-initializes its data sectors.
func (v *Volume) allocateCluster() (uint32, error) {
	totalEntries := v.bpb.TableSize * (SectorSize / 4)
	for cluster := uint32(2); cluster < totalEntries; cluster++ {
		entry, err := v.readFATEntry(cluster)
		if err != nil {
			return 0, err
		}
		if entry == freeEntry {
			if err := v.setFATEntry(cluster, eocMarker); err != nil {
				return 0, err
			}
			if err := v.zeroClusterData(cluster); err != nil {
				return 0, err
			}
			return cluster, nil
		}
	}
	return 0, kernerr.ErrNoSpaceOnDevice
}

func (v *Volume) zeroClusterData(cluster uint32) error {
	zero := make([]byte, SectorSize)
	firstLBA := v.bpb.ClusterToLBA(cluster)
	for i := uint8(0); i < v.bpb.SectorsPerCluster; i++ {
		v.device.WriteSector(v.partitionLBA+firstLBA+uint32(i), zero)
	}
	return nil
}

// extendChain allocates a fresh cluster and appends it to tailCluster's
// chain, returning the new cluster number.
func (v *Volume) extendChain(tailCluster uint32) (uint32, error) {
	newCluster, err := v.allocateCluster()
	if err != nil {
		return 0, err
	}
	if err := v.setFATEntry(tailCluster, newCluster); err != nil {
		return 0, err
	}
	return newCluster, nil
}

// freeChain walks startCluster's chain, zeroing every FAT entry it visits.
func (v *Volume) freeChain(startCluster uint32) error {
	cluster := startCluster
	for cluster >= 2 {
		entry, err := v.readFATEntry(cluster)
		if err != nil {
			return err
		}
		if err := v.setFATEntry(cluster, freeEntry); err != nil {
			return err
		}
		if entry >= eocThreshold {
			break
		}
		cluster = entry
	}
	return nil
}

// readCluster returns the full contents of cluster's data sectors.
func (v *Volume) readCluster(cluster uint32) ([]byte, error) {
	firstLBA := v.bpb.ClusterToLBA(cluster)
	out := make([]byte, 0, v.bpb.BytesPerCluster())
	for i := uint8(0); i < v.bpb.SectorsPerCluster; i++ {
		sector, err := v.device.ReadSector(v.partitionLBA + firstLBA + uint32(i))
		if err != nil {
			return nil, err
		}
		out = append(out, sector...)
	}
	return out, nil
}

// writeClusterSector writes one sector's worth of data at the given
// zero-based sector index within cluster.
func (v *Volume) writeClusterSector(cluster uint32, sectorInCluster uint8, data []byte) {
	lba := v.partitionLBA + v.bpb.ClusterToLBA(cluster) + uint32(sectorInCluster)
	v.device.WriteSector(lba, data)
}

func (v *Volume) readClusterSector(cluster uint32, sectorInCluster uint8) ([]byte, error) {
	lba := v.partitionLBA + v.bpb.ClusterToLBA(cluster) + uint32(sectorInCluster)
	return v.device.ReadSector(lba)
}
