package fat32

import kernerr "github.com/nullboot/kernel/errors"

// direntsPerSector is the number of 32-byte slots in one sector.
const direntsPerSector = SectorSize / DirentSize

// listDirectory walks every cluster in startCluster's chain and returns
// every live directory entry it finds, skipping deleted and LFN slots and
// stopping at the first end-of-directory marker.
func (v *Volume) listDirectory(startCluster uint32) ([]Dirent, error) {
	var entries []Dirent
	cluster := startCluster
	for cluster >= 2 {
		for sectorInCluster := uint8(0); sectorInCluster < v.bpb.SectorsPerCluster; sectorInCluster++ {
			sector, err := v.readClusterSector(cluster, sectorInCluster)
			if err != nil {
				return nil, err
			}
			for slot := 0; slot < direntsPerSector; slot++ {
				offset := slot * DirentSize
				d, ok, end := decodeDirent(sector[offset : offset+DirentSize])
				if end {
					return entries, nil
				}
				if !ok {
					continue
				}
				d.slotCluster = cluster
				d.slotSector = sectorInCluster
				d.slotOffset = offset
				entries = append(entries, d)
			}
		}
		next, err := v.nextCluster(cluster)
		if err != nil {
			return nil, err
		}
		if next == 0 {
			return entries, nil
		}
		cluster = next
	}
	return entries, nil
}

// findEntry looks up name (case-insensitive) directly within the
// directory rooted at parentCluster. "." and ".." are matched like any
// other listed entry.
func (v *Volume) findEntry(parentCluster uint32, name string) (Dirent, error) {
	entries, err := v.listDirectory(parentCluster)
	if err != nil {
		return Dirent{}, err
	}
	for _, e := range entries {
		if sameName(e.Name, name) {
			return e, nil
		}
	}
	return Dirent{}, kernerr.ErrNotFound
}

// createEntrySlot finds a deleted or end-of-directory slot in
// parentCluster's chain (extending the chain if every existing cluster is
// full) and writes entry into it.
func (v *Volume) createEntrySlot(parentCluster uint32, entry Dirent) error {
	cluster := parentCluster
	for {
		for sectorInCluster := uint8(0); sectorInCluster < v.bpb.SectorsPerCluster; sectorInCluster++ {
			sector, err := v.readClusterSector(cluster, sectorInCluster)
			if err != nil {
				return err
			}
			for slot := 0; slot < direntsPerSector; slot++ {
				offset := slot * DirentSize
				if sector[offset] == deletedMarker || sector[offset] == endOfDirectoryMarker {
					copy(sector[offset:offset+DirentSize], encodeDirent(entry))
					v.writeClusterSector(cluster, sectorInCluster, sector)
					return nil
				}
			}
		}
		next, err := v.nextCluster(cluster)
		if err != nil {
			return err
		}
		if next == 0 {
			next, err = v.extendChain(cluster)
			if err != nil {
				return err
			}
		}
		cluster = next
	}
}

// updateEntrySlot rewrites d's fields back into the slot it was read
// from, used after a write extends a file's size or allocates its first
// cluster.
func (v *Volume) updateEntrySlot(d Dirent) error {
	sector, err := v.readClusterSector(d.slotCluster, d.slotSector)
	if err != nil {
		return err
	}
	copy(sector[d.slotOffset:d.slotOffset+DirentSize], encodeDirent(d))
	v.writeClusterSector(d.slotCluster, d.slotSector, sector)
	return nil
}

// deleteEntrySlot marks d's slot deleted by overwriting its first byte.
func (v *Volume) deleteEntrySlot(d Dirent) error {
	sector, err := v.readClusterSector(d.slotCluster, d.slotSector)
	if err != nil {
		return err
	}
	sector[d.slotOffset] = deletedMarker
	v.writeClusterSector(d.slotCluster, d.slotSector, sector)
	return nil
}

// dotEntry and dotDotEntry build the two entries every FAT32 directory
// (other than the root) carries as its first two slots.
func dotEntry(selfCluster uint32) Dirent {
	return Dirent{Name: ".", Attr: AttrDirectory, FirstCluster: selfCluster}
}

func dotDotEntry(parentCluster uint32, isParentRoot bool) Dirent {
	cluster := parentCluster
	if isParentRoot {
		cluster = 0
	}
	return Dirent{Name: "..", Attr: AttrDirectory, FirstCluster: cluster}
}
