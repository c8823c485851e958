package fat32

import (
	"strings"

	kernerr "github.com/nullboot/kernel/errors"
)

// BlockDevice is the sector-addressed storage a Volume reads and writes.
// ata.SectorCache satisfies this, but fat32 never imports ata directly:
// any 512-byte-sector device works, including a plain in-memory fake in
// tests.
type BlockDevice interface {
	ReadSector(lba uint32) ([]byte, error)
	WriteSector(lba uint32, data []byte)
}

// Volume is a mounted FAT32 filesystem: a BPB plus the block device and
// partition offset it was parsed from.
type Volume struct {
	bpb          BPB32
	device       BlockDevice
	partitionLBA uint32
	descriptors  [MaxOpenFiles]fileDescriptor
}

// Mount reads and validates the BPB at partitionLBA and returns a ready
// Volume.
func Mount(device BlockDevice, partitionLBA uint32) (*Volume, error) {
	sector, err := device.ReadSector(partitionLBA)
	if err != nil {
		return nil, err
	}
	bpb, err := ParseBPB32(sector)
	if err != nil {
		return nil, err
	}
	return &Volume{bpb: bpb, device: device, partitionLBA: partitionLBA}, nil
}

// RootCluster returns the cluster number of the volume's root directory.
func (v *Volume) RootCluster() uint32 { return v.bpb.RootCluster }

// splitPath breaks a "/"-separated path into its non-empty components.
func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, kernerr.ErrInvalidPath
	}
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts, nil
}

// resolveParent walks path down to its final component's containing
// directory, returning that directory's cluster and the leaf name.
func (v *Volume) resolveParent(path string) (parentCluster uint32, leaf string, err error) {
	parts, err := splitPath(path)
	if err != nil {
		return 0, "", err
	}
	if len(parts) == 0 {
		return 0, "", kernerr.ErrInvalidPath
	}
	cluster := v.bpb.RootCluster
	for _, name := range parts[:len(parts)-1] {
		entry, err := v.findEntry(cluster, name)
		if err != nil {
			return 0, "", err
		}
		if !entry.IsDirectory() {
			return 0, "", kernerr.ErrNotADirectory
		}
		cluster = entry.FirstCluster
	}
	return cluster, parts[len(parts)-1], nil
}

// Resolve locates the directory entry named by path.
func (v *Volume) Resolve(path string) (Dirent, error) {
	parentCluster, leaf, err := v.resolveParent(path)
	if err != nil {
		return Dirent{}, err
	}
	return v.findEntry(parentCluster, leaf)
}

// List returns the entries of the directory at path (excluding "." and
// ".."), or the root directory's entries for path == "/".
func (v *Volume) List(path string) ([]Dirent, error) {
	cluster := v.bpb.RootCluster
	if parts, _ := splitPath(path); len(parts) > 0 {
		entry, err := v.Resolve(path)
		if err != nil {
			return nil, err
		}
		if !entry.IsDirectory() {
			return nil, kernerr.ErrNotADirectory
		}
		cluster = entry.FirstCluster
	}
	entries, err := v.listDirectory(cluster)
	if err != nil {
		return nil, err
	}
	out := entries[:0]
	for _, e := range entries {
		if e.Name != "." && e.Name != ".." {
			out = append(out, e)
		}
	}
	return out, nil
}

// Mkdir creates a new directory at path: a fresh cluster holding "." and
// ".." entries, linked into the parent via a new directory entry.
func (v *Volume) Mkdir(path string) error {
	parentCluster, leaf, err := v.resolveParent(path)
	if err != nil {
		return err
	}
	if _, err := v.findEntry(parentCluster, leaf); err == nil {
		return kernerr.ErrAlreadyExists
	}

	newCluster, err := v.allocateCluster()
	if err != nil {
		return err
	}
	isParentRoot := parentCluster == v.bpb.RootCluster
	if err := v.createEntrySlot(newCluster, dotEntry(newCluster)); err != nil {
		return err
	}
	if err := v.createEntrySlot(newCluster, dotDotEntry(parentCluster, isParentRoot)); err != nil {
		return err
	}
	return v.createEntrySlot(parentCluster, Dirent{Name: leaf, Attr: AttrDirectory, FirstCluster: newCluster})
}

// Touch creates an empty file at path.
func (v *Volume) Touch(path string) error {
	parentCluster, leaf, err := v.resolveParent(path)
	if err != nil {
		return err
	}
	if _, err := v.findEntry(parentCluster, leaf); err == nil {
		return kernerr.ErrAlreadyExists
	}
	return v.createEntrySlot(parentCluster, Dirent{Name: leaf})
}

// Remove deletes the file at path. It refuses to remove directories; use
// Rmdir for those.
func (v *Volume) Remove(path string) error {
	parentCluster, leaf, err := v.resolveParent(path)
	if err != nil {
		return err
	}
	entry, err := v.findEntry(parentCluster, leaf)
	if err != nil {
		return err
	}
	if entry.IsDirectory() {
		return kernerr.ErrIsADirectory
	}
	if entry.FirstCluster >= 2 {
		if err := v.freeChain(entry.FirstCluster); err != nil {
			return err
		}
	}
	return v.deleteEntrySlot(entry)
}

// Rmdir deletes the directory at path along with everything inside it.
// This is intentionally non-standard: POSIX rmdir refuses a non-empty
// directory, but this engine recursively removes its contents first.
func (v *Volume) Rmdir(path string) error {
	parentCluster, leaf, err := v.resolveParent(path)
	if err != nil {
		return err
	}
	entry, err := v.findEntry(parentCluster, leaf)
	if err != nil {
		return err
	}
	if !entry.IsDirectory() {
		return kernerr.ErrNotADirectory
	}
	if err := v.removeDirectoryContents(entry.FirstCluster); err != nil {
		return err
	}
	if err := v.freeChain(entry.FirstCluster); err != nil {
		return err
	}
	return v.deleteEntrySlot(entry)
}

func (v *Volume) removeDirectoryContents(cluster uint32) error {
	entries, err := v.listDirectory(cluster)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		if e.IsDirectory() {
			if err := v.removeDirectoryContents(e.FirstCluster); err != nil {
				return err
			}
			if err := v.freeChain(e.FirstCluster); err != nil {
				return err
			}
		} else if e.FirstCluster >= 2 {
			if err := v.freeChain(e.FirstCluster); err != nil {
				return err
			}
		}
	}
	return nil
}
