package fat32

import kernerr "github.com/nullboot/kernel/errors"

// MaxOpenFiles bounds the fixed file descriptor table.
const MaxOpenFiles = 16

// fileDescriptor mirrors the data model's fixed-field record. When IsOpen
// is false no other field is consulted.
type fileDescriptor struct {
	FirstCluster           uint32
	CurrentCluster         uint32
	CurrentSectorInCluster uint8
	Size                   uint32
	Position               uint32
	IsOpen                 bool

	dirent Dirent // the on-disk entry this descriptor was opened from
}

// Open locates path, rejects directories, and claims a free descriptor
// positioned at the start of the file.
func (v *Volume) Open(path string) (int, error) {
	entry, err := v.Resolve(path)
	if err != nil {
		return -1, err
	}
	if entry.IsDirectory() {
		return -1, kernerr.ErrIsADirectory
	}

	for fd := range v.descriptors {
		if !v.descriptors[fd].IsOpen {
			v.descriptors[fd] = fileDescriptor{
				FirstCluster:   entry.FirstCluster,
				CurrentCluster: entry.FirstCluster,
				Size:           entry.Size,
				IsOpen:         true,
				dirent:         entry,
			}
			return fd, nil
		}
	}
	return -1, kernerr.ErrTooManyOpenFiles
}

func (v *Volume) descriptor(fd int) (*fileDescriptor, error) {
	if fd < 0 || fd >= MaxOpenFiles || !v.descriptors[fd].IsOpen {
		return nil, kernerr.ErrBadFileDescriptor
	}
	return &v.descriptors[fd], nil
}

// Read copies up to len(buf) bytes starting at the descriptor's current
// position, advancing it by the number of bytes actually read. A read
// that asks for more than remains in the file is clipped to size-position;
// hitting end-of-chain before that point is an error.
func (v *Volume) Read(fd int, buf []byte) (int, error) {
	d, err := v.descriptor(fd)
	if err != nil {
		return 0, err
	}
	remaining := d.Size - d.Position
	n := uint32(len(buf))
	if n > remaining {
		n = remaining
	}

	var written uint32
	for written < n {
		if d.CurrentCluster < 2 {
			return int(written), kernerr.ErrInvalidCluster.WithMessage("unexpected end of cluster chain")
		}
		sector, err := v.readClusterSector(d.CurrentCluster, d.CurrentSectorInCluster)
		if err != nil {
			return int(written), err
		}
		withinSector := d.Position % SectorSize
		chunk := uint32(SectorSize) - withinSector
		if remain := n - written; chunk > remain {
			chunk = remain
		}
		copy(buf[written:written+chunk], sector[withinSector:withinSector+chunk])
		written += chunk
		d.Position += chunk

		if withinSector+chunk == SectorSize {
			if err := v.advanceToNextSector(d); err != nil && written < n {
				return int(written), err
			}
		}
	}
	return int(written), nil
}

// Write copies len(data) bytes starting at the descriptor's current
// position, extending the cluster chain on demand and updating the
// on-disk directory entry's size (and first cluster, if this was the
// file's first write) to match.
func (v *Volume) Write(fd int, data []byte) (int, error) {
	d, err := v.descriptor(fd)
	if err != nil {
		return 0, err
	}
	if d.CurrentCluster < 2 {
		cluster, err := v.allocateCluster()
		if err != nil {
			return 0, err
		}
		d.FirstCluster = cluster
		d.CurrentCluster = cluster
		d.CurrentSectorInCluster = 0
	}

	var written uint32
	n := uint32(len(data))
	for written < n {
		sector, err := v.readClusterSector(d.CurrentCluster, d.CurrentSectorInCluster)
		if err != nil {
			return int(written), err
		}
		withinSector := d.Position % SectorSize
		chunk := uint32(SectorSize) - withinSector
		if remain := n - written; chunk > remain {
			chunk = remain
		}
		copy(sector[withinSector:withinSector+chunk], data[written:written+chunk])
		v.writeClusterSector(d.CurrentCluster, d.CurrentSectorInCluster, sector)

		written += chunk
		d.Position += chunk
		if d.Position > d.Size {
			d.Size = d.Position
		}

		if withinSector+chunk == SectorSize && written < n {
			if err := v.advanceOrExtend(d); err != nil {
				return int(written), err
			}
		}
	}

	d.dirent.FirstCluster = d.FirstCluster
	d.dirent.Size = d.Size
	return int(written), v.updateEntrySlot(d.dirent)
}

// advanceToNextSector steps the descriptor to the next sector, following
// the FAT chain at a cluster boundary.
func (v *Volume) advanceToNextSector(d *fileDescriptor) error {
	d.CurrentSectorInCluster++
	if d.CurrentSectorInCluster < v.clusterSectorCount() {
		return nil
	}
	d.CurrentSectorInCluster = 0
	next, err := v.nextCluster(d.CurrentCluster)
	if err != nil {
		return err
	}
	if next == 0 {
		d.CurrentCluster = 0
		return kernerr.ErrInvalidCluster.WithMessage("end of cluster chain")
	}
	d.CurrentCluster = next
	return nil
}

// advanceOrExtend behaves like advanceToNextSector but allocates a new
// cluster instead of failing at the end of the chain.
func (v *Volume) advanceOrExtend(d *fileDescriptor) error {
	d.CurrentSectorInCluster++
	if d.CurrentSectorInCluster < v.clusterSectorCount() {
		return nil
	}
	d.CurrentSectorInCluster = 0
	next, err := v.nextCluster(d.CurrentCluster)
	if err != nil {
		return err
	}
	if next == 0 {
		next, err = v.extendChain(d.CurrentCluster)
		if err != nil {
			return err
		}
	}
	d.CurrentCluster = next
	return nil
}

func (v *Volume) clusterSectorCount() uint8 { return v.bpb.SectorsPerCluster }

// Close zeros the descriptor and clears IsOpen.
func (v *Volume) Close(fd int) error {
	if _, err := v.descriptor(fd); err != nil {
		return err
	}
	v.descriptors[fd] = fileDescriptor{}
	return nil
}
