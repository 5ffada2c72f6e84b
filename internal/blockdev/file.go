package blockdev

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// FileDevice is a BlockDevice backed by a real file, standing in for
// the ATA adapter original_source/src/Nanokernel/mvfs.c builds around
// ATA_ReadSectors/ATA_WriteSectors. Reads and writes go straight to the
// file descriptor via pread/pwrite so concurrent ReadBlock/WriteBlock
// calls need no internal seek-then-read locking.
type FileDevice struct {
	f        *os.File
	fd       int
	sectors  uint64
}

// OpenFileDevice opens (or creates) path and sizes it to sectorCount
// sectors if it is smaller, matching a disk image backing file.
func OpenFileDevice(path string, sectorCount uint64) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("blockdev: open %s: %w", path, err)
	}
	size := int64(sectorCount) * SectorSize
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() < size {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, err
		}
	}
	return &FileDevice{f: f, fd: int(f.Fd()), sectors: sectorCount}, nil
}

func (d *FileDevice) SectorCount() uint64 { return d.sectors }

func (d *FileDevice) ReadBlock(lba uint64, buf []byte) error {
	if len(buf) < SectorSize {
		return ErrShortBuffer
	}
	if lba >= d.sectors {
		return ErrOutOfRange
	}
	n, err := unix.Pread(d.fd, buf[:SectorSize], int64(lba)*SectorSize)
	if err != nil {
		return fmt.Errorf("blockdev: pread lba %d: %w", lba, err)
	}
	if n != SectorSize {
		return fmt.Errorf("blockdev: short pread at lba %d: got %d bytes", lba, n)
	}
	return nil
}

func (d *FileDevice) WriteBlock(lba uint64, buf []byte) error {
	if len(buf) < SectorSize {
		return ErrShortBuffer
	}
	if lba >= d.sectors {
		return ErrOutOfRange
	}
	n, err := unix.Pwrite(d.fd, buf[:SectorSize], int64(lba)*SectorSize)
	if err != nil {
		return fmt.Errorf("blockdev: pwrite lba %d: %w", lba, err)
	}
	if n != SectorSize {
		return fmt.Errorf("blockdev: short pwrite at lba %d: wrote %d bytes", lba, n)
	}
	return nil
}

// Flush issues fsync(2), matching the durability contract a real ATA
// flush-cache command gives.
func (d *FileDevice) Flush() error {
	return unix.Fsync(d.fd)
}

// Close releases the underlying file descriptor.
func (d *FileDevice) Close() error { return d.f.Close() }
