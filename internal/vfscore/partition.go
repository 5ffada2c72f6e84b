package vfscore

import (
	"encoding/binary"

	"github.com/Kelsidavis/System7-sub000/internal/blockdev"
)

// mbrPartitionTableOffset, mbrSignatureOffset, and mbrEntrySize are the
// fixed MBR layout constants autodetect uses to find partitions.
const (
	mbrPartitionTableOffset = 446
	mbrEntrySize            = 16
	mbrSignatureOffset      = 510
	mbrSignatureLo          = 0x55
	mbrSignatureHi          = 0xAA
	mbrPartitionCount       = 4
)

// MBRPartition is one decoded entry from a master boot record.
type MBRPartition struct {
	Type      byte
	StartLBA  uint32
	SectorCnt uint32
}

// Bootable reports whether the partition's status byte marks it active.
func (p MBRPartition) Bootable(status byte) bool { return status&0x80 != 0 }

// ReadMBR reads sector 0 of dev and, if it carries a valid 0xAA55
// signature, returns its four partition table entries. ok is false when
// the signature is absent, matching autodetect_mount's "if no MBR,
// attempt to mount the raw device" fallback.
func ReadMBR(dev blockdev.BlockDevice) (partitions [mbrPartitionCount]MBRPartition, ok bool, err error) {
	sector := make([]byte, blockdev.SectorSize)
	if err = dev.ReadBlock(0, sector); err != nil {
		return partitions, false, err
	}
	if sector[mbrSignatureOffset] != mbrSignatureLo || sector[mbrSignatureOffset+1] != mbrSignatureHi {
		return partitions, false, nil
	}
	for i := 0; i < mbrPartitionCount; i++ {
		off := mbrPartitionTableOffset + i*mbrEntrySize
		entry := sector[off : off+mbrEntrySize]
		partitions[i] = MBRPartition{
			Type:      entry[4],
			StartLBA:  binary.LittleEndian.Uint32(entry[8:12]),
			SectorCnt: binary.LittleEndian.Uint32(entry[12:16]),
		}
	}
	return partitions, true, nil
}

// PartitionDevice presents a slice of an underlying BlockDevice's LBA
// range as its own BlockDevice, the way autodetect_mount treats each
// MBR partition "as if it were a separate device".
type PartitionDevice struct {
	parent   blockdev.BlockDevice
	startLBA uint64
	sectors  uint64
}

// NewPartitionDevice windows parent starting at startLBA for sectors
// blocks.
func NewPartitionDevice(parent blockdev.BlockDevice, startLBA, sectors uint64) *PartitionDevice {
	return &PartitionDevice{parent: parent, startLBA: startLBA, sectors: sectors}
}

func (p *PartitionDevice) SectorCount() uint64 { return p.sectors }

func (p *PartitionDevice) ReadBlock(lba uint64, buf []byte) error {
	if lba >= p.sectors {
		return blockdev.ErrOutOfRange
	}
	return p.parent.ReadBlock(p.startLBA+lba, buf)
}

func (p *PartitionDevice) WriteBlock(lba uint64, buf []byte) error {
	if lba >= p.sectors {
		return blockdev.ErrOutOfRange
	}
	return p.parent.WriteBlock(p.startLBA+lba, buf)
}

func (p *PartitionDevice) Flush() error { return p.parent.Flush() }
