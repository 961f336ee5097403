package mfs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/dargueta/mfskit"
	c "github.com/dargueta/mfskit/file_systems/common"
)

const (
	// Signature is the value of the first two bytes of the volume information
	// block on every MFS volume.
	Signature        = 0xD2D7
	SectorSize       = 512
	VolumeInfoSector = 2
	// MaxVolumeNameLength is the size of the name slot following the volume
	// information fields.
	MaxVolumeNameLength = 27
	// RawVolumeInfoSize is the size of the fixed fields of the volume
	// information block, excluding the name slot.
	RawVolumeInfoSize = 37
	// AllocationMapOffset is the byte offset of the first allocation map entry
	// from the start of the volume.
	AllocationMapOffset = VolumeInfoSector*SectorSize + RawVolumeInfoSize + MaxVolumeNameLength
)

// Bits of [RawVolumeInfo.Attributes].
const (
	AttrHardwareLocked = 1 << 7
	AttrSoftwareLocked = 1 << 15
)

// RawVolumeInfo is the on-disk layout of the volume information block.
type RawVolumeInfo struct {
	Signature        uint16
	CreatedAt        uint32
	LastBackup       uint32
	Attributes       uint16
	FileCount        uint16
	DirectoryStart   uint16
	DirectoryLength  uint16
	AllocBlockCount  uint16
	AllocBlockSize   uint32
	ClumpSize        uint32
	FirstAllocSector uint16
	NextFileNumber   uint32
	FreeBlockCount   uint16
	NameLength       uint8
}

// VolumeDescriptor is the validated volume information block of a mounted
// volume. It's never modified after it's loaded.
type VolumeDescriptor struct {
	RawVolumeInfo
	// Name is the raw volume name, in Mac OS Roman.
	Name []byte
}

// ParseVolumeDescriptor decodes and validates a volume information block. `data`
// must contain at least the fixed fields and the name slot.
func ParseVolumeDescriptor(data []byte) (*VolumeDescriptor, error) {
	if len(data) < RawVolumeInfoSize+MaxVolumeNameLength {
		return nil, mfskit.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"volume information block must be at least %d bytes, got %d",
				RawVolumeInfoSize+MaxVolumeNameLength,
				len(data),
			),
		)
	}

	descriptor := &VolumeDescriptor{}
	err := binary.Read(bytes.NewReader(data), binary.BigEndian, &descriptor.RawVolumeInfo)
	if err != nil {
		return nil, mfskit.ErrIOFailed.Wrap(err)
	}

	err = descriptor.Validate()
	if err != nil {
		return nil, err
	}

	nameSlot := data[RawVolumeInfoSize : RawVolumeInfoSize+MaxVolumeNameLength]
	descriptor.Name = bytes.Clone(nameSlot[:descriptor.NameLength])
	return descriptor, nil
}

// LoadVolumeDescriptor reads the volume information block from the device and
// validates it. No descriptor is returned if validation fails.
func LoadVolumeDescriptor(stream *c.BlockStream) (*VolumeDescriptor, error) {
	buffer := make([]byte, RawVolumeInfoSize+MaxVolumeNameLength)
	err := stream.ReadAt(buffer, VolumeInfoSector*SectorSize)
	if err != nil {
		return nil, err
	}

	descriptor, err := ParseVolumeDescriptor(buffer)
	if err != nil {
		return nil, err
	}

	// The data area may be cut short on truncated images, but the directory
	// can't be.
	directoryEnd := uint(descriptor.DirectoryStart) + uint(descriptor.DirectoryLength)
	if stream.TotalBlocks != 0 && directoryEnd > stream.TotalBlocks {
		return nil, corruptField(
			"directory ends at sector %d but the device has only %d",
			directoryEnd,
			stream.TotalBlocks)
	}
	return descriptor, nil
}

func corruptField(format string, args ...any) error {
	return mfskit.ErrCorruptVolume.WithMessage(fmt.Sprintf(format, args...))
}

// Validate checks the structural invariants of the volume information block.
func (vd VolumeDescriptor) Validate() error {
	if vd.Signature != Signature {
		return mfskit.ErrNotAnMFSVolume.WithMessage(
			fmt.Sprintf("expected signature 0x%04x, got 0x%04x", Signature, vd.Signature))
	}
	if vd.AllocBlockSize == 0 {
		return corruptField("allocation block size is 0")
	}
	if vd.AllocBlockSize%SectorSize != 0 {
		return corruptField(
			"allocation block size %d isn't a multiple of %d", vd.AllocBlockSize, SectorSize)
	}
	if vd.ClumpSize == 0 {
		return corruptField("clump size is 0")
	}
	if vd.ClumpSize%vd.AllocBlockSize != 0 {
		return corruptField(
			"clump size %d isn't a multiple of the allocation block size %d",
			vd.ClumpSize,
			vd.AllocBlockSize)
	}
	if vd.FreeBlockCount > vd.AllocBlockCount {
		return corruptField(
			"free block count %d exceeds total block count %d",
			vd.FreeBlockCount,
			vd.AllocBlockCount)
	}
	if vd.DirectoryLength == 0 {
		return corruptField("directory is 0 sectors long")
	}
	if uint(vd.DirectoryLength)*SectorSize < uint(vd.FileCount)*DirectoryEntryHeaderSize {
		return corruptField(
			"directory of %d sectors can't hold %d files",
			vd.DirectoryLength,
			vd.FileCount)
	}
	if vd.NameLength > MaxVolumeNameLength {
		return corruptField(
			"volume name length %d exceeds maximum of %d", vd.NameLength, MaxVolumeNameLength)
	}
	return nil
}

// Label returns the volume name converted to UTF-8.
func (vd VolumeDescriptor) Label() string {
	return DecodeName(vd.Name)
}

func (vd VolumeDescriptor) CreatedTime() time.Time {
	return MacTimeToTime(vd.CreatedAt)
}

func (vd VolumeDescriptor) LastBackupTime() time.Time {
	return MacTimeToTime(vd.LastBackup)
}

// IsLocked reports whether the volume was locked by hardware or software.
func (vd VolumeDescriptor) IsLocked() bool {
	return vd.Attributes&(AttrHardwareLocked|AttrSoftwareLocked) != 0
}

// DirectoryOffset is the byte offset of the directory from the start of the
// volume.
func (vd VolumeDescriptor) DirectoryOffset() int64 {
	return int64(vd.DirectoryStart) * SectorSize
}

// DirectorySize is the size of the directory region, in bytes.
func (vd VolumeDescriptor) DirectorySize() int64 {
	return int64(vd.DirectoryLength) * SectorSize
}

// IsValidBlock reports whether `block` is the number of an allocation block on
// this volume, i.e. in the range [2, AllocBlockCount + 1].
func (vd VolumeDescriptor) IsValidBlock(block uint16) bool {
	return block >= FirstAllocBlock && uint(block) <= uint(vd.AllocBlockCount)+1
}

// BlockOffset converts an allocation block number into a byte offset from the
// start of the volume.
func (vd VolumeDescriptor) BlockOffset(block uint16) int64 {
	return int64(vd.FirstAllocSector)*SectorSize +
		int64(block-FirstAllocBlock)*int64(vd.AllocBlockSize)
}

// TotalSectors gives the minimum number of sectors a device needs to hold every
// allocation block of this volume.
func (vd VolumeDescriptor) TotalSectors() uint {
	dataSectors := uint(vd.AllocBlockCount) * uint(vd.AllocBlockSize/SectorSize)
	return uint(vd.FirstAllocSector) + dataSectors
}
