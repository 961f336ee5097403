package mfs

import (
	"encoding/binary"
	"fmt"

	"github.com/dargueta/mfskit"
	c "github.com/dargueta/mfskit/file_systems/common"
	"github.com/dargueta/mfskit/file_systems/common/blockcache"
)

// Special values of allocation map entries. Any other value is the number of the
// next block in the chain.
const (
	FreeBlock      uint16 = 0
	LastBlock      uint16 = 1
	DirectoryBlock uint16 = 0xFFF
)

// FirstAllocBlock is the number of the first allocation block. Block numbers 0
// and 1 collide with FreeBlock and LastBlock so they're never used.
const FirstAllocBlock = 2

// MapSize returns the minimum number of bytes an allocation map must have to
// hold entries for `blockCount` blocks.
func MapSize(blockCount uint) int {
	if blockCount == 0 {
		return 0
	}
	return int(entryOffset(uint(blockCount)+1)) + 2
}

func entryOffset(index uint) uint {
	return (3 * (index - FirstAllocBlock)) / 2
}

func checkMapIndex(table []byte, index uint) error {
	if index < FirstAllocBlock {
		return mfskit.ErrArgumentOutOfRange.WithMessage(
			fmt.Sprintf("block %d is below the first allocation block", index))
	}
	if int(entryOffset(index))+2 > len(table) {
		return mfskit.ErrArgumentOutOfRange.WithMessage(
			fmt.Sprintf(
				"block %d is past the end of a %d-byte allocation map", index, len(table)))
	}
	return nil
}

// DecodeMapEntry returns the 12-bit allocation map entry for block `index`.
// `table` is the allocation map, beginning with the entry for block 2.
func DecodeMapEntry(table []byte, index uint) (uint16, error) {
	err := checkMapIndex(table, index)
	if err != nil {
		return 0, err
	}

	offset := entryOffset(index)
	word := binary.BigEndian.Uint16(table[offset : offset+2])
	if (index-FirstAllocBlock)%2 == 0 {
		return word >> 4, nil
	}
	return word & 0x0FFF, nil
}

// PutMapEntry sets the allocation map entry for block `index`, leaving the bits
// of neighboring entries untouched. It's the inverse of [DecodeMapEntry].
func PutMapEntry(table []byte, index uint, value uint16) error {
	err := checkMapIndex(table, index)
	if err != nil {
		return err
	}
	if value > 0xFFF {
		return mfskit.ErrArgumentOutOfRange.WithMessage(
			fmt.Sprintf("map entry 0x%x doesn't fit in 12 bits", value))
	}

	offset := entryOffset(index)
	word := binary.BigEndian.Uint16(table[offset : offset+2])
	if (index-FirstAllocBlock)%2 == 0 {
		word = (value << 4) | (word & 0x000F)
	} else {
		word = (word & 0xF000) | value
	}
	binary.BigEndian.PutUint16(table[offset:offset+2], word)
	return nil
}

// AllocationMap gives access to the allocation map of a mounted volume. The
// sectors holding the map are read from the device the first time they're
// needed and kept for the life of the volume.
type AllocationMap struct {
	cache      *blockcache.BlockCache
	descriptor *VolumeDescriptor
	// mapStart is the offset of the first map entry within the cache.
	mapStart int64
}

// NewAllocationMap creates an accessor for the allocation map of the volume
// described by `descriptor`. Nothing is read from the device until the first
// lookup.
func NewAllocationMap(stream *c.BlockStream, descriptor *VolumeDescriptor) *AllocationMap {
	mapEnd := AllocationMapOffset + MapSize(uint(descriptor.AllocBlockCount))
	totalSectors := (mapEnd+SectorSize-1)/SectorSize - VolumeInfoSector

	return &AllocationMap{
		cache:      blockcache.WrapStream(stream, VolumeInfoSector, uint(totalSectors)),
		descriptor: descriptor,
		mapStart:   AllocationMapOffset - VolumeInfoSector*SectorSize,
	}
}

// Table returns the raw allocation map, beginning with the entry for block 2.
// The returned slice must not be modified.
func (m *AllocationMap) Table() ([]byte, error) {
	data, err := m.cache.Data()
	if err != nil {
		return nil, err
	}
	size := int64(MapSize(uint(m.descriptor.AllocBlockCount)))
	return data[m.mapStart : m.mapStart+size], nil
}

// Entry returns the allocation map entry for `block`, which must be in the range
// [2, AllocBlockCount + 1].
func (m *AllocationMap) Entry(block uint16) (uint16, error) {
	if !m.descriptor.IsValidBlock(block) {
		return 0, mfskit.ErrArgumentOutOfRange.WithMessage(
			fmt.Sprintf(
				"block %d not in range [%d, %d]",
				block,
				FirstAllocBlock,
				uint(m.descriptor.AllocBlockCount)+1,
			),
		)
	}

	table, err := m.Table()
	if err != nil {
		return 0, err
	}
	return DecodeMapEntry(table, uint(block))
}

// Next returns the block following `block` in its chain. The boolean is false if
// the chain ends at `block`, either normally or because the entry is not a valid
// link.
func (m *AllocationMap) Next(block uint16) (uint16, bool, error) {
	entry, err := m.Entry(block)
	if err != nil {
		return 0, false, err
	}
	if entry == DirectoryBlock || !m.descriptor.IsValidBlock(entry) {
		return entry, false, nil
	}
	return entry, true, nil
}

// CountFree returns the number of blocks marked free in the map.
func (m *AllocationMap) CountFree() (uint, error) {
	table, err := m.Table()
	if err != nil {
		return 0, err
	}

	total := uint(0)
	lastBlock := uint(m.descriptor.AllocBlockCount) + 1
	for block := uint(FirstAllocBlock); block <= lastBlock; block++ {
		entry, err := DecodeMapEntry(table, block)
		if err != nil {
			return 0, err
		}
		if entry == FreeBlock {
			total++
		}
	}
	return total, nil
}

// VerifyDirectoryReservation checks that once a [DirectoryBlock] entry appears
// in the map, every entry after it is also [DirectoryBlock].
func (m *AllocationMap) VerifyDirectoryReservation() error {
	table, err := m.Table()
	if err != nil {
		return err
	}

	firstReserved := uint(0)
	lastBlock := uint(m.descriptor.AllocBlockCount) + 1
	for block := uint(FirstAllocBlock); block <= lastBlock; block++ {
		entry, err := DecodeMapEntry(table, block)
		if err != nil {
			return err
		}

		if entry == DirectoryBlock {
			if firstReserved == 0 {
				firstReserved = block
			}
		} else if firstReserved != 0 {
			return mfskit.ErrCorruptVolume.WithMessage(
				fmt.Sprintf(
					"block %d has map entry 0x%03x but follows directory block %d",
					block,
					entry,
					firstReserved,
				),
			)
		}
	}
	return nil
}
