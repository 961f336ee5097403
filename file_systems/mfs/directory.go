package mfs

import (
	"fmt"

	"github.com/dargueta/mfskit"
	c "github.com/dargueta/mfskit/file_systems/common"
	"github.com/dargueta/mfskit/file_systems/common/blockcache"
)

// ScanDirectory reads every record in the directory of the volume described by
// `descriptor` and returns the valid ones, in on-disk order.
func ScanDirectory(stream *c.BlockStream, descriptor *VolumeDescriptor) ([]DirectoryEntry, error) {
	cache := newDirectoryCache(stream, descriptor)
	return scanDirectoryRegion(cache, descriptor.FileCount)
}

func newDirectoryCache(stream *c.BlockStream, descriptor *VolumeDescriptor) *blockcache.BlockCache {
	return blockcache.WrapStream(
		stream,
		c.PhysicalBlock(descriptor.DirectoryStart),
		uint(descriptor.DirectoryLength),
	)
}

// scanDirectoryRegion walks exactly `fileCount` records of the directory held
// in `cache`.
//
// Records start on even offsets. Before the next record there may also be any
// number of zero bytes, which are skipped. The zero-skipping stops at the end
// of the directory region, but a record that doesn't fit in the region means
// the file count or directory length is wrong.
//
// Invalid records are dropped from the result but still consume their space.
func scanDirectoryRegion(cache *blockcache.BlockCache, fileCount uint16) ([]DirectoryEntry, error) {
	regionSize := cache.Size()
	entries := make([]DirectoryEntry, 0, fileCount)
	header := make([]byte, DirectoryEntryHeaderSize)
	nextByte := make([]byte, 1)
	offset := int64(0)

	for i := 0; i < int(fileCount); i++ {
		if offset+DirectoryEntryHeaderSize > regionSize {
			return nil, mfskit.ErrCorruptVolume.WithMessage(
				fmt.Sprintf(
					"directory record %d of %d starts at offset %d, past the end of the %d-byte directory",
					i+1,
					fileCount,
					offset,
					regionSize,
				),
			)
		}

		_, err := cache.ReadBytesAt(header, offset)
		if err != nil {
			return nil, err
		}

		raw, err := ParseDirectoryEntryHeader(header)
		if err != nil {
			return nil, err
		}

		recordSize := DirectoryEntryHeaderSize + int64(raw.NameLength)
		if offset+recordSize > regionSize {
			return nil, mfskit.ErrCorruptVolume.WithMessage(
				fmt.Sprintf(
					"directory record %d of %d at offset %d is %d bytes, overrunning the %d-byte directory",
					i+1,
					fileCount,
					offset,
					recordSize,
					regionSize,
				),
			)
		}

		entry := DirectoryEntry{
			RawDirectoryEntry: raw,
			Name:              make([]byte, raw.NameLength),
			Offset:            offset,
		}
		_, err = cache.ReadBytesAt(entry.Name, offset+DirectoryEntryHeaderSize)
		if err != nil {
			return nil, err
		}

		if entry.IsValid() {
			entries = append(entries, entry)
		}

		// Skip the alignment byte, then any zero padding.
		if (offset+recordSize)%2 != 0 {
			offset++
		}
		for offset+recordSize < regionSize {
			_, err = cache.ReadBytesAt(nextByte, offset+recordSize)
			if err != nil {
				return nil, err
			}
			if nextByte[0] != 0 {
				break
			}
			offset++
		}
		offset += recordSize
	}

	return entries, nil
}
