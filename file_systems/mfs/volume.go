package mfs

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dargueta/mfskit"
	c "github.com/dargueta/mfskit/file_systems/common"
	"github.com/dargueta/mfskit/file_systems/common/blockcache"
)

// Options controls how a volume is mounted.
type Options struct {
	// PartitionOffset is the byte offset of the start of the volume within the
	// device. It's added to every offset the driver reads from.
	PartitionOffset int64
	// DeviceSize is the size of the device in bytes. If 0, it's determined from
	// the device if the device supports Size() or Seek(); otherwise reads are
	// not bounds-checked and rely on the device to report short reads.
	DeviceSize int64
	// VerifyAllocationMap enables an additional check at mount time that all
	// blocks after the first directory-reserved block in the allocation map are
	// also directory-reserved.
	VerifyAllocationMap bool
}

// Volume is a mounted MFS volume. It holds no open resources of its own; the
// caller is responsible for closing the device after unmounting.
//
// A Volume is not safe for concurrent use.
type Volume struct {
	stream     *c.BlockStream
	descriptor *VolumeDescriptor
	allocMap   *AllocationMap
	dirCache   *blockcache.BlockCache
	isMounted  bool
}

// Mount validates the volume information block of `device` and returns a volume
// ready for reading.
func Mount(device io.ReaderAt, options Options) (*Volume, error) {
	deviceSize := options.DeviceSize
	if deviceSize == 0 {
		size, known, err := c.DetermineDeviceSize(device)
		if err != nil {
			return nil, mfskit.ErrDeviceReadFailure.Wrap(err)
		}
		if known {
			deviceSize = size
		}
	}

	totalSectors := uint(0)
	if deviceSize > 0 {
		totalSectors = c.DetermineBlockCount(deviceSize, options.PartitionOffset, SectorSize)
		if totalSectors == 0 {
			return nil, mfskit.ErrDeviceReadFailure.WithMessage(
				fmt.Sprintf(
					"device of %d bytes has no room for a volume at offset %d",
					deviceSize,
					options.PartitionOffset,
				),
			)
		}
	}

	stream := c.NewBlockStream(device, totalSectors, SectorSize, options.PartitionOffset)
	descriptor, err := LoadVolumeDescriptor(stream)
	if err != nil {
		return nil, err
	}

	volume := &Volume{
		stream:     stream,
		descriptor: descriptor,
		allocMap:   NewAllocationMap(stream, descriptor),
		dirCache:   newDirectoryCache(stream, descriptor),
		isMounted:  true,
	}

	if options.VerifyAllocationMap {
		err = volume.allocMap.VerifyDirectoryReservation()
		if err != nil {
			return nil, err
		}
	}
	return volume, nil
}

// MountStream is like [Mount] but for devices that can only seek and read. The
// stream must not be used by anything else while the volume is mounted.
func MountStream(stream io.ReadSeeker, options Options) (*Volume, error) {
	return Mount(c.NewReaderAt(stream), options)
}

func (volume *Volume) checkMounted() error {
	if !volume.isMounted {
		return mfskit.ErrInvalidHandle.WithMessage("volume has been unmounted")
	}
	return nil
}

// Close unmounts the volume. Files still open on it become unreadable.
func (volume *Volume) Close() error {
	volume.isMounted = false
	return nil
}

// Descriptor returns a copy of the volume information block.
func (volume *Volume) Descriptor() VolumeDescriptor {
	descriptor := *volume.descriptor
	descriptor.Name = bytes.Clone(descriptor.Name)
	return descriptor
}

// AllocationMap returns the volume's allocation map accessor.
func (volume *Volume) AllocationMap() *AllocationMap {
	return volume.allocMap
}

// ReadDir returns all valid directory entries in on-disk order.
func (volume *Volume) ReadDir() ([]DirectoryEntry, error) {
	err := volume.checkMounted()
	if err != nil {
		return nil, err
	}
	return scanDirectoryRegion(volume.dirCache, volume.descriptor.FileCount)
}

// Lookup finds the first valid entry whose raw name is exactly `name`. Names are
// compared byte for byte; there's no case folding.
func (volume *Volume) Lookup(name string) (DirectoryEntry, error) {
	entries, err := volume.ReadDir()
	if err != nil {
		return DirectoryEntry{}, err
	}

	for _, entry := range entries {
		if string(entry.Name) == name {
			return entry, nil
		}
	}
	return DirectoryEntry{}, mfskit.ErrNotFound.WithMessage(fmt.Sprintf("%q", name))
}

// lookupDisplayName is like [Volume.Lookup] but compares against names converted
// to UTF-8.
func (volume *Volume) lookupDisplayName(name string) (DirectoryEntry, error) {
	entries, err := volume.ReadDir()
	if err != nil {
		return DirectoryEntry{}, err
	}

	for _, entry := range entries {
		if entry.DisplayName() == name {
			return entry, nil
		}
	}
	return DirectoryEntry{}, mfskit.ErrNotFound.WithMessage(fmt.Sprintf("%q", name))
}

// Open opens one fork of the file with the raw name `name`, positioned at the
// beginning.
func (volume *Volume) Open(name string, fork mfskit.Fork) (*File, error) {
	entry, err := volume.Lookup(name)
	if err != nil {
		return nil, err
	}
	return volume.OpenEntry(entry, fork)
}

// OpenEntry opens one fork of a file whose directory entry is already known.
func (volume *Volume) OpenEntry(entry DirectoryEntry, fork mfskit.Fork) (*File, error) {
	err := volume.checkMounted()
	if err != nil {
		return nil, err
	}
	if fork != mfskit.DataFork && fork != mfskit.ResourceFork {
		return nil, mfskit.ErrInvalidArgument.WithMessage(fmt.Sprintf("invalid fork %d", fork))
	}
	return newFile(volume, entry, fork), nil
}

// Stat returns information about the file with the raw name `name`.
func (volume *Volume) Stat(name string) (mfskit.FileStat, error) {
	entry, err := volume.Lookup(name)
	if err != nil {
		return mfskit.FileStat{}, err
	}
	return entry.Stat(volume.descriptor.AllocBlockSize), nil
}

// FSStat implements [mfskit.FileSystemImplementer].
func (volume *Volume) FSStat() mfskit.FSStat {
	return mfskit.FSStat{
		BlockSize:     int64(volume.descriptor.AllocBlockSize),
		TotalBlocks:   uint64(volume.descriptor.AllocBlockCount),
		BlocksFree:    uint64(volume.descriptor.FreeBlockCount),
		Files:         uint64(volume.descriptor.FileCount),
		MaxNameLength: 255,
		Label:         volume.descriptor.Label(),
	}
}

// GetFSFeatures implements [mfskit.FileSystemImplementer].
func (volume *Volume) GetFSFeatures() mfskit.FSFeatures {
	return mfskit.FSFeatures{
		HasDirectories:      false,
		HasCreatedTime:      true,
		HasResourceForks:    true,
		HasUnixPermissions:  false,
		TimestampEpoch:      MacEpoch,
		DefaultNameEncoding: "macintosh",
		DefaultBlockSize:    int64(volume.descriptor.AllocBlockSize),
		MaxNameLength:       255,
	}
}

// ListEntries implements [mfskit.FileSystemImplementer].
func (volume *Volume) ListEntries() ([]string, error) {
	entries, err := volume.ReadDir()
	if err != nil {
		return nil, err
	}

	names := make([]string, len(entries))
	for i := range entries {
		names[i] = entries[i].DisplayName()
	}
	return names, nil
}

// StatEntry implements [mfskit.FileSystemImplementer].
func (volume *Volume) StatEntry(name string) (mfskit.FileStat, error) {
	entry, err := volume.lookupDisplayName(name)
	if err != nil {
		return mfskit.FileStat{}, err
	}
	return entry.Stat(volume.descriptor.AllocBlockSize), nil
}

// OpenFork implements [mfskit.FileSystemImplementer].
func (volume *Volume) OpenFork(name string, fork mfskit.Fork) (mfskit.ForkReader, error) {
	entry, err := volume.lookupDisplayName(name)
	if err != nil {
		return nil, err
	}

	file, err := volume.OpenEntry(entry, fork)
	if err != nil {
		return nil, err
	}
	return file, nil
}
