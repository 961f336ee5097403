package testing

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
	"time"

	"github.com/dargueta/mfskit/disks"
	"github.com/dargueta/mfskit/file_systems/mfs"
	"github.com/noxer/bytewriter"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"
)

// DefaultTimestamp is used for files and volumes built without explicit times.
var DefaultTimestamp = time.Date(1985, time.March, 1, 12, 30, 0, 0, time.UTC)

// MFSFile describes a file to put on a built MFS image.
type MFSFile struct {
	// Name is the raw name of the file, in Mac OS Roman.
	Name        string
	Data        []byte
	Resource    []byte
	TypeCode    string
	CreatorCode string
	Locked      bool
	// Unused writes a record without the in-use flag. No blocks are allocated
	// for it.
	Unused bool
	// Version is written to the record's type byte. Records with a nonzero
	// version are not valid files, and no blocks are allocated for them.
	Version    uint8
	CreatedAt  time.Time
	ModifiedAt time.Time
}

func (file *MFSFile) isLive() bool {
	return !file.Unused && file.Version == 0
}

// MFSImageOptions controls the layout of a built MFS image. Zero values select
// the layout of a freshly initialized 400K floppy.
type MFSImageOptions struct {
	// Geometry is the slug of the medium the image is for. Default: "mac-400k".
	Geometry        string
	AllocBlockSize  uint32
	ClumpSize       uint32
	DirectoryStart  uint16
	DirectoryLength uint16
	VolumeName      string
	// Scatter allocates blocks from the end of the volume backwards, so that no
	// chain is in ascending order.
	Scatter bool
	// RecordGap inserts this many zero bytes after every directory record, in
	// addition to any alignment byte.
	RecordGap int
	CreatedAt time.Time
}

// MFSImage is a built image along with where its pieces ended up.
type MFSImage struct {
	Bytes      []byte
	Descriptor mfs.RawVolumeInfo
	// DataChains and ResourceChains hold the blocks allocated to each fork of
	// each file, in chain order and in the order the files were given.
	DataChains     [][]uint16
	ResourceChains [][]uint16
	// RecordOffsets holds the offset of each file's directory record from the
	// start of the directory.
	RecordOffsets []int64
}

func (options *MFSImageOptions) setDefaults() {
	if options.Geometry == "" {
		options.Geometry = "mac-400k"
	}
	if options.AllocBlockSize == 0 {
		options.AllocBlockSize = 1024
	}
	if options.ClumpSize == 0 {
		options.ClumpSize = options.AllocBlockSize * 8
	}
	if options.DirectoryStart == 0 {
		options.DirectoryStart = 4
	}
	if options.DirectoryLength == 0 {
		options.DirectoryLength = 12
	}
	if options.VolumeName == "" {
		options.VolumeName = "Untitled"
	}
	if options.CreatedAt.IsZero() {
		options.CreatedAt = DefaultTimestamp
	}
}

func fourCC(code string) []byte {
	result := []byte("    ")
	copy(result, code)
	return result
}

// BuildMFSImage creates an in-memory MFS volume holding `files`, in the order
// given. The test fails immediately if the files don't fit.
func BuildMFSImage(t *testing.T, options MFSImageOptions, files ...MFSFile) *MFSImage {
	options.setDefaults()

	geometry, err := disks.GetPredefinedDiskGeometry(options.Geometry)
	require.NoError(t, err)

	firstAllocSector := uint(options.DirectoryStart) + uint(options.DirectoryLength)
	require.Less(t, firstAllocSector, geometry.TotalSectors, "no room for data blocks")
	blockCount := (geometry.TotalSectors - firstAllocSector) * mfs.SectorSize / uint(options.AllocBlockSize)
	require.LessOrEqual(
		t,
		mfs.AllocationMapOffset+mfs.MapSize(blockCount),
		int(options.DirectoryStart)*mfs.SectorSize,
		"allocation map overlaps the directory",
	)
	require.LessOrEqual(t, len(options.VolumeName), mfs.MaxVolumeNameLength)

	image := &MFSImage{
		Bytes:          make([]byte, geometry.TotalSizeBytes()),
		DataChains:     make([][]uint16, len(files)),
		ResourceChains: make([][]uint16, len(files)),
		RecordOffsets:  make([]int64, len(files)),
	}

	// Allocate blocks for every fork.
	freeBlocks := make([]uint16, 0, blockCount)
	for block := uint(mfs.FirstAllocBlock); block < blockCount+mfs.FirstAllocBlock; block++ {
		freeBlocks = append(freeBlocks, uint16(block))
	}
	if options.Scatter {
		for i, j := 0, len(freeBlocks)-1; i < j; i, j = i+1, j-1 {
			freeBlocks[i], freeBlocks[j] = freeBlocks[j], freeBlocks[i]
		}
	}

	mapTable := image.Bytes[mfs.AllocationMapOffset : mfs.AllocationMapOffset+mfs.MapSize(blockCount)]
	allocate := func(size int) []uint16 {
		numBlocks := (size + int(options.AllocBlockSize) - 1) / int(options.AllocBlockSize)
		require.LessOrEqual(t, numBlocks, len(freeBlocks), "image is full")

		chain := freeBlocks[:numBlocks:numBlocks]
		freeBlocks = freeBlocks[numBlocks:]
		for i, block := range chain {
			next := mfs.LastBlock
			if i < len(chain)-1 {
				next = chain[i+1]
			}
			require.NoError(t, mfs.PutMapEntry(mapTable, uint(block), next))
		}
		return chain
	}

	// Write the directory and the file contents.
	directory := image.Bytes[int(options.DirectoryStart)*mfs.SectorSize : firstAllocSector*mfs.SectorSize]
	offset := 0
	for i := range files {
		file := &files[i]
		raw := mfs.RawDirectoryEntry{
			Flags:      mfs.FlagUsed,
			Type:       file.Version,
			FileNumber: uint32(i + 1),
			NameLength: uint8(len(file.Name)),
		}
		if file.Locked {
			raw.Flags |= mfs.FlagLocked
		}
		if file.Unused {
			raw.Flags = mfs.FlagLocked
		}
		copy(raw.FinderInfo[0:4], fourCC(file.TypeCode))
		copy(raw.FinderInfo[4:8], fourCC(file.CreatorCode))

		raw.CreatedAt = mfs.TimeToMacTime(DefaultTimestamp)
		if !file.CreatedAt.IsZero() {
			raw.CreatedAt = mfs.TimeToMacTime(file.CreatedAt)
		}
		raw.ModifiedAt = raw.CreatedAt
		if !file.ModifiedAt.IsZero() {
			raw.ModifiedAt = mfs.TimeToMacTime(file.ModifiedAt)
		}

		if file.isLive() {
			image.DataChains[i] = allocate(len(file.Data))
			image.ResourceChains[i] = allocate(len(file.Resource))
			writeFork(image, options, image.DataChains[i], file.Data, firstAllocSector)
			writeFork(image, options, image.ResourceChains[i], file.Resource, firstAllocSector)

			raw.DataLogicalSize = uint32(len(file.Data))
			raw.DataPhysicalSize = uint32(len(image.DataChains[i])) * options.AllocBlockSize
			if len(image.DataChains[i]) > 0 {
				raw.DataStartBlock = image.DataChains[i][0]
			}
			raw.ResourceLogicalSize = uint32(len(file.Resource))
			raw.ResourcePhysicalSize = uint32(len(image.ResourceChains[i])) * options.AllocBlockSize
			if len(image.ResourceChains[i]) > 0 {
				raw.ResourceStartBlock = image.ResourceChains[i][0]
			}
		}

		recordSize := mfs.DirectoryEntryHeaderSize + len(file.Name)
		require.LessOrEqualf(
			t, offset+recordSize, len(directory), "directory is full at file %d", i+1)

		writer := bytewriter.New(directory[offset : offset+recordSize])
		require.NoError(t, binary.Write(writer, binary.BigEndian, &raw))
		_, err = writer.Write([]byte(file.Name))
		require.NoError(t, err)

		image.RecordOffsets[i] = int64(offset)
		offset += recordSize
		if offset%2 != 0 {
			offset++
		}
		offset += options.RecordGap
	}

	image.Descriptor = mfs.RawVolumeInfo{
		Signature:        mfs.Signature,
		CreatedAt:        mfs.TimeToMacTime(options.CreatedAt),
		LastBackup:       0,
		FileCount:        uint16(len(files)),
		DirectoryStart:   options.DirectoryStart,
		DirectoryLength:  options.DirectoryLength,
		AllocBlockCount:  uint16(blockCount),
		AllocBlockSize:   options.AllocBlockSize,
		ClumpSize:        options.ClumpSize,
		FirstAllocSector: uint16(firstAllocSector),
		NextFileNumber:   uint32(len(files) + 1),
		FreeBlockCount:   uint16(len(freeBlocks)),
		NameLength:       uint8(len(options.VolumeName)),
	}
	image.writeDescriptor(t, []byte(options.VolumeName))
	return image
}

func writeFork(
	image *MFSImage,
	options MFSImageOptions,
	chain []uint16,
	contents []byte,
	firstAllocSector uint,
) {
	blockSize := int(options.AllocBlockSize)
	for i, block := range chain {
		start := int(firstAllocSector)*mfs.SectorSize + int(block-mfs.FirstAllocBlock)*blockSize
		end := (i + 1) * blockSize
		if end > len(contents) {
			end = len(contents)
		}
		copy(image.Bytes[start:start+blockSize], contents[i*blockSize:end])
	}
}

func (image *MFSImage) writeDescriptor(t *testing.T, name []byte) {
	writer := bytewriter.New(
		image.Bytes[mfs.VolumeInfoSector*mfs.SectorSize : mfs.AllocationMapOffset])
	require.NoError(t, binary.Write(writer, binary.BigEndian, &image.Descriptor))

	nameSlot := make([]byte, mfs.MaxVolumeNameLength)
	copy(nameSlot, name)
	_, err := writer.Write(nameSlot)
	require.NoError(t, err)
}

// UpdateDescriptor rewrites the volume information block after letting `modify`
// change its fields. The volume name is kept.
func (image *MFSImage) UpdateDescriptor(t *testing.T, modify func(info *mfs.RawVolumeInfo)) {
	nameStart := mfs.VolumeInfoSector*mfs.SectorSize + mfs.RawVolumeInfoSize
	name := bytes.Clone(image.Bytes[nameStart : nameStart+mfs.MaxVolumeNameLength])

	modify(&image.Descriptor)
	image.writeDescriptor(t, name)
}

func (image *MFSImage) mapTable() []byte {
	size := mfs.MapSize(uint(image.Descriptor.AllocBlockCount))
	return image.Bytes[mfs.AllocationMapOffset : mfs.AllocationMapOffset+size]
}

// PutMapEntry overwrites the allocation map entry for `block`.
func (image *MFSImage) PutMapEntry(t *testing.T, block uint16, value uint16) {
	require.NoError(t, mfs.PutMapEntry(image.mapTable(), uint(block), value))
}

// MapEntry returns the allocation map entry for `block`.
func (image *MFSImage) MapEntry(t *testing.T, block uint16) uint16 {
	value, err := mfs.DecodeMapEntry(image.mapTable(), uint(block))
	require.NoError(t, err)
	return value
}

// DirectoryRegion returns the slice of the image holding the directory.
func (image *MFSImage) DirectoryRegion() []byte {
	start := int(image.Descriptor.DirectoryStart) * mfs.SectorSize
	return image.Bytes[start : start+int(image.Descriptor.DirectoryLength)*mfs.SectorSize]
}

// Reader returns a random-access reader over a snapshot of the image.
func (image *MFSImage) Reader() *bytes.Reader {
	return bytes.NewReader(image.Bytes)
}

// Stream returns a seekable stream over the image. Writes to the stream modify
// the image.
func (image *MFSImage) Stream() io.ReadWriteSeeker {
	return bytesextra.NewReadWriteSeeker(image.Bytes)
}
