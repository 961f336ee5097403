package mfs_test

import (
	"bytes"
	"io"
	"sort"
	"testing"

	"github.com/dargueta/mfskit"
	"github.com/dargueta/mfskit/file_systems/mfs"
	kittest "github.com/dargueta/mfskit/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMount__NotMFS(t *testing.T) {
	image := make([]byte, 400*1024)
	_, err := mfs.Mount(bytes.NewReader(image), mfs.Options{})
	assert.ErrorIs(t, err, mfskit.ErrNotAnMFSVolume)
}

func TestMount__DeviceTooSmall(t *testing.T) {
	image := kittest.BuildMFSImage(t, kittest.MFSImageOptions{})

	_, err := mfs.Mount(bytes.NewReader(image.Bytes[:1050]), mfs.Options{})
	assert.ErrorIs(t, err, mfskit.ErrDeviceReadFailure)

	_, err = mfs.Mount(bytes.NewReader(image.Bytes[:100]), mfs.Options{})
	assert.ErrorIs(t, err, mfskit.ErrDeviceReadFailure)
}

func TestMount__PartitionOffset(t *testing.T) {
	data := patternBytes(2500, 17)
	image := kittest.BuildMFSImage(
		t,
		kittest.MFSImageOptions{Scatter: true},
		kittest.MFSFile{Name: "Inside", Data: data},
	)

	// Put 3 sectors of junk in front of the volume.
	device := append(bytes.Repeat([]byte{0xD2}, 1536), image.Bytes...)

	_, err := mfs.Mount(bytes.NewReader(device), mfs.Options{})
	assert.ErrorIs(t, err, mfskit.ErrNotAnMFSVolume)

	volume, err := mfs.Mount(bytes.NewReader(device), mfs.Options{PartitionOffset: 1536})
	require.NoError(t, err)

	file, err := volume.Open("Inside", mfskit.DataFork)
	require.NoError(t, err)
	assert.Equal(t, data, readFork(t, file, 999))
}

func TestMountStream(t *testing.T) {
	data := patternBytes(1800, 2)
	image := kittest.BuildMFSImage(
		t,
		kittest.MFSImageOptions{},
		kittest.MFSFile{Name: "Streamed", Data: data},
	)

	volume, err := mfs.MountStream(image.Stream(), mfs.Options{})
	require.NoError(t, err)

	file, err := volume.Open("Streamed", mfskit.DataFork)
	require.NoError(t, err)
	assert.Equal(t, data, readFork(t, file, 512))
}

func TestMountStream__CompressedImage(t *testing.T) {
	data := patternBytes(2500, 5)
	image := kittest.BuildMFSImage(
		t,
		kittest.MFSImageOptions{},
		kittest.MFSFile{Name: "Archived", Data: data},
	)

	stream := kittest.LoadDiskImage(t, kittest.CompressDiskImage(t, image.Bytes), mfs.SectorSize, 800)
	volume, err := mfs.MountStream(stream, mfs.Options{})
	require.NoError(t, err)

	file, err := volume.Open("Archived", mfskit.DataFork)
	require.NoError(t, err)
	assert.Equal(t, data, readFork(t, file, 1000))
}

func TestMount__VerifyAllocationMap(t *testing.T) {
	image := kittest.BuildMFSImage(t, kittest.MFSImageOptions{})
	image.PutMapEntry(t, 300, mfs.DirectoryBlock)

	_, err := mfs.Mount(image.Reader(), mfs.Options{})
	assert.NoError(t, err, "map shouldn't be verified unless asked")

	_, err = mfs.Mount(image.Reader(), mfs.Options{VerifyAllocationMap: true})
	assert.ErrorIs(t, err, mfskit.ErrCorruptVolume)
}

// Reading part of a file must not depend on the device being larger than the
// volume claims.
func TestMount__ExplicitDeviceSize(t *testing.T) {
	image := kittest.BuildMFSImage(
		t,
		kittest.MFSImageOptions{},
		kittest.MFSFile{Name: "Sized", Data: []byte("abc")},
	)

	volume, err := mfs.Mount(image.Reader(), mfs.Options{DeviceSize: 8192 + 1024})
	require.NoError(t, err)
	file, err := volume.Open("Sized", mfskit.DataFork)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), readFork(t, file, 10))
}

func TestVolume__Lookup(t *testing.T) {
	image := kittest.BuildMFSImage(
		t,
		kittest.MFSImageOptions{},
		kittest.MFSFile{Name: "Alpha"},
		kittest.MFSFile{Name: "alpha", Data: []byte("lower")},
		kittest.MFSFile{Name: "Gone", Unused: true},
		kittest.MFSFile{Name: "Caf\x8e"},
	)
	volume := mountImage(t, image)

	entry, err := volume.Lookup("alpha")
	require.NoError(t, err)
	assert.EqualValues(t, 2, entry.FileNumber)

	_, err = volume.Lookup("ALPHA")
	assert.ErrorIs(t, err, mfskit.ErrNotFound)

	_, err = volume.Lookup("Gone")
	assert.ErrorIs(t, err, mfskit.ErrNotFound)

	// Raw names are Mac OS Roman.
	entry, err = volume.Lookup("Caf\x8e")
	require.NoError(t, err)
	assert.Equal(t, "Café", entry.DisplayName())

	_, err = volume.Open("Nope", mfskit.DataFork)
	assert.ErrorIs(t, err, mfskit.ErrNotFound)
}

// Names are length-prefixed, so neither a prefix nor an extension of a name
// matches it.
func TestVolume__Open__ExactLength(t *testing.T) {
	image := kittest.BuildMFSImage(
		t,
		kittest.MFSImageOptions{},
		kittest.MFSFile{Name: "HELLO", Data: []byte("hi")},
	)
	volume := mountImage(t, image)

	for _, name := range []string{"HELLOX", "HELL", "HELLO\x00", ""} {
		_, err := volume.Open(name, mfskit.DataFork)
		assert.ErrorIsf(t, err, mfskit.ErrNotFound, "name %q", name)
	}

	file, err := volume.Open("HELLO", mfskit.DataFork)
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), readFork(t, file, 10))
}

func TestVolume__Open__SingleBlockFile(t *testing.T) {
	image := kittest.BuildMFSImage(
		t,
		kittest.MFSImageOptions{AllocBlockSize: 512, DirectoryStart: 5},
		kittest.MFSFile{Name: "HELLO", Data: patternBytes(10, 40)},
	)
	require.EqualValues(t, 1, image.Descriptor.FileCount)
	require.Equal(t, []uint16{2}, image.DataChains[0])
	require.Equal(t, mfs.LastBlock, image.MapEntry(t, 2))

	volume := mountImage(t, image)
	file, err := volume.Open("HELLO", mfskit.DataFork)
	require.NoError(t, err)
	entry := file.Entry()
	assert.EqualValues(t, 10, entry.DataLogicalSize)
	assert.EqualValues(t, 512, entry.DataPhysicalSize)
	assert.EqualValues(t, 2, entry.DataStartBlock)

	descriptor := volume.Descriptor()
	offset := descriptor.BlockOffset(2)
	buffer := make([]byte, 10)
	n, err := file.Read(buffer)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, image.Bytes[offset:offset+10], buffer)
}

func TestVolume__Stat(t *testing.T) {
	image := kittest.BuildMFSImage(
		t,
		kittest.MFSImageOptions{},
		kittest.MFSFile{Name: "Doc", Data: make([]byte, 10), TypeCode: "TEXT"},
	)
	volume := mountImage(t, image)

	stat, err := volume.Stat("Doc")
	require.NoError(t, err)
	assert.EqualValues(t, 10, stat.Size)
	assert.Equal(t, "TEXT", stat.TypeCode)

	_, err = volume.Stat("Missing")
	assert.ErrorIs(t, err, mfskit.ErrNotFound)
}

func TestVolume__OpenEntry__BadFork(t *testing.T) {
	image := kittest.BuildMFSImage(t, kittest.MFSImageOptions{}, kittest.MFSFile{Name: "A"})
	volume := mountImage(t, image)
	entry, err := volume.Lookup("A")
	require.NoError(t, err)

	_, err = volume.OpenEntry(entry, mfskit.Fork(7))
	assert.ErrorIs(t, err, mfskit.ErrInvalidArgument)
}

func TestVolume__Closed(t *testing.T) {
	image := kittest.BuildMFSImage(t, kittest.MFSImageOptions{}, kittest.MFSFile{Name: "A"})
	volume := mountImage(t, image)
	require.NoError(t, volume.Close())

	_, err := volume.ReadDir()
	assert.ErrorIs(t, err, mfskit.ErrInvalidHandle)
	_, err = volume.Open("A", mfskit.DataFork)
	assert.ErrorIs(t, err, mfskit.ErrInvalidHandle)
}

func TestVolume__Descriptor__IsCopy(t *testing.T) {
	image := kittest.BuildMFSImage(t, kittest.MFSImageOptions{VolumeName: "Original"})
	volume := mountImage(t, image)

	descriptor := volume.Descriptor()
	descriptor.FileCount = 99
	descriptor.Name[0] = 'X'

	assert.EqualValues(t, 0, volume.Descriptor().FileCount)
	assert.Equal(t, "Original", volume.Descriptor().Label())
}

func TestVolume__FileSystemImplementer(t *testing.T) {
	image := kittest.BuildMFSImage(
		t,
		kittest.MFSImageOptions{VolumeName: "Work Disk"},
		kittest.MFSFile{Name: "R\x8esum\x8e", Data: []byte("cv"), Resource: []byte("res")},
		kittest.MFSFile{Name: "Budget", Data: make([]byte, 4000)},
	)
	volume := mountImage(t, image)
	var implementer mfskit.FileSystemImplementer = volume

	fsStat := implementer.FSStat()
	assert.EqualValues(t, 1024, fsStat.BlockSize)
	assert.EqualValues(t, 392, fsStat.TotalBlocks)
	assert.EqualValues(t, 392-6, fsStat.BlocksFree)
	assert.EqualValues(t, 2, fsStat.Files)
	assert.Equal(t, "Work Disk", fsStat.Label)

	features := implementer.GetFSFeatures()
	assert.True(t, features.HasResourceForks)
	assert.False(t, features.HasDirectories)
	assert.Equal(t, mfs.MacEpoch, features.TimestampEpoch)

	names, err := implementer.ListEntries()
	require.NoError(t, err)
	sort.Strings(names)
	assert.Equal(t, []string{"Budget", "Résumé"}, names)

	stat, err := implementer.StatEntry("Résumé")
	require.NoError(t, err)
	assert.EqualValues(t, 3, stat.ResourceSize)

	reader, err := implementer.OpenFork("Résumé", mfskit.ResourceFork)
	require.NoError(t, err)
	assert.EqualValues(t, 3, reader.Size())
	buffer := make([]byte, 10)
	n, err := reader.Read(buffer)
	require.NoError(t, err)
	assert.Equal(t, "res", string(buffer[:n]))
	position, err := reader.Seek(1, io.SeekStart)
	require.NoError(t, err)
	assert.EqualValues(t, 1, position)
	require.NoError(t, reader.Close())

	_, err = implementer.OpenFork("R\x8esum\x8e", mfskit.DataFork)
	assert.ErrorIs(t, err, mfskit.ErrNotFound)
}
