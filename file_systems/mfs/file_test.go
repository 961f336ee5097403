package mfs_test

import (
	"errors"
	"io"
	"testing"

	"github.com/dargueta/mfskit"
	"github.com/dargueta/mfskit/file_systems/mfs"
	kittest "github.com/dargueta/mfskit/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func patternBytes(size int, seed byte) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i*7) + seed
	}
	return data
}

func mountImage(t *testing.T, image *kittest.MFSImage) *mfs.Volume {
	volume, err := mfs.Mount(image.Reader(), mfs.Options{})
	require.NoError(t, err)
	return volume
}

// readFork reads from the file in chunks of `chunkSize` until Read returns 0.
func readFork(t *testing.T, file *mfs.File, chunkSize int) []byte {
	result := []byte{}
	buffer := make([]byte, chunkSize)
	for {
		n, err := file.Read(buffer)
		require.NoError(t, err)
		if n == 0 {
			return result
		}
		result = append(result, buffer[:n]...)
	}
}

func TestFile__Read__SmallFile(t *testing.T) {
	image := kittest.BuildMFSImage(
		t,
		kittest.MFSImageOptions{},
		kittest.MFSFile{Name: "Hello", Data: []byte("Hello, world!\r")},
	)
	volume := mountImage(t, image)

	file, err := volume.Open("Hello", mfskit.DataFork)
	require.NoError(t, err)
	defer file.Close()

	assert.EqualValues(t, 14, file.Size())
	assert.Equal(t, mfskit.DataFork, file.Fork())
	assert.Equal(t, "Hello", string(file.Entry().Name))

	buffer := make([]byte, 100)
	n, err := file.Read(buffer)
	require.NoError(t, err)
	assert.Equal(t, 14, n)
	assert.Equal(t, "Hello, world!\r", string(buffer[:n]))
	assert.EqualValues(t, 14, file.Tell())

	n, err = file.Read(buffer)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}

// Reading in chunks that don't line up with block boundaries must return the
// blocks in chain order, not in disk order.
func TestFile__Read__ScatteredChain(t *testing.T) {
	data := patternBytes(5000, 3)
	resource := patternBytes(2100, 101)
	image := kittest.BuildMFSImage(
		t,
		kittest.MFSImageOptions{Scatter: true},
		kittest.MFSFile{Name: "Big", Data: data, Resource: resource},
	)
	require.Equal(t, []uint16{393, 392, 391, 390, 389}, image.DataChains[0])
	volume := mountImage(t, image)

	for _, chunkSize := range []int{1, 700, 1024, 1025, 8192} {
		file, err := volume.Open("Big", mfskit.DataFork)
		require.NoError(t, err)
		assert.Equalf(t, data, readFork(t, file, chunkSize), "chunk size %d", chunkSize)

		file, err = volume.Open("Big", mfskit.ResourceFork)
		require.NoError(t, err)
		assert.Equalf(t, resource, readFork(t, file, chunkSize), "chunk size %d", chunkSize)
	}
}

func TestFile__Read__EmptyFork(t *testing.T) {
	image := kittest.BuildMFSImage(
		t,
		kittest.MFSImageOptions{},
		kittest.MFSFile{Name: "Empty", Data: []byte("data only")},
	)
	volume := mountImage(t, image)

	file, err := volume.Open("Empty", mfskit.ResourceFork)
	require.NoError(t, err)
	assert.EqualValues(t, 0, file.Size())

	n, err := file.Read(make([]byte, 10))
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}

// Neither the entry a file is opened from nor a copy returned by Entry can
// change the open handle.
func TestFile__Entry__Independent(t *testing.T) {
	image := kittest.BuildMFSImage(
		t,
		kittest.MFSImageOptions{},
		kittest.MFSFile{Name: "HELLO", Data: []byte("hi")},
	)
	volume := mountImage(t, image)
	entry, err := volume.Lookup("HELLO")
	require.NoError(t, err)

	file, err := volume.OpenEntry(entry, mfskit.DataFork)
	require.NoError(t, err)
	entry.Name[0] = 'C'

	copied := file.Entry()
	copied.Name[0] = 'J'

	assert.Equal(t, []byte("HELLO"), file.Entry().Name)
}

func TestFile__Seek(t *testing.T) {
	data := patternBytes(3000, 0)
	image := kittest.BuildMFSImage(
		t,
		kittest.MFSImageOptions{Scatter: true},
		kittest.MFSFile{Name: "Seekable", Data: data},
	)
	volume := mountImage(t, image)

	file, err := volume.Open("Seekable", mfskit.DataFork)
	require.NoError(t, err)

	testCases := []struct {
		offset   int64
		whence   int
		expected int64
	}{
		{1000, io.SeekStart, 1000},
		{100, io.SeekCurrent, 1100},
		{-10, io.SeekEnd, 2990},
		{-5000, io.SeekCurrent, 0},
		{5000, io.SeekStart, 3000},
		{10, io.SeekEnd, 3000},
		{-1, io.SeekStart, 0},
	}
	for _, tc := range testCases {
		position, err := file.Seek(tc.offset, tc.whence)
		require.NoError(t, err)
		assert.Equalf(t, tc.expected, position, "Seek(%d, %d)", tc.offset, tc.whence)
		assert.Equal(t, tc.expected, file.Tell())
	}

	// Read across the boundary between the first and second blocks.
	_, err = file.Seek(1020, io.SeekStart)
	require.NoError(t, err)
	buffer := make([]byte, 10)
	n, err := file.Read(buffer)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, data[1020:1030], buffer)

	// Reads at the end return nothing.
	_, err = file.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	n, err = file.Read(buffer)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestFile__Seek__BadWhence(t *testing.T) {
	image := kittest.BuildMFSImage(
		t,
		kittest.MFSImageOptions{},
		kittest.MFSFile{Name: "File", Data: []byte("abc")},
	)
	file, err := mountImage(t, image).Open("File", mfskit.DataFork)
	require.NoError(t, err)

	_, err = file.Seek(1, io.SeekStart)
	require.NoError(t, err)

	position, err := file.Seek(0, 3)
	assert.ErrorIs(t, err, mfskit.ErrInvalidArgument)
	assert.EqualValues(t, 1, position)
	assert.EqualValues(t, 1, file.Tell())
}

// A chain that ends early truncates the read without an error.
func TestFile__Read__TruncatedChain(t *testing.T) {
	testCases := []struct {
		name string
		link uint16
	}{
		{"free", mfs.FreeBlock},
		{"last", mfs.LastBlock},
		{"directory", mfs.DirectoryBlock},
		{"out of range", 1000},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data := patternBytes(3000, 9)
			image := kittest.BuildMFSImage(
				t,
				kittest.MFSImageOptions{},
				kittest.MFSFile{Name: "Cut", Data: data},
			)
			image.PutMapEntry(t, image.DataChains[0][0], tc.link)

			file, err := mountImage(t, image).Open("Cut", mfskit.DataFork)
			require.NoError(t, err)

			buffer := make([]byte, 3000)
			n, err := file.Read(buffer)
			assert.NoError(t, err)
			assert.Equal(t, 1024, n)
			assert.Equal(t, data[:1024], buffer[:n])

			n, err = file.Read(buffer)
			assert.NoError(t, err)
			assert.Equal(t, 0, n)

			// Seeking past the break also reads nothing.
			_, err = file.Seek(2000, io.SeekStart)
			require.NoError(t, err)
			n, err = file.Read(buffer)
			assert.NoError(t, err)
			assert.Equal(t, 0, n)
		})
	}
}

func TestFile__Read__InvalidStartBlock(t *testing.T) {
	image := kittest.BuildMFSImage(
		t,
		kittest.MFSImageOptions{},
		kittest.MFSFile{Name: "Lost", Data: []byte("abc")},
	)
	// The data fork's start block is at offset 22 of the record.
	directory := image.DirectoryRegion()
	directory[image.RecordOffsets[0]+22] = 0x0F
	directory[image.RecordOffsets[0]+23] = 0xFF

	file, err := mountImage(t, image).Open("Lost", mfskit.DataFork)
	require.NoError(t, err)

	n, err := file.Read(make([]byte, 3))
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestFile__Read__Closed(t *testing.T) {
	image := kittest.BuildMFSImage(
		t,
		kittest.MFSImageOptions{},
		kittest.MFSFile{Name: "File", Data: []byte("abc")},
	)
	file, err := mountImage(t, image).Open("File", mfskit.DataFork)
	require.NoError(t, err)

	require.NoError(t, file.Close())
	require.NoError(t, file.Close())
	assert.False(t, file.IsOpen())

	n, err := file.Read(make([]byte, 3))
	assert.ErrorIs(t, err, mfskit.ErrInvalidHandle)
	assert.Equal(t, 0, n)

	_, err = file.Seek(0, io.SeekStart)
	assert.ErrorIs(t, err, mfskit.ErrInvalidHandle)
}

func TestFile__Read__VolumeUnmounted(t *testing.T) {
	image := kittest.BuildMFSImage(
		t,
		kittest.MFSImageOptions{},
		kittest.MFSFile{Name: "File", Data: []byte("abc")},
	)
	volume := mountImage(t, image)
	file, err := volume.Open("File", mfskit.DataFork)
	require.NoError(t, err)
	require.NoError(t, volume.Close())

	n, err := file.Read(make([]byte, 3))
	assert.ErrorIs(t, err, mfskit.ErrInvalidHandle)
	assert.Equal(t, 0, n)
}

// failingDevice returns an error for any read touching bytes at or after
// `failFrom`.
type failingDevice struct {
	data     []byte
	failFrom int64
}

func (d *failingDevice) ReadAt(buffer []byte, offset int64) (int, error) {
	if offset+int64(len(buffer)) > d.failFrom {
		return 0, errors.New("simulated bad sector")
	}
	return copy(buffer, d.data[offset:]), nil
}

func (d *failingDevice) Size() int64 {
	return int64(len(d.data))
}

func TestFile__Read__DeviceFailure(t *testing.T) {
	data := patternBytes(3000, 1)
	image := kittest.BuildMFSImage(
		t,
		kittest.MFSImageOptions{},
		kittest.MFSFile{Name: "Fragile", Data: data},
	)
	chain := image.DataChains[0]
	require.Equal(t, []uint16{2, 3, 4}, chain)

	device := &failingDevice{
		data:     image.Bytes,
		failFrom: int64(image.Descriptor.FirstAllocSector)*mfs.SectorSize + 1024,
	}
	volume, err := mfs.Mount(device, mfs.Options{})
	require.NoError(t, err)

	file, err := volume.Open("Fragile", mfskit.DataFork)
	require.NoError(t, err)

	buffer := make([]byte, 3000)
	n, err := file.Read(buffer)
	assert.ErrorIs(t, err, mfskit.ErrDeviceReadFailure)
	assert.Equal(t, 1024, n)
	assert.Equal(t, data[:1024], buffer[:n])
}
