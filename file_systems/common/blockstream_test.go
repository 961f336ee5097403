package common_test

import (
	"bytes"
	"testing"

	"github.com/dargueta/mfskit"
	c "github.com/dargueta/mfskit/file_systems/common"
	kittest "github.com/dargueta/mfskit/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"
)

func TestBlockStream__ReadAt__PartitionOffset(t *testing.T) {
	image := kittest.CreateRandomImage(512, 8, t)
	stream := c.NewBlockStream(bytes.NewReader(image), 6, 512, 1024)

	buffer := make([]byte, 100)
	require.NoError(t, stream.ReadAt(buffer, 10))
	assert.Equal(t, image[1034:1134], buffer)
}

func TestBlockStream__ReadAt__PastEndFails(t *testing.T) {
	image := kittest.CreateRandomImage(512, 4, t)
	stream := c.NewBasicBlockStream(bytes.NewReader(image), 4)

	err := stream.ReadAt(make([]byte, 2), 2047)
	assert.ErrorIs(t, err, mfskit.ErrDeviceReadFailure)
}

func TestBlockStream__ReadAt__UnknownSizeShortRead(t *testing.T) {
	image := kittest.CreateRandomImage(512, 4, t)
	stream := c.NewBasicBlockStream(bytes.NewReader(image), 0)

	// Bounds aren't known, so the failure comes from the device itself.
	err := stream.ReadAt(make([]byte, 512), 1800)
	assert.ErrorIs(t, err, mfskit.ErrDeviceReadFailure)
}

func TestBlockStream__ReadBlocks__RequiresWholeBlocks(t *testing.T) {
	stream := c.NewBasicBlockStream(bytes.NewReader(make([]byte, 2048)), 4)
	err := stream.ReadBlocks(1, make([]byte, 100))
	assert.ErrorIs(t, err, mfskit.ErrInvalidArgument)

	require.NoError(t, stream.ReadBlocks(1, make([]byte, 1024)))
}

func TestDetermineDeviceSize(t *testing.T) {
	size, known, err := c.DetermineDeviceSize(bytes.NewReader(make([]byte, 1536)))
	require.NoError(t, err)
	assert.True(t, known)
	assert.EqualValues(t, 1536, size)

	seeker := c.NewReaderAt(bytesextra.NewReadWriteSeeker(make([]byte, 2560)))
	size, known, err = c.DetermineDeviceSize(seeker)
	require.NoError(t, err)
	assert.True(t, known)
	assert.EqualValues(t, 2560, size)

	assert.EqualValues(t, 4, c.DetermineBlockCount(2560, 512, 512))
	assert.EqualValues(t, 0, c.DetermineBlockCount(100, 512, 512))
}

func TestNewReaderAt__ReadsThroughSeeker(t *testing.T) {
	image := kittest.CreateRandomImage(512, 2, t)
	reader := c.NewReaderAt(bytesextra.NewReadWriteSeeker(image))

	buffer := make([]byte, 16)
	n, err := reader.ReadAt(buffer, 700)
	require.NoError(t, err)
	assert.Equal(t, 16, n)
	assert.Equal(t, image[700:716], buffer)
}
