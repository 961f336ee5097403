package blockcache_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/dargueta/mfskit"
	c "github.com/dargueta/mfskit/file_systems/common"
	"github.com/dargueta/mfskit/file_systems/common/blockcache"
	kittest "github.com/dargueta/mfskit/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test block fetch functionality with no trickery such as reading past the end
// of the image.
func TestBlockCache__Fetch__Basic(t *testing.T) {
	// Disk image is 64 blocks, 128 bytes per block. 128 is a common block size
	// in very old *true* floppies.
	rawBlocks := kittest.CreateRandomImage(128, 64, t)
	cache := kittest.CreateDefaultCache(128, 64, rawBlocks, t)

	currentBlock := make([]byte, 128)
	for i := c.LogicalBlock(0); i < 64; i++ {
		_, err := cache.ReadAt(currentBlock, i)
		if err != nil {
			t.Errorf("failed to read block %d of [0, 64): %s", i, err.Error())
			continue
		}

		start := i * 128
		if !bytes.Equal(currentBlock, rawBlocks[start:start+128]) {
			t.Errorf("block %d read from the cache doesn't match", i)
		}
	}
}

// Trying to read past the end of an image must fail.
func TestBlockCache__Fetch__ReadPastEnd(t *testing.T) {
	cache := kittest.CreateDefaultCache(512, 16, nil, t)
	buffer := make([]byte, 512)

	nRead, err := cache.ReadAt(buffer, 0)
	assert.NoError(t, err, "failed to read first block")
	assert.Equal(t, len(buffer), nRead)

	nRead, err = cache.ReadAt(buffer, 15)
	assert.NoError(t, err, "failed to read last block")
	assert.Equal(t, len(buffer), nRead)

	// One block past the last valid block must fail.
	nRead, err = cache.ReadAt(buffer, 16)
	assert.ErrorIs(t, err, mfskit.ErrArgumentOutOfRange)
	assert.Equal(t, 0, nRead)

	nRead, err = cache.ReadAt([]byte{}, 16)
	assert.Error(t, err, "tried reading 0 bytes of block 16 of [0, 16) but it didn't fail")
	assert.Equal(t, 0, nRead)

	nRead, err = cache.ReadAt(make([]byte, 8192), 0)
	assert.NoError(t, err, "failed reading entire image into buffer")
	assert.EqualValues(t, cache.Size(), nRead)

	nRead, err = cache.ReadAt(make([]byte, 8193), 0)
	assert.Error(t, err, "should've failed to read entire image + 1 byte into buffer")
	assert.Equal(t, 0, nRead)
}

// Byte-granular reads that straddle a block boundary load both blocks.
func TestBlockCache__ReadBytesAt__StraddlesBlocks(t *testing.T) {
	rawBlocks := kittest.CreateRandomImage(512, 4, t)
	cache := kittest.CreateDefaultCache(512, 4, rawBlocks, t)

	buffer := make([]byte, 10)
	n, err := cache.ReadBytesAt(buffer, 1020)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, rawBlocks[1020:1030], buffer)

	assert.False(t, cache.IsLoaded(0))
	assert.True(t, cache.IsLoaded(1))
	assert.True(t, cache.IsLoaded(2))
	assert.False(t, cache.IsLoaded(3))
}

// Blocks are fetched from storage at most once.
func TestBlockCache__FetchesOnce(t *testing.T) {
	fetchCounts := make(map[c.LogicalBlock]int)
	cache := blockcache.New(
		64,
		4,
		func(blockIndex c.LogicalBlock, buffer []byte) error {
			fetchCounts[blockIndex]++
			for i := range buffer {
				buffer[i] = byte(blockIndex)
			}
			return nil
		},
	)

	for i := 0; i < 3; i++ {
		_, err := cache.Data()
		require.NoError(t, err)
	}

	for block := c.LogicalBlock(0); block < 4; block++ {
		assert.Equalf(t, 1, fetchCounts[block], "block %d fetched wrong number of times", block)
	}
}

// A failing fetch is reported as a device failure and the block stays unloaded.
func TestBlockCache__FetchFailure(t *testing.T) {
	cache := blockcache.New(
		64,
		4,
		func(blockIndex c.LogicalBlock, buffer []byte) error {
			if blockIndex == 2 {
				return errors.New("bad sector")
			}
			return nil
		},
	)

	_, err := cache.GetSlice(1, 2)
	assert.ErrorIs(t, err, mfskit.ErrDeviceReadFailure)
	assert.True(t, cache.IsLoaded(1))
	assert.False(t, cache.IsLoaded(2))
}

func TestBlockCache__WrapStream(t *testing.T) {
	rawBlocks := kittest.CreateRandomImage(512, 8, t)
	stream := c.NewBasicBlockStream(bytes.NewReader(rawBlocks), 8)
	cache := blockcache.WrapStream(stream, 3, 2)

	data, err := cache.Data()
	require.NoError(t, err)
	assert.Equal(t, rawBlocks[3*512:5*512], data)
}
