// Package blockcache provides a read-only, lazily populated block cache that
// gives a linear view of a metadata region of the disk image, such as the
// allocation map or the directory.
//
// All block indices begin at 0.
package blockcache

import (
	"fmt"

	"github.com/boljen/go-bitmap"
	"github.com/dargueta/mfskit"
	c "github.com/dargueta/mfskit/file_systems/common"
)

// FetchBlockCallback is a pointer to a function that writes the contents of a
// single block from the backing storage into `buffer`. The following guarantees
// apply:
//
// - `blockIndex` is in the range [0, TotalBlocks).
// - `buffer` is always BytesPerBlock bytes.
type FetchBlockCallback func(blockIndex c.LogicalBlock, buffer []byte) error

type BlockCache struct {
	loadedBlocks  bitmap.Bitmap
	fetch         FetchBlockCallback
	bytesPerBlock uint
	totalBlocks   uint
	data          []byte
}

// New creates a new BlockCache of `totalBlocks` blocks, none of which are loaded
// until they're first accessed.
func New(bytesPerBlock uint, totalBlocks uint, fetchCb FetchBlockCallback) *BlockCache {
	return &BlockCache{
		loadedBlocks:  bitmap.New(int(totalBlocks)),
		data:          make([]byte, int(bytesPerBlock*totalBlocks)),
		fetch:         fetchCb,
		bytesPerBlock: bytesPerBlock,
		totalBlocks:   totalBlocks,
	}
}

// WrapStream creates a [BlockCache] over `totalBlocks` consecutive blocks of
// `stream`, beginning at `firstBlock`.
func WrapStream(
	stream *c.BlockStream,
	firstBlock c.PhysicalBlock,
	totalBlocks uint,
) *BlockCache {
	fetchCb := func(block c.LogicalBlock, buffer []byte) error {
		return stream.ReadBlocks(firstBlock+c.PhysicalBlock(block), buffer)
	}
	return New(stream.BytesPerBlock, totalBlocks, fetchCb)
}

// BytesPerBlock returns the size of a single block, in bytes.
func (cache *BlockCache) BytesPerBlock() uint {
	return cache.bytesPerBlock
}

// TotalBlocks returns the size of the cache, in blocks.
func (cache *BlockCache) TotalBlocks() uint {
	return cache.totalBlocks
}

// Size gives the size of the cache, in bytes (not blocks!).
func (cache *BlockCache) Size() int64 {
	return int64(cache.bytesPerBlock) * int64(cache.totalBlocks)
}

// LengthToNumBlocks gives the minimum number of blocks required to hold the
// given number of bytes.
func (cache *BlockCache) LengthToNumBlocks(size uint) uint {
	return (size + cache.bytesPerBlock - 1) / cache.bytesPerBlock
}

// checkByteBounds verifies that `length` bytes can be accessed in the cache
// starting at byte `offset`.
func (cache *BlockCache) checkByteBounds(offset int64, length int) error {
	if offset < 0 || length < 0 || offset+int64(length) > cache.Size() {
		return mfskit.ErrArgumentOutOfRange.WithMessage(
			fmt.Sprintf(
				"can't access %d bytes at offset %d; range not in [0, %d)",
				length,
				offset,
				cache.Size(),
			),
		)
	}
	return nil
}

// checkBlockBounds verifies that `count` blocks can be accessed in the cache
// starting from block `start`.
func (cache *BlockCache) checkBlockBounds(start c.LogicalBlock, count uint) error {
	if uint(start) >= cache.totalBlocks || uint(start)+count > cache.totalBlocks {
		return mfskit.ErrArgumentOutOfRange.WithMessage(
			fmt.Sprintf(
				"can't access %d blocks from block %d; range not in [0, %d)",
				count,
				start,
				cache.totalBlocks,
			),
		)
	}
	return nil
}

// GetSlice returns a slice pointing to the cache's storage, beginning at block
// `start` and continuing for `count` blocks. The slice must not be modified.
func (cache *BlockCache) GetSlice(start c.LogicalBlock, count uint) ([]byte, error) {
	err := cache.loadBlockRange(start, count)
	if err != nil {
		return nil, err
	}

	startOffset := uint(start) * cache.bytesPerBlock
	endOffset := startOffset + (count * cache.bytesPerBlock)
	return cache.data[startOffset:endOffset], nil
}

// Data returns a slice of the entire cache's data. This requires loading all
// blocks not yet in the cache.
func (cache *BlockCache) Data() ([]byte, error) {
	err := cache.LoadAll()
	if err != nil {
		return nil, err
	}
	return cache.data, nil
}

// IsLoaded reports whether a block is present in the cache.
func (cache *BlockCache) IsLoaded(block c.LogicalBlock) bool {
	if uint(block) >= cache.totalBlocks {
		return false
	}
	return cache.loadedBlocks.Get(int(block))
}

// loadBlockRange ensures that all blocks in the range [start, start + count) are
// present in the cache, and loads any missing ones from storage.
func (cache *BlockCache) loadBlockRange(start c.LogicalBlock, count uint) error {
	if count == 0 {
		return nil
	}
	err := cache.checkBlockBounds(start, count)
	if err != nil {
		return err
	}

	for blockIndex := uint(start); blockIndex < uint(start)+count; blockIndex++ {
		if cache.loadedBlocks.Get(int(blockIndex)) {
			continue
		}

		blockStart := blockIndex * cache.bytesPerBlock
		buffer := cache.data[blockStart : blockStart+cache.bytesPerBlock]

		err = cache.fetch(c.LogicalBlock(blockIndex), buffer)
		if err != nil {
			return mfskit.ErrDeviceReadFailure.Wrap(
				fmt.Errorf("failed to load block %d from source: %w", blockIndex, err),
			)
		}
		cache.loadedBlocks.Set(int(blockIndex), true)
	}

	return nil
}

// LoadAll ensures all missing blocks are loaded from storage into the cache.
func (cache *BlockCache) LoadAll() error {
	return cache.loadBlockRange(0, cache.totalBlocks)
}

// ReadAt fills `buffer` with data beginning at block `start`, loading any missing
// blocks first. `buffer` does not need to be an exact multiple of the size of
// one block.
//
// Attempting to read past the end of the cache will result in an error, and
// `buffer` will be left unmodified.
func (cache *BlockCache) ReadAt(buffer []byte, start c.LogicalBlock) (int, error) {
	if uint(start) >= cache.totalBlocks {
		return 0, cache.checkBlockBounds(start, 1)
	}
	return cache.ReadBytesAt(buffer, int64(start)*int64(cache.bytesPerBlock))
}

// ReadBytesAt fills `buffer` with data beginning at byte `offset` of the cache.
// Unlike [io.ReaderAt], a read that would go past the end of the cache fails
// without reading anything.
func (cache *BlockCache) ReadBytesAt(buffer []byte, offset int64) (int, error) {
	err := cache.checkByteBounds(offset, len(buffer))
	if err != nil {
		return 0, err
	}
	if len(buffer) == 0 {
		return 0, nil
	}

	firstBlock := c.LogicalBlock(offset / int64(cache.bytesPerBlock))
	lastBlock := c.LogicalBlock((offset + int64(len(buffer)) - 1) / int64(cache.bytesPerBlock))
	err = cache.loadBlockRange(firstBlock, uint(lastBlock-firstBlock)+1)
	if err != nil {
		return 0, err
	}

	return copy(buffer, cache.data[offset:]), nil
}
