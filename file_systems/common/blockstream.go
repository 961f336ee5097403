package common

import (
	"fmt"
	"io"

	"github.com/dargueta/mfskit"
)

// DefaultSectorSize is the size of a hardware sector on every medium we deal
// with.
const DefaultSectorSize = 512

// BlockStream is an abstraction layer around a random-access image that makes it
// look like a block device with an optional partition offset. All offsets given
// to its methods are relative to the start of the partition.
//
// The exposed fields are for informational purposes only and should never be
// changed.
type BlockStream struct {
	// BytesPerBlock gives the size of a block on this device, in bytes.
	BytesPerBlock uint
	// TotalBlocks is the total number of blocks in this stream. If 0, the size
	// of the device is unknown and reads are not bounds-checked before being
	// sent to the device.
	TotalBlocks uint
	// StartOffset is an offset from the beginning of the stream, in bytes, that
	// will be considered the beginning of block 0 for the device. This is useful
	// for skipping over partition maps or other volumes stored on the same image.
	StartOffset int64
	device      io.ReaderAt
}

func NewBlockStream(
	device io.ReaderAt, totalBlocks uint, blockSize uint, startOffset int64,
) *BlockStream {
	return &BlockStream{
		StartOffset:   startOffset,
		BytesPerBlock: blockSize,
		TotalBlocks:   totalBlocks,
		device:        device,
	}
}

// NewBasicBlockStream is a constructor that creates a new BlockStream with
// 512-byte blocks and starts from an offset of 0.
func NewBasicBlockStream(device io.ReaderAt, totalBlocks uint) *BlockStream {
	return NewBlockStream(device, totalBlocks, DefaultSectorSize, 0)
}

// DetermineDeviceSize returns the size of `device` in bytes, if it can be found
// without reading the whole thing. The second return value is false if the size
// is unknown.
func DetermineDeviceSize(device io.ReaderAt) (int64, bool, error) {
	switch typed := device.(type) {
	case SizedReaderAt:
		return typed.Size(), true, nil
	case io.Seeker:
		current, err := typed.Seek(0, io.SeekCurrent)
		if err != nil {
			return 0, false, err
		}
		end, err := typed.Seek(0, io.SeekEnd)
		if err != nil {
			return 0, false, err
		}
		_, err = typed.Seek(current, io.SeekStart)
		return end, true, err
	default:
		return 0, false, nil
	}
}

// DetermineBlockCount gives the total number of blocks after `startOffset` in a
// device of `deviceSize` bytes, rounded down to the nearest block.
func DetermineBlockCount(deviceSize, startOffset int64, blockSize uint) uint {
	if deviceSize <= startOffset {
		return 0
	}
	return uint((deviceSize - startOffset) / int64(blockSize))
}

// Size returns the size of the stream in bytes, or 0 if it's unknown.
func (stream *BlockStream) Size() int64 {
	return int64(stream.TotalBlocks) * int64(stream.BytesPerBlock)
}

// BlockToOffset converts a block number into a byte offset relative to the
// start of the partition.
func (stream *BlockStream) BlockToOffset(block PhysicalBlock) int64 {
	return int64(block) * int64(stream.BytesPerBlock)
}

// CheckIOBounds checks to see if `length` bytes can be read from the stream
// starting at `offset`. If the size of the stream is unknown, this always
// passes.
func (stream *BlockStream) CheckIOBounds(offset int64, length int) error {
	if offset < 0 {
		return mfskit.ErrDeviceReadFailure.WithMessage(
			fmt.Sprintf("negative offset %d", offset))
	}
	if stream.TotalBlocks == 0 {
		return nil
	}

	if offset+int64(length) > stream.Size() {
		return mfskit.ErrDeviceReadFailure.WithMessage(
			fmt.Sprintf(
				"can't read %d bytes at offset %d: image is %d bytes",
				length,
				offset,
				stream.Size(),
			),
		)
	}
	return nil
}

// ReadAt fills `buffer` entirely with data beginning `offset` bytes into the
// partition. A short read is always an error.
func (stream *BlockStream) ReadAt(buffer []byte, offset int64) error {
	err := stream.CheckIOBounds(offset, len(buffer))
	if err != nil {
		return err
	}

	n, err := stream.device.ReadAt(buffer, stream.StartOffset+offset)
	if n == len(buffer) {
		// io.ReaderAt may return io.EOF along with a full buffer.
		return nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return mfskit.ErrDeviceReadFailure.Wrap(
		fmt.Errorf(
			"read %d of %d bytes at offset %d: %w",
			n,
			len(buffer),
			stream.StartOffset+offset,
			err,
		),
	)
}

// ReadBlocks fills `buffer` with whole blocks starting at `block`. The length of
// `buffer` must be a multiple of the block size.
func (stream *BlockStream) ReadBlocks(block PhysicalBlock, buffer []byte) error {
	if uint(len(buffer))%stream.BytesPerBlock != 0 {
		return mfskit.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"buffer must be a multiple of the block size (%d B), got %d (remainder %d)",
				stream.BytesPerBlock,
				len(buffer),
				uint(len(buffer))%stream.BytesPerBlock,
			),
		)
	}
	return stream.ReadAt(buffer, stream.BlockToOffset(block))
}

// -----------------------------------------------------------------------------

type seekingReaderAt struct {
	stream io.ReadSeeker
}

// NewReaderAt adapts a seekable stream into an [io.ReaderAt]. If `stream`
// already implements [io.ReaderAt] it's returned as-is. The adapter moves the
// stream pointer, so it must not be shared with other readers of the stream.
func NewReaderAt(stream io.ReadSeeker) io.ReaderAt {
	if readerAt, ok := stream.(io.ReaderAt); ok {
		return readerAt
	}
	return &seekingReaderAt{stream: stream}
}

func (r *seekingReaderAt) ReadAt(buffer []byte, offset int64) (int, error) {
	_, err := r.stream.Seek(offset, io.SeekStart)
	if err != nil {
		return 0, err
	}
	n, err := io.ReadFull(r.stream, buffer)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return n, err
}

// Seek exposes the underlying stream's Seek so that [DetermineDeviceSize] can
// find the size of the image.
func (r *seekingReaderAt) Seek(offset int64, whence int) (int64, error) {
	return r.stream.Seek(offset, whence)
}
