package mfs

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dargueta/mfskit"
)

// File is an open, read-only fork of a file on a mounted volume. It implements
// [mfskit.ForkReader].
//
// A File is not safe for concurrent use.
type File struct {
	volume   *Volume
	entry    DirectoryEntry
	fork     mfskit.Fork
	info     ForkInfo
	position int64
	isOpen   bool
}

func newFile(volume *Volume, entry DirectoryEntry, fork mfskit.Fork) *File {
	entry.Name = bytes.Clone(entry.Name)
	return &File{
		volume: volume,
		entry:  entry,
		fork:   fork,
		info:   entry.Fork(fork),
		isOpen: true,
	}
}

// Entry returns a copy of the directory entry the file was opened from.
func (file *File) Entry() DirectoryEntry {
	entry := file.entry
	entry.Name = bytes.Clone(entry.Name)
	return entry
}

// Fork returns which fork of the file this handle reads.
func (file *File) Fork() mfskit.Fork {
	return file.fork
}

// Size returns the logical size of the fork, in bytes.
func (file *File) Size() int64 {
	return int64(file.info.LogicalSize)
}

// Tell returns the current position in the fork.
func (file *File) Tell() int64 {
	return file.position
}

// IsOpen reports whether Close has not yet been called.
func (file *File) IsOpen() bool {
	return file.isOpen
}

// Close releases the handle. Calling it more than once has no effect.
func (file *File) Close() error {
	file.isOpen = false
	return nil
}

// Seek sets the position in the fork. The resulting position is clamped to
// [0, Size()], so seeking out of bounds is not an error.
func (file *File) Seek(offset int64, whence int) (int64, error) {
	if !file.isOpen {
		return 0, mfskit.ErrInvalidHandle
	}

	var newPosition int64
	switch whence {
	case io.SeekStart:
		newPosition = offset
	case io.SeekCurrent:
		newPosition = file.position + offset
	case io.SeekEnd:
		newPosition = file.Size() + offset
	default:
		return file.position, mfskit.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("invalid seek origin %d", whence))
	}

	if newPosition < 0 {
		newPosition = 0
	} else if newPosition > file.Size() {
		newPosition = file.Size()
	}
	file.position = newPosition
	return newPosition, nil
}

// Read copies up to len(buffer) bytes from the current position in the fork.
//
// Reads never go past the logical end of the fork. If the fork's block chain
// ends before the logical size says it should, the read stops there and returns
// the bytes read so far with a nil error. At the end of the fork Read returns
// (0, nil); wrap the file with basicstream for [io.EOF] semantics.
//
// If the device fails, the bytes read before the failure are returned along
// with the error.
func (file *File) Read(buffer []byte) (int, error) {
	if !file.isOpen {
		return 0, mfskit.ErrInvalidHandle
	}
	if !file.volume.isMounted {
		return 0, mfskit.ErrInvalidHandle.WithMessage("volume has been unmounted")
	}

	descriptor := file.volume.descriptor
	size := file.Size()
	if file.info.StartBlock == 0 || size == 0 || file.position >= size {
		return 0, nil
	}
	if !descriptor.IsValidBlock(file.info.StartBlock) {
		return 0, nil
	}

	count := int64(len(buffer))
	if remaining := size - file.position; count > remaining {
		count = remaining
	}
	if count == 0 {
		return 0, nil
	}

	blockSize := int64(descriptor.AllocBlockSize)
	block := file.info.StartBlock
	for i := int64(0); i < file.position/blockSize; i++ {
		next, ok, err := file.volume.allocMap.Next(block)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, nil
		}
		block = next
	}

	offsetInBlock := file.position % blockSize
	delivered := int64(0)
	for delivered < count {
		if offsetInBlock >= blockSize {
			next, ok, err := file.volume.allocMap.Next(block)
			if err != nil {
				return int(delivered), err
			}
			if !ok {
				break
			}
			block = next
			offsetInBlock = 0
		}

		chunkSize := blockSize - offsetInBlock
		if chunkSize > count-delivered {
			chunkSize = count - delivered
		}

		err := file.volume.stream.ReadAt(
			buffer[delivered:delivered+chunkSize],
			descriptor.BlockOffset(block)+offsetInBlock,
		)
		if err != nil {
			return int(delivered), err
		}

		delivered += chunkSize
		offsetInBlock += chunkSize
		file.position += chunkSize
	}

	return int(delivered), nil
}
