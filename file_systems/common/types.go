// Package common contains definitions of fundamental types and functions used
// across multiple file system implementations.
package common

// LogicalBlock is a block index relative to the start of some object, such as a
// file's cache or a metadata region.
type LogicalBlock uint

// PhysicalBlock is a block index relative to the start of the volume.
type PhysicalBlock uint

// SizedReaderAt is implemented by readers that know their total size, such as
// [bytes.Reader] and [io.SectionReader].
type SizedReaderAt interface {
	ReadAt(p []byte, off int64) (int, error)
	Size() int64
}
