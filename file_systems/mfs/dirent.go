package mfs

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/dargueta/mfskit"
)

// DirectoryEntryHeaderSize is the size of the fixed part of a directory record.
// The file name immediately follows it.
const DirectoryEntryHeaderSize = 51

// Bits of [RawDirectoryEntry.Flags].
const (
	FlagLocked = 0x01
	FlagUsed   = 0x80
)

// RawDirectoryEntry is the on-disk layout of the fixed part of a directory
// record.
type RawDirectoryEntry struct {
	Flags uint8
	// Type is the version number of the file. It's always 0 for valid files.
	Type uint8
	// FinderInfo holds the file type and creator codes in its first eight bytes,
	// followed by Finder flags and the icon position.
	FinderInfo           [16]byte
	FileNumber           uint32
	DataStartBlock       uint16
	DataLogicalSize      uint32
	DataPhysicalSize     uint32
	ResourceStartBlock   uint16
	ResourceLogicalSize  uint32
	ResourcePhysicalSize uint32
	CreatedAt            uint32
	ModifiedAt           uint32
	NameLength           uint8
}

// ForkInfo describes where a fork lives on disk.
type ForkInfo struct {
	// StartBlock is the first allocation block of the fork, or 0 if the fork is
	// empty.
	StartBlock   uint16
	LogicalSize  uint32
	PhysicalSize uint32
}

// DirectoryEntry is a directory record as read from disk.
type DirectoryEntry struct {
	RawDirectoryEntry
	// Name is the raw file name, in Mac OS Roman.
	Name []byte
	// Offset is the byte offset of the record from the start of the directory.
	Offset int64
}

// ParseDirectoryEntryHeader decodes the fixed part of a directory record.
func ParseDirectoryEntryHeader(data []byte) (RawDirectoryEntry, error) {
	var raw RawDirectoryEntry
	err := binary.Read(bytes.NewReader(data), binary.BigEndian, &raw)
	if err != nil {
		return raw, mfskit.ErrInvalidArgument.Wrap(err)
	}
	return raw, nil
}

// IsValid reports whether the record describes a live file: it's in use, has a
// name, has type 0, and neither fork's logical size exceeds its physical size.
func (entry *DirectoryEntry) IsValid() bool {
	return entry.Flags&FlagUsed != 0 &&
		entry.NameLength > 0 &&
		entry.Type == 0 &&
		entry.DataLogicalSize <= entry.DataPhysicalSize &&
		entry.ResourceLogicalSize <= entry.ResourcePhysicalSize
}

func (entry *DirectoryEntry) IsLocked() bool {
	return entry.Flags&FlagLocked != 0
}

// RecordSize is the size of the record on disk, excluding any padding after it.
func (entry *DirectoryEntry) RecordSize() int64 {
	return DirectoryEntryHeaderSize + int64(entry.NameLength)
}

// Fork returns the location and size of one of the file's forks.
func (entry *DirectoryEntry) Fork(fork mfskit.Fork) ForkInfo {
	if fork == mfskit.ResourceFork {
		return ForkInfo{
			StartBlock:   entry.ResourceStartBlock,
			LogicalSize:  entry.ResourceLogicalSize,
			PhysicalSize: entry.ResourcePhysicalSize,
		}
	}
	return ForkInfo{
		StartBlock:   entry.DataStartBlock,
		LogicalSize:  entry.DataLogicalSize,
		PhysicalSize: entry.DataPhysicalSize,
	}
}

func (entry *DirectoryEntry) DisplayName() string {
	return DecodeName(entry.Name)
}

func (entry *DirectoryEntry) CreatedTime() time.Time {
	return MacTimeToTime(entry.CreatedAt)
}

func (entry *DirectoryEntry) ModifiedTime() time.Time {
	return MacTimeToTime(entry.ModifiedAt)
}

// TypeCode returns the four-character Finder file type, e.g. "APPL".
func (entry *DirectoryEntry) TypeCode() string {
	return DecodeName(entry.FinderInfo[0:4])
}

// CreatorCode returns the four-character Finder creator code.
func (entry *DirectoryEntry) CreatorCode() string {
	return DecodeName(entry.FinderInfo[4:8])
}

// Stat converts the entry into the driver-independent stat structure. Locked
// files have no write permission bits.
func (entry *DirectoryEntry) Stat(blockSize uint32) mfskit.FileStat {
	mode := uint32(mfskit.S_IFREG | mfskit.S_IRALL)
	if !entry.IsLocked() {
		mode |= mfskit.S_IWUSR
	}

	physicalBytes := int64(entry.DataPhysicalSize) + int64(entry.ResourcePhysicalSize)
	return mfskit.FileStat{
		Name:         entry.DisplayName(),
		FileNumber:   uint64(entry.FileNumber),
		ModeFlags:    mode,
		Size:         int64(entry.DataLogicalSize),
		ResourceSize: int64(entry.ResourceLogicalSize),
		BlockSize:    int64(blockSize),
		NumBlocks:    (physicalBytes + int64(blockSize) - 1) / int64(blockSize),
		CreatedAt:    entry.CreatedTime(),
		LastModified: entry.ModifiedTime(),
		TypeCode:     entry.TypeCode(),
		CreatorCode:  entry.CreatorCode(),
	}
}
