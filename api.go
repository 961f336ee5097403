package mfskit

import (
	"io"
	"io/fs"
	"time"
)

// Fork selects one of the two byte streams every Macintosh file carries.
type Fork int

const (
	DataFork Fork = iota
	ResourceFork
)

func (f Fork) String() string {
	switch f {
	case DataFork:
		return "data"
	case ResourceFork:
		return "resource"
	default:
		return "unknown"
	}
}

// FileStat is the driver-independent description of a directory entry.
type FileStat struct {
	// Name is the entry's name converted to UTF-8.
	Name string
	// FileNumber is the file system's unique identifier for the file, if any.
	FileNumber uint64
	// ModeFlags is a combination of the S_* constants in this package.
	ModeFlags uint32
	// Size is the logical size of the data fork, in bytes.
	Size int64
	// ResourceSize is the logical size of the resource fork, in bytes. It's
	// always 0 on file systems without resource forks.
	ResourceSize int64
	BlockSize    int64
	// NumBlocks is the number of allocation blocks used by all forks of the
	// file combined.
	NumBlocks    int64
	CreatedAt    time.Time
	LastModified time.Time
	// TypeCode and CreatorCode are the four-character Finder codes. Empty if the
	// file system doesn't record them.
	TypeCode    string
	CreatorCode string
}

// IsDir reports whether the stat describes a directory.
func (stat *FileStat) IsDir() bool {
	return stat.ModeFlags&S_IFMT == S_IFDIR
}

// FileMode converts ModeFlags to an [fs.FileMode].
func (stat *FileStat) FileMode() fs.FileMode {
	return ModeToFileMode(stat.ModeFlags)
}

// FSStat is the equivalent of statvfs for a mounted image.
type FSStat struct {
	BlockSize     int64
	TotalBlocks   uint64
	BlocksFree    uint64
	Files         uint64
	MaxNameLength int64
	Label         string
}

// FSFeatures describes the capabilities of a file system, so that callers can
// tell "missing" data apart from data the file system never stores.
type FSFeatures struct {
	HasDirectories     bool
	HasCreatedTime     bool
	HasResourceForks   bool
	HasUnixPermissions bool
	// TimestampEpoch is the instant that a stored timestamp of 0 denotes.
	TimestampEpoch time.Time
	// DefaultNameEncoding is the IANA name of the character set names are stored
	// in on disk.
	DefaultNameEncoding string
	DefaultBlockSize    int64
	MaxNameLength       int
}

// ForkReader is an open, read-only fork of a file.
//
// Read follows the driver convention rather than the [io.Reader] one: a read
// that can't be fully satisfied because the file's block chain ends early
// returns fewer bytes and a nil error. Use [basicstream.New] to get standard
// EOF semantics.
type ForkReader interface {
	io.Reader
	io.Seeker
	io.Closer
	// Size returns the logical size of the fork, in bytes.
	Size() int64
}

// FileSystemImplementer is the interface a mounted file system exposes to the
// generic [driver.Driver] facade. Names are display names in UTF-8.
type FileSystemImplementer interface {
	FSStat() FSStat
	GetFSFeatures() FSFeatures
	// ListEntries returns the names of all valid entries in the root directory,
	// in on-disk order.
	ListEntries() ([]string, error)
	StatEntry(name string) (FileStat, error)
	OpenFork(name string, fork Fork) (ForkReader, error)
}
