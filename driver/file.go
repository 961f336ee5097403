package driver

import (
	"io"
	"io/fs"
	"time"

	"github.com/dargueta/mfskit"
	"github.com/dargueta/mfskit/file_systems/common/basicstream"
)

// FileInfo gives detailed information about a file or one of its forks. It
// implements both the [fs.FileInfo] and [fs.DirEntry] interfaces, and
// [FileInfo.Sys] returns the underlying [mfskit.FileStat].
type FileInfo struct {
	name string
	stat mfskit.FileStat
	fork mfskit.Fork
}

func newFileInfo(name string, stat mfskit.FileStat, fork mfskit.Fork) *FileInfo {
	return &FileInfo{name: name, stat: stat, fork: fork}
}

// fs.FileInfo implementation --------------------------------------------------

func (info *FileInfo) Name() string {
	if info.fork == mfskit.ResourceFork {
		return "rsrc"
	}
	return info.name
}

// Size returns the size of the fork the info describes.
func (info *FileInfo) Size() int64 {
	if info.fork == mfskit.ResourceFork {
		return info.stat.ResourceSize
	}
	return info.stat.Size
}

// Mode returns the mode flags for the file or directory. It's functionally
// identical to Type() plus permission bits.
func (info *FileInfo) Mode() fs.FileMode {
	return info.stat.FileMode()
}

func (info *FileInfo) ModTime() time.Time {
	return info.stat.LastModified
}

func (info *FileInfo) IsDir() bool {
	return info.stat.IsDir()
}

func (info *FileInfo) Sys() any {
	return info.stat
}

// fs.DirEntry implementation --------------------------------------------------

// Type returns the type bits of the mode flags.
func (info *FileInfo) Type() fs.FileMode {
	return info.Mode().Type()
}

// Info is part of the [fs.DirEntry] interface. It returns the `FileInfo` it was
// called on, since that implements both interfaces.
func (info *FileInfo) Info() (fs.FileInfo, error) {
	return info, nil
}

// Fork returns which fork of the file this info describes.
func (info *FileInfo) Fork() mfskit.Fork {
	return info.fork
}

////////////////////////////////////////////////////////////////////////////////

// File is an open fork, returned by [Driver.Open].
type File struct {
	*basicstream.BasicStream
	info *FileInfo
}

func (file *File) Name() string {
	return file.info.name
}

func (file *File) Stat() (fs.FileInfo, error) {
	return file.info, nil
}

////////////////////////////////////////////////////////////////////////////////

// rootDirectory is the open handle for ".". It implements [fs.ReadDirFile].
type rootDirectory struct {
	driver  *Driver
	entries []*FileInfo
	// offset is the index of the next entry ReadDir will return.
	offset int
	closed bool
}

func (dir *rootDirectory) Stat() (fs.FileInfo, error) {
	return dir.driver.rootInfo(), nil
}

func (dir *rootDirectory) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: ".", Err: mfskit.ErrIsADirectory}
}

func (dir *rootDirectory) Close() error {
	dir.closed = true
	return nil
}

// ReadDir follows the semantics of [fs.ReadDirFile].
func (dir *rootDirectory) ReadDir(n int) ([]fs.DirEntry, error) {
	if dir.closed {
		return nil, &fs.PathError{Op: "readdir", Path: ".", Err: fs.ErrClosed}
	}
	if dir.entries == nil {
		infos, err := dir.driver.listRoot()
		if err != nil {
			return nil, toPathError("readdir", ".", err)
		}
		dir.entries = infos
	}

	remaining := dir.entries[dir.offset:]
	if n > 0 && len(remaining) == 0 {
		return nil, io.EOF
	}
	if n > 0 && n < len(remaining) {
		remaining = remaining[:n]
	}

	result := make([]fs.DirEntry, len(remaining))
	for i, info := range remaining {
		result[i] = info
	}
	dir.offset += len(remaining)
	return result, nil
}
