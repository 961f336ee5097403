package driver

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"

	"github.com/dargueta/mfskit"
	"github.com/dargueta/mfskit/file_systems/common/basicstream"
)

// ResourceForkSuffix is appended to a file name to address the file's resource
// fork instead of its data fork, e.g. "Read Me/..namedfork/rsrc".
const ResourceForkSuffix = "/..namedfork/rsrc"

// Driver is an abstraction layer for flat file system implementations. It
// exposes a mounted volume through the [io/fs] interfaces: [fs.FS],
// [fs.ReadDirFS], [fs.ReadFileFS], and [fs.StatFS].
//
// The root directory "." is the only directory. Everything else is addressed by
// its full name; a "/" in a name is part of the name, not a path separator.
type Driver struct {
	implementation mfskit.FileSystemImplementer
}

// New creates a new [Driver] from the given implementation.
func New(impl mfskit.FileSystemImplementer) *Driver {
	return &Driver{implementation: impl}
}

// FSStat returns information about the mounted volume.
func (driver *Driver) FSStat() mfskit.FSStat {
	return driver.implementation.FSStat()
}

// GetFSFeatures returns the features of the underlying file system.
func (driver *Driver) GetFSFeatures() mfskit.FSFeatures {
	return driver.implementation.GetFSFeatures()
}

// splitForkPath separates the resource fork suffix, if any, from a path.
func splitForkPath(path string) (string, mfskit.Fork) {
	name, found := strings.CutSuffix(path, ResourceForkSuffix)
	if found {
		return name, mfskit.ResourceFork
	}
	return path, mfskit.DataFork
}

// toPathError converts an error from the implementation into an [fs.PathError]
// that also matches the standard [fs] sentinel errors.
func toPathError(op, path string, err error) error {
	switch {
	case errors.Is(err, mfskit.ErrNotFound):
		err = fmt.Errorf("%w: %w", fs.ErrNotExist, err)
	case errors.Is(err, mfskit.ErrInvalidArgument):
		err = fmt.Errorf("%w: %w", fs.ErrInvalid, err)
	case errors.Is(err, mfskit.ErrInvalidHandle):
		err = fmt.Errorf("%w: %w", fs.ErrClosed, err)
	}
	return &fs.PathError{Op: op, Path: path, Err: err}
}

func (driver *Driver) rootInfo() *FileInfo {
	return &FileInfo{
		name: ".",
		stat: mfskit.FileStat{
			Name:      ".",
			ModeFlags: mfskit.S_IFDIR | mfskit.S_IRALL | mfskit.S_IXUSR | mfskit.S_IXGRP | mfskit.S_IXOTH,
		},
	}
}

func (driver *Driver) statPath(op, path string) (*FileInfo, error) {
	if path == "." {
		return driver.rootInfo(), nil
	}
	if path == "" {
		return nil, toPathError(op, path, mfskit.ErrInvalidArgument.WithMessage("empty path"))
	}

	name, fork := splitForkPath(path)
	stat, err := driver.implementation.StatEntry(name)
	if err != nil {
		return nil, toPathError(op, path, err)
	}
	return newFileInfo(name, stat, fork), nil
}

// Open implements [fs.FS]. Files are read-only and also implement [io.Seeker]
// and [io.ReaderAt].
func (driver *Driver) Open(path string) (fs.File, error) {
	if path == "." {
		return &rootDirectory{driver: driver}, nil
	}

	info, err := driver.statPath("open", path)
	if err != nil {
		return nil, err
	}

	fork, err := driver.implementation.OpenFork(info.stat.Name, info.fork)
	if err != nil {
		return nil, toPathError("open", path, err)
	}
	return &File{
		BasicStream: basicstream.New(fork),
		info:        info,
	}, nil
}

// Stat implements [fs.StatFS].
func (driver *Driver) Stat(path string) (fs.FileInfo, error) {
	info, err := driver.statPath("stat", path)
	if err != nil {
		return nil, err
	}
	return info, nil
}

// ReadFile implements [fs.ReadFileFS]. A file whose block chain ends early is an
// error, not a short file.
func (driver *Driver) ReadFile(path string) ([]byte, error) {
	if path == "." {
		return nil, toPathError("read", path, mfskit.ErrIsADirectory)
	}

	file, err := driver.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	contents, err := io.ReadAll(file)
	if err != nil {
		return nil, toPathError("read", path, err)
	}
	return contents, nil
}

// ReadDir implements [fs.ReadDirFS]. Entries are sorted by name.
func (driver *Driver) ReadDir(path string) ([]fs.DirEntry, error) {
	if path != "." {
		_, err := driver.statPath("readdir", path)
		if err != nil {
			return nil, err
		}
		return nil, toPathError("readdir", path, mfskit.ErrNotADirectory)
	}

	infos, err := driver.listRoot()
	if err != nil {
		return nil, toPathError("readdir", path, err)
	}

	entries := make([]fs.DirEntry, len(infos))
	for i, info := range infos {
		entries[i] = info
	}
	return entries, nil
}

// listRoot returns information about all entries in the root directory, sorted
// by name.
func (driver *Driver) listRoot() ([]*FileInfo, error) {
	names, err := driver.implementation.ListEntries()
	if err != nil {
		return nil, err
	}

	infos := make([]*FileInfo, 0, len(names))
	for _, name := range names {
		stat, err := driver.implementation.StatEntry(name)
		if err != nil {
			return nil, err
		}
		infos = append(infos, newFileInfo(name, stat, mfskit.DataFork))
	}

	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].name < infos[j].name
	})
	return infos, nil
}
