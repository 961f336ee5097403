package mfskit

import "io/fs"

// POSIX permission and file type bits, as used by FileStat.ModeFlags.
const (
	S_IXOTH = 0o000001
	S_IWOTH = 0o000002
	S_IROTH = 0o000004
	S_IXGRP = 0o000010
	S_IWGRP = 0o000020
	S_IRGRP = 0o000040
	S_IXUSR = 0o000100
	S_IWUSR = 0o000200
	S_IRUSR = 0o000400
	S_ISVTX = 0o001000
	S_ISGID = 0o002000
	S_ISUID = 0o004000
	S_IFIFO = 0o010000
	S_IFCHR = 0o020000
	S_IFDIR = 0o040000
	S_IFBLK = 0o060000
	S_IFREG = 0o100000
	S_IFLNK = 0o120000
	S_IFMT  = 0o170000
)

const S_IRWXO = S_IXOTH | S_IWOTH | S_IROTH
const S_IRWXG = S_IXGRP | S_IWGRP | S_IRGRP
const S_IRWXU = S_IXUSR | S_IWUSR | S_IRUSR

// S_IRALL grants read permission to everyone.
const S_IRALL = S_IRUSR | S_IRGRP | S_IROTH

// ModeToFileMode converts POSIX mode bits to an [fs.FileMode].
func ModeToFileMode(mode uint32) fs.FileMode {
	result := fs.FileMode(mode & 0o777)

	switch mode & S_IFMT {
	case S_IFDIR:
		result |= fs.ModeDir
	case S_IFLNK:
		result |= fs.ModeSymlink
	case S_IFIFO:
		result |= fs.ModeNamedPipe
	case S_IFCHR:
		result |= fs.ModeDevice | fs.ModeCharDevice
	case S_IFBLK:
		result |= fs.ModeDevice
	}

	if mode&S_ISUID != 0 {
		result |= fs.ModeSetuid
	}
	if mode&S_ISGID != 0 {
		result |= fs.ModeSetgid
	}
	if mode&S_ISVTX != 0 {
		result |= fs.ModeSticky
	}
	return result
}
