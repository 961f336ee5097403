// Package errors defines POSIX-style errno codes independent of the host
// platform. The syscall package doesn't define EUCLEAN or EMEDIUMTYPE on every
// system.
package errors

import (
	"fmt"
)

// Errno is a platform-independent error code. The numeric values do not match
// any particular operating system.
type Errno int

const (
	EOK Errno = iota
	ENOENT
	EIO
	EBADF
	ENOTDIR
	EISDIR
	EINVAL
	EDOM
	ENAMETOOLONG
	EALREADY
	EUCLEAN
	EMEDIUMTYPE
)

type errnoInfo struct {
	name    string
	message string
}

var errnoTable = map[Errno]errnoInfo{
	EOK:          {"EOK", "Success"},
	ENOENT:       {"ENOENT", "No such file or directory"},
	EIO:          {"EIO", "Input/output error"},
	EBADF:        {"EBADF", "Bad file descriptor"},
	ENOTDIR:      {"ENOTDIR", "Not a directory"},
	EISDIR:       {"EISDIR", "Is a directory"},
	EINVAL:       {"EINVAL", "Invalid argument"},
	EDOM:         {"EDOM", "Numerical argument out of domain"},
	ENAMETOOLONG: {"ENAMETOOLONG", "File name too long"},
	EALREADY:     {"EALREADY", "Operation already in progress"},
	EUCLEAN:      {"EUCLEAN", "Structure needs cleaning"},
	EMEDIUMTYPE:  {"EMEDIUMTYPE", "Wrong medium type"},
}

// StrError returns the human-readable message for an error code.
func StrError(code Errno) string {
	info, ok := errnoTable[code]
	if ok {
		return info.message
	}
	return fmt.Sprintf("error %d not recognized.", int(code))
}

// Name returns the symbolic name of the code, e.g. "ENOENT".
func (code Errno) Name() string {
	info, ok := errnoTable[code]
	if ok {
		return info.name
	}
	return fmt.Sprintf("E%d", int(code))
}

// String implements [fmt.Stringer].
func (code Errno) String() string {
	return StrError(code)
}
