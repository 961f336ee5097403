package mfskit

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	mfserrors "github.com/dargueta/mfskit/errors"
)

// DriverError is an error carrying a POSIX-style errno code. Errors are derived
// from one of the package-level sentinels, so [errors.Is] against the sentinel
// keeps working after messages are added or causes are wrapped.
type DriverError interface {
	error
	Errno() mfserrors.Errno
	WithMessage(message string) DriverError
	Wrap(err error) DriverError
}

var ErrAlreadyInProgress = newDriverError(mfserrors.EALREADY)
var ErrArgumentOutOfRange = newDriverError(mfserrors.EDOM)
var ErrFileSystemCorrupted = newDriverError(mfserrors.EUCLEAN)
var ErrInvalidArgument = newDriverError(mfserrors.EINVAL)
var ErrInvalidFileDescriptor = newDriverError(mfserrors.EBADF)
var ErrInvalidFileSystem = newDriverError(mfserrors.EMEDIUMTYPE)
var ErrIOFailed = newDriverError(mfserrors.EIO)
var ErrIsADirectory = newDriverError(mfserrors.EISDIR)
var ErrNameTooLong = newDriverError(mfserrors.ENAMETOOLONG)
var ErrNotADirectory = newDriverError(mfserrors.ENOTDIR)
var ErrNotFound = newDriverError(mfserrors.ENOENT)

// Error kinds surfaced by the MFS reader.
var (
	// ErrNotAnMFSVolume means the volume descriptor signature didn't match.
	ErrNotAnMFSVolume = ErrInvalidFileSystem.WithMessage("not an MFS volume")
	// ErrCorruptVolume means a structural invariant of the volume was violated.
	ErrCorruptVolume = ErrFileSystemCorrupted
	// ErrDeviceReadFailure means the underlying image couldn't supply the bytes
	// requested of it.
	ErrDeviceReadFailure = ErrIOFailed
	// ErrInvalidHandle is returned by operations on a closed file handle.
	ErrInvalidHandle = ErrInvalidFileDescriptor
)

type customDriverError struct {
	errno         mfserrors.Errno
	message       string
	originalError error
}

func newDriverError(code mfserrors.Errno) DriverError {
	return customDriverError{
		errno:   code,
		message: mfserrors.StrError(code),
	}
}

// Error implements the `error` object interface. When called, it returns a string
// describing the error.
func (e customDriverError) Error() string {
	return e.message
}

func (e customDriverError) Errno() mfserrors.Errno {
	return e.errno
}

func (e customDriverError) WithMessage(message string) DriverError {
	return customDriverError{
		errno:         e.errno,
		message:       fmt.Sprintf("%s: %s", e.message, message),
		originalError: e,
	}
}

func (e customDriverError) Wrap(err error) DriverError {
	return customDriverError{
		errno:         e.errno,
		message:       fmt.Sprintf("%s: %s", e.message, err.Error()),
		originalError: multierror.Append(e, err),
	}
}

func (e customDriverError) Unwrap() error {
	return e.originalError
}

// ErrnoOf returns the errno code of the first [DriverError] in err's chain. Errors
// that didn't come from this module are reported as EIO.
func ErrnoOf(err error) mfserrors.Errno {
	if err == nil {
		return mfserrors.EOK
	}

	var driverErr DriverError
	if errors.As(err, &driverErr) {
		return driverErr.Errno()
	}
	return mfserrors.EIO
}
