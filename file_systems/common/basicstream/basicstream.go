// Package basicstream adapts a fork reader to the standard [io] interfaces.

package basicstream

import (
	"io"

	"github.com/dargueta/mfskit"
)

// BasicStream is a file-like wrapper around a [mfskit.ForkReader] that follows
// the conventions of the standard library:
//
//   - Reading at the end of the fork returns [io.EOF].
//   - If the fork ends before its logical size says it should, e.g. because its
//     block chain is broken, the read returns [io.ErrUnexpectedEOF].
//
// A BasicStream is not safe for concurrent use, including concurrent calls to
// ReadAt.
type BasicStream struct {
	reader mfskit.ForkReader
}

// New creates a BasicStream on top of an open fork.
func New(reader mfskit.ForkReader) *BasicStream {
	return &BasicStream{reader: reader}
}

// Close closes the underlying fork.
func (stream *BasicStream) Close() error {
	return stream.reader.Close()
}

func (stream *BasicStream) Read(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	position := stream.Tell()
	remaining := stream.Size() - position
	if remaining <= 0 {
		return 0, io.EOF
	}

	n, err := stream.reader.Read(buffer)
	if err != nil {
		return n, err
	}

	expected := int64(len(buffer))
	if expected > remaining {
		expected = remaining
	}
	if int64(n) < expected {
		return n, io.ErrUnexpectedEOF
	}
	return n, nil
}

// ReadAt reads len(buffer) bytes starting at `offset` without changing the
// stream position. As with [io.ReaderAt], fewer bytes than requested always
// comes with an error. Failing to restore the position is also an error.
func (stream *BasicStream) ReadAt(buffer []byte, offset int64) (totalRead int, err error) {
	if offset < 0 {
		return 0, mfskit.ErrInvalidArgument.WithMessage("negative offset")
	}
	if offset >= stream.Size() {
		return 0, io.EOF
	}

	originalPosition := stream.Tell()
	defer func() {
		_, seekErr := stream.reader.Seek(originalPosition, io.SeekStart)
		if err == nil {
			err = seekErr
		}
	}()

	_, err = stream.reader.Seek(offset, io.SeekStart)
	if err != nil {
		return 0, err
	}

	for totalRead < len(buffer) {
		var n int
		n, err = stream.Read(buffer[totalRead:])
		totalRead += n
		if err != nil {
			return totalRead, err
		}
	}
	return totalRead, nil
}

// Seek sets the stream position. Positions outside [0, Size()] are clamped
// into that range rather than being an error.
func (stream *BasicStream) Seek(offset int64, whence int) (int64, error) {
	return stream.reader.Seek(offset, whence)
}

// Size returns the size of the fork, in bytes.
func (stream *BasicStream) Size() int64 {
	return stream.reader.Size()
}

// Tell returns the current stream position. It's a more concise way of calling
// `Seek(0, io.SeekCurrent)`.
func (stream *BasicStream) Tell() int64 {
	position, err := stream.reader.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0
	}
	return position
}

// WriteTo copies the rest of the fork to `w`.
func (stream *BasicStream) WriteTo(w io.Writer) (int64, error) {
	buffer := make([]byte, 4096)
	totalWritten := int64(0)

	for {
		n, readErr := stream.Read(buffer)

		// Always write the data we've read in regardless of whether an error
		// occurred or not.
		if n > 0 {
			written, writeErr := w.Write(buffer[:n])
			totalWritten += int64(written)
			if writeErr != nil {
				return totalWritten, writeErr
			}
		}

		if readErr == io.EOF {
			return totalWritten, nil
		} else if readErr != nil {
			return totalWritten, readErr
		}
	}
}
