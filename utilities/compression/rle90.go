package compression

import (
	"bytes"
	"fmt"
	"io"
)

// RLE90Marker is the byte that introduces a repeat count in RLE90 data.
const RLE90Marker = 0x90

// ErrInvalidRLE90 is returned when RLE90 data can't be decoded.
var ErrInvalidRLE90 = fmt.Errorf("invalid RLE90 data")

// RLE90Reader decompresses RLE90 data as used by BinHex 4.0. A byte followed by
// 0x90 and a count N stands for N copies of the byte in total; 0x90 0x00 stands
// for a literal 0x90.
type RLE90Reader struct {
	stream   io.ByteReader
	lastByte int
	pending  int
}

// NewRLE90Reader returns a reader that decompresses RLE90-encoded data from rd.
func NewRLE90Reader(rd io.ByteReader) *RLE90Reader {
	return &RLE90Reader{stream: rd, lastByte: -1}
}

func (reader *RLE90Reader) Read(p []byte) (int, error) {
	numBytesRead := 0

	for numBytesRead < len(p) {
		// Copy data we've expanded but didn't read into the output buffer.
		if reader.pending > 0 {
			p[numBytesRead] = byte(reader.lastByte)
			numBytesRead++
			reader.pending--
			continue
		}

		nextByte, err := reader.stream.ReadByte()
		if err != nil {
			if err == io.EOF && numBytesRead > 0 {
				return numBytesRead, nil
			}
			return numBytesRead, err
		}

		if nextByte != RLE90Marker {
			reader.lastByte = int(nextByte)
			p[numBytesRead] = nextByte
			numBytesRead++
			continue
		}

		repeatCount, err := reader.stream.ReadByte()
		if err != nil {
			if err == io.EOF {
				err = fmt.Errorf("%w: missing repeat count after marker", io.ErrUnexpectedEOF)
			}
			return numBytesRead, err
		}

		if repeatCount == 0 {
			reader.lastByte = RLE90Marker
			p[numBytesRead] = RLE90Marker
			numBytesRead++
		} else if reader.lastByte < 0 {
			return numBytesRead, fmt.Errorf(
				"%w: repeat count with no preceding byte", ErrInvalidRLE90)
		} else {
			// The first copy of the byte has already been emitted.
			reader.pending = int(repeatCount) - 1
		}
	}

	return numBytesRead, nil
}

// RLE90Writer compresses data written to it with RLE90. Close must be called to
// write out the last run; it does not close the underlying stream.
type RLE90Writer struct {
	stream    io.Writer
	runByte   byte
	runLength int
}

func NewRLE90Writer(stream io.Writer) *RLE90Writer {
	return &RLE90Writer{stream: stream}
}

// Write implements [io.Writer].
func (writer *RLE90Writer) Write(p []byte) (int, error) {
	for i, nextByte := range p {
		if writer.runLength > 0 && nextByte == writer.runByte {
			writer.runLength++
			continue
		}

		err := writer.Flush()
		if err != nil {
			return i, err
		}
		writer.runByte = nextByte
		writer.runLength = 1
	}
	return len(p), nil
}

func (writer *RLE90Writer) writeLiteral(buffer *bytes.Buffer, value byte) {
	buffer.WriteByte(value)
	if value == RLE90Marker {
		buffer.WriteByte(0)
	}
}

// Flush writes out the run in progress, if any.
func (writer *RLE90Writer) Flush() error {
	var output bytes.Buffer
	remaining := writer.runLength

	for remaining > 0 {
		chunkSize := remaining
		if chunkSize > 255 {
			chunkSize = 255
		}

		// An escaped marker byte costs two bytes, so repeating it pays off one
		// copy earlier than repeating any other byte.
		if chunkSize >= 3 || (writer.runByte == RLE90Marker && chunkSize == 2) {
			writer.writeLiteral(&output, writer.runByte)
			output.WriteByte(RLE90Marker)
			output.WriteByte(byte(chunkSize))
		} else {
			for i := 0; i < chunkSize; i++ {
				writer.writeLiteral(&output, writer.runByte)
			}
		}
		remaining -= chunkSize
	}

	writer.runLength = 0
	_, err := writer.stream.Write(output.Bytes())
	return err
}

func (writer *RLE90Writer) Close() error {
	return writer.Flush()
}

// CompressRLE90Bytes is a convenience function that compresses a byte slice.
func CompressRLE90Bytes(unpacked []byte) ([]byte, error) {
	var targetBuffer bytes.Buffer
	writer := NewRLE90Writer(&targetBuffer)

	_, err := writer.Write(unpacked)
	if err != nil {
		return nil, err
	}
	err = writer.Close()
	return targetBuffer.Bytes(), err
}

// DecompressRLE90Bytes is a convenience function that decompresses a byte slice.
func DecompressRLE90Bytes(packed []byte) ([]byte, error) {
	reader := NewRLE90Reader(bytes.NewReader(packed))
	return io.ReadAll(reader)
}
