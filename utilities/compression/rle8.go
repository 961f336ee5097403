package compression

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// maxRLE8Run is the longest run a single RLE8 group can encode: the two literal
// copies plus a repeat count of 255.
const maxRLE8Run = 257

// CompressRLE8 reads bytes from the input and writes RLE8-compressed data to
// the output until the input is exhausted. Two identical bytes are always
// followed by a count of how many more copies follow them.
//
// The return value is the number of bytes written, only valid if no error
// occurred.
func CompressRLE8(input io.Reader, output io.Writer) (int64, error) {
	grouper := NewRLEGrouper(input)
	counter := &countingWriter{output: output}
	writer := bufio.NewWriter(counter)

	for {
		run, err := grouper.GetNextRun()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return counter.total, err
		}

		for remaining := run.RunLength; remaining > 0; {
			if remaining == 1 {
				writer.WriteByte(run.Byte)
				break
			}

			groupLength := min(remaining, maxRLE8Run)
			writer.Write([]byte{run.Byte, run.Byte, byte(groupLength - 2)})
			remaining -= groupLength
		}
	}

	err := writer.Flush()
	return counter.total, err
}

// DecompressRLE8 is the inverse of [CompressRLE8]. It returns the number of
// bytes written to the output.
func DecompressRLE8(input io.Reader, output io.Writer) (int64, error) {
	source := bufio.NewReader(input)
	counter := &countingWriter{output: output}
	writer := bufio.NewWriter(counter)

	// previous is the last literal byte, or -1 if the next byte can't be the
	// second half of a pair.
	previous := -1
	for {
		current, err := source.ReadByte()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return counter.total, fmt.Errorf("error reading input: %w", err)
		}

		writer.WriteByte(current)
		if int(current) != previous {
			previous = int(current)
			continue
		}

		repeatCount, err := source.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = fmt.Errorf(
					"%w: missing repeat count after two %02x bytes",
					io.ErrUnexpectedEOF,
					current,
				)
			}
			writer.Flush()
			return counter.total, err
		}
		for i := 0; i < int(repeatCount); i++ {
			writer.WriteByte(current)
		}
		// A byte following a complete group starts a new pair.
		previous = -1
	}

	err := writer.Flush()
	if err != nil {
		return counter.total, fmt.Errorf("failed to write to output: %w", err)
	}
	return counter.total, nil
}
