// Package binhex encodes and decodes BinHex 4.0 files, the 7-bit text format
// classic Mac OS used to move both forks of a file through systems that only
// understand plain text.
//
// An encoded file is the comment line
//
//	(This file must be converted with BinHex 4.0)
//
// followed by a colon, the payload in a 64-character alphabet, and a closing
// colon. The payload is RLE90-compressed binary data:
//
//	name length (1), name, version (1, always 0), type (4), creator (4),
//	Finder flags (2), data fork length (4), resource fork length (4), CRC (2),
//	data fork, CRC (2), resource fork, CRC (2)
//
// All integers are big-endian. The CRCs are CRC-16/XMODEM.
package binhex

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dargueta/mfskit"
	"github.com/dargueta/mfskit/utilities/compression"
)

// Banner is the line preceding the encoded data.
const Banner = "(This file must be converted with BinHex 4.0)"

// MaxNameLength is the longest file name a BinHex header can hold.
const MaxNameLength = 63

const alphabet = "!\"#$%&'()*+,-012345689@ABCDEFGHIJKLMNPQRSTUVXYZ[`abcdefhijklmpqr"

const lineLength = 64

var decodeTable [256]int8

func init() {
	for i := range decodeTable {
		decodeTable[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		decodeTable[alphabet[i]] = int8(i)
	}
}

// File is the content of a BinHex archive.
type File struct {
	// Name is the raw file name in Mac OS Roman.
	Name        []byte
	TypeCode    [4]byte
	CreatorCode [4]byte
	FinderFlags uint16
	Data        []byte
	Resource    []byte
}

type header struct {
	Version      uint8
	TypeCode     [4]byte
	CreatorCode  [4]byte
	FinderFlags  uint16
	DataLength   uint32
	ResourceSize uint32
}

// CRC16 updates a CRC-16/XMODEM checksum with `data`.
func CRC16(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func writeWithCRC(output *bytes.Buffer, data []byte) {
	output.Write(data)
	_ = binary.Write(output, binary.BigEndian, CRC16(0, data))
}

// Encode writes `file` to `output` in BinHex 4.0 format.
func Encode(output io.Writer, file *File) error {
	if len(file.Name) == 0 || len(file.Name) > MaxNameLength {
		return mfskit.ErrNameTooLong.WithMessage(
			fmt.Sprintf("name must be 1-%d bytes, got %d", MaxNameLength, len(file.Name)))
	}

	var headerBytes bytes.Buffer
	headerBytes.WriteByte(byte(len(file.Name)))
	headerBytes.Write(file.Name)
	_ = binary.Write(
		&headerBytes,
		binary.BigEndian,
		header{
			TypeCode:     file.TypeCode,
			CreatorCode:  file.CreatorCode,
			FinderFlags:  file.FinderFlags,
			DataLength:   uint32(len(file.Data)),
			ResourceSize: uint32(len(file.Resource)),
		},
	)

	var payload bytes.Buffer
	writeWithCRC(&payload, headerBytes.Bytes())
	writeWithCRC(&payload, file.Data)
	writeWithCRC(&payload, file.Resource)

	packed, err := compression.CompressRLE90Bytes(payload.Bytes())
	if err != nil {
		return err
	}

	writer := bufio.NewWriter(output)
	fmt.Fprintf(writer, "%s\n", Banner)

	lineWriter := &wrappingWriter{output: writer}
	lineWriter.writeByte(':')
	encodeSixBit(lineWriter, packed)
	lineWriter.writeByte(':')
	writer.WriteByte('\n')
	return writer.Flush()
}

type wrappingWriter struct {
	output *bufio.Writer
	column int
}

func (w *wrappingWriter) writeByte(b byte) {
	if w.column == lineLength {
		w.output.WriteByte('\n')
		w.column = 0
	}
	w.output.WriteByte(b)
	w.column++
}

func encodeSixBit(output *wrappingWriter, data []byte) {
	for i := 0; i < len(data); i += 3 {
		var group [3]byte
		groupSize := copy(group[:], data[i:])
		bits := uint32(group[0])<<16 | uint32(group[1])<<8 | uint32(group[2])

		// n bytes need ceil(8n / 6) characters.
		numChars := (groupSize*8 + 5) / 6
		for j := 0; j < numChars; j++ {
			output.writeByte(alphabet[(bits>>(18-6*j))&0x3F])
		}
	}
}

func decodeSixBit(text []byte) ([]byte, error) {
	output := make([]byte, 0, len(text)*3/4)
	accumulator := uint32(0)
	numBits := 0

	for _, char := range text {
		switch char {
		case '\r', '\n', '\t', ' ':
			continue
		}

		value := decodeTable[char]
		if value < 0 {
			return nil, mfskit.ErrInvalidArgument.WithMessage(
				fmt.Sprintf("invalid character %q in BinHex data", char))
		}

		accumulator = accumulator<<6 | uint32(value)
		numBits += 6
		if numBits >= 8 {
			numBits -= 8
			output = append(output, byte(accumulator>>numBits))
			accumulator &= (1 << numBits) - 1
		}
	}
	return output, nil
}

// Decode reads a BinHex 4.0 file and verifies its checksums. Anything before the
// first colon at the start of a line is ignored.
func Decode(input io.Reader) (*File, error) {
	text, err := io.ReadAll(input)
	if err != nil {
		return nil, err
	}

	start := bytes.Index(text, []byte("\n:"))
	if start >= 0 {
		start += 2
	} else if bytes.HasPrefix(text, []byte(":")) {
		start = 1
	} else {
		return nil, mfskit.ErrInvalidArgument.WithMessage("no BinHex data found")
	}

	end := bytes.IndexByte(text[start:], ':')
	if end < 0 {
		return nil, mfskit.ErrInvalidArgument.WithMessage("BinHex data has no terminating colon")
	}

	packed, err := decodeSixBit(text[start : start+end])
	if err != nil {
		return nil, err
	}
	payload, err := compression.DecompressRLE90Bytes(packed)
	if err != nil {
		return nil, mfskit.ErrInvalidArgument.Wrap(err)
	}
	return parsePayload(payload)
}

type payloadReader struct {
	data   []byte
	offset int
}

func (r *payloadReader) take(size int, what string) ([]byte, error) {
	if size < 0 || r.offset+size > len(r.data) {
		return nil, mfskit.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("BinHex data ends in the middle of the %s", what))
	}
	chunk := r.data[r.offset : r.offset+size]
	r.offset += size
	return chunk, nil
}

func (r *payloadReader) takeChecked(size int, what string) ([]byte, error) {
	start := r.offset
	chunk, err := r.take(size, what)
	if err != nil {
		return nil, err
	}
	crcBytes, err := r.take(2, what+" checksum")
	if err != nil {
		return nil, err
	}

	expected := binary.BigEndian.Uint16(crcBytes)
	actual := CRC16(0, r.data[start:start+size])
	if expected != actual {
		return nil, mfskit.ErrFileSystemCorrupted.WithMessage(
			fmt.Sprintf("%s checksum mismatch: expected 0x%04x, got 0x%04x", what, expected, actual))
	}
	return chunk, nil
}

func parsePayload(payload []byte) (*File, error) {
	reader := &payloadReader{data: payload}
	if len(payload) == 0 {
		return nil, mfskit.ErrInvalidArgument.WithMessage("BinHex data is empty")
	}

	headerSize := 1 + int(payload[0]) + binary.Size(header{})
	headerBytes, err := reader.takeChecked(headerSize, "header")
	if err != nil {
		return nil, err
	}

	nameLength := int(headerBytes[0])
	var fields header
	err = binary.Read(bytes.NewReader(headerBytes[1+nameLength:]), binary.BigEndian, &fields)
	if err != nil {
		return nil, mfskit.ErrInvalidArgument.Wrap(err)
	}

	file := &File{
		Name:        bytes.Clone(headerBytes[1 : 1+nameLength]),
		TypeCode:    fields.TypeCode,
		CreatorCode: fields.CreatorCode,
		FinderFlags: fields.FinderFlags,
	}

	file.Data, err = reader.takeChecked(int(fields.DataLength), "data fork")
	if err != nil {
		return nil, err
	}
	file.Resource, err = reader.takeChecked(int(fields.ResourceSize), "resource fork")
	if err != nil {
		return nil, err
	}
	return file, nil
}
