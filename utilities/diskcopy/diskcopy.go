// Package diskcopy reads and writes Apple DiskCopy 4.2 disk images.
//
// A DiskCopy 4.2 image is an 84-byte header followed by the raw sector data of
// the disk, followed by the tag bytes of every sector (if any). All integers are
// big-endian.
//
// References:
//   - https://www.discferret.com/wiki/Apple_DiskCopy_4.2
package diskcopy

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/noxer/bytewriter"
	"golang.org/x/text/encoding/charmap"

	"github.com/dargueta/mfskit"
)

const (
	HeaderSize    = 84
	Magic         = 0x0100
	MaxNameLength = 63
	// tagChecksumSkip is the number of tag bytes excluded from the tag checksum.
	// Early versions of DiskCopy didn't include them, and later versions kept the
	// behavior for compatibility.
	tagChecksumSkip = 12
)

// Values of [RawHeader.DiskEncoding].
const (
	EncodingGCR400K  = 0
	EncodingGCR800K  = 1
	EncodingMFM720K  = 2
	EncodingMFM1440K = 3
)

// RawHeader is the on-disk layout of the image header.
type RawHeader struct {
	NameLength   uint8
	Name         [MaxNameLength]byte
	DataSize     uint32
	TagSize      uint32
	DataChecksum uint32
	TagChecksum  uint32
	DiskEncoding uint8
	FormatByte   uint8
	Magic        uint16
}

// DiskName returns the name of the imaged disk, converted to UTF-8.
func (header *RawHeader) DiskName() string {
	length := int(header.NameLength)
	if length > MaxNameLength {
		length = MaxNameLength
	}
	decoded, err := charmap.Macintosh.NewDecoder().Bytes(header.Name[:length])
	if err != nil {
		return string(header.Name[:length])
	}
	return string(decoded)
}

// ImageSize is the total size of a file holding an image with this header.
func (header *RawHeader) ImageSize() int64 {
	return HeaderSize + int64(header.DataSize) + int64(header.TagSize)
}

// Image is an opened DiskCopy image. The sections read directly from the file
// the image was opened from.
type Image struct {
	Header RawHeader
	Data   *io.SectionReader
	Tags   *io.SectionReader
}

// UpdateChecksum adds the big-endian 16-bit words of `data` to a running
// checksum. `data` must have an even length; a trailing odd byte is ignored.
func UpdateChecksum(checksum uint32, data []byte) uint32 {
	for i := 0; i+1 < len(data); i += 2 {
		checksum += uint32(binary.BigEndian.Uint16(data[i : i+2]))
		checksum = (checksum >> 1) | (checksum << 31)
	}
	return checksum
}

// Checksum computes the DiskCopy checksum of `data`.
func Checksum(data []byte) uint32 {
	return UpdateChecksum(0, data)
}

// checksumSection computes the checksum of `size` bytes of `r` beginning at
// `offset`, reading in sector-sized chunks.
func checksumSection(r io.ReaderAt, offset, size int64) (uint32, error) {
	buffer := make([]byte, 512*20)
	checksum := uint32(0)
	section := io.NewSectionReader(r, offset, size&^1)

	for {
		n, err := io.ReadFull(section, buffer)
		checksum = UpdateChecksum(checksum, buffer[:n])
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return checksum, nil
		} else if err != nil {
			return 0, mfskit.ErrDeviceReadFailure.Wrap(err)
		}
	}
}

// ReadHeader reads and decodes the image header without validating it.
func ReadHeader(r io.ReaderAt) (*RawHeader, error) {
	buffer := make([]byte, HeaderSize)
	n, err := r.ReadAt(buffer, 0)
	if n < HeaderSize {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, mfskit.ErrDeviceReadFailure.Wrap(err)
	}

	header := &RawHeader{}
	err = binary.Read(bytes.NewReader(buffer), binary.BigEndian, header)
	if err != nil {
		return nil, mfskit.ErrIOFailed.Wrap(err)
	}
	return header, nil
}

func (header *RawHeader) validate(fileSize int64) error {
	if header.Magic != Magic {
		return mfskit.ErrInvalidFileSystem.WithMessage(
			fmt.Sprintf("not a DiskCopy 4.2 image: bad magic 0x%04x", header.Magic))
	}
	if header.ImageSize() != fileSize {
		return mfskit.ErrInvalidFileSystem.WithMessage(
			fmt.Sprintf(
				"not a DiskCopy 4.2 image: header says %d bytes but the file is %d",
				header.ImageSize(),
				fileSize,
			),
		)
	}
	return nil
}

// Detect reports whether `r`, which is `size` bytes long, looks like a DiskCopy
// 4.2 image. Checksums are not verified.
func Detect(r io.ReaderAt, size int64) bool {
	if size < HeaderSize {
		return false
	}
	header, err := ReadHeader(r)
	if err != nil {
		return false
	}
	return header.validate(size) == nil
}

// Open validates the header and checksums of a DiskCopy 4.2 image.
func Open(r io.ReaderAt, size int64) (*Image, error) {
	header, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	err = header.validate(size)
	if err != nil {
		return nil, err
	}

	dataChecksum, err := checksumSection(r, HeaderSize, int64(header.DataSize))
	if err != nil {
		return nil, err
	}
	if dataChecksum != header.DataChecksum {
		return nil, mfskit.ErrCorruptVolume.WithMessage(
			fmt.Sprintf(
				"data checksum mismatch: expected 0x%08x, got 0x%08x",
				header.DataChecksum,
				dataChecksum,
			),
		)
	}

	tagOffset := int64(HeaderSize) + int64(header.DataSize)
	if header.TagSize > tagChecksumSkip {
		tagChecksum, err := checksumSection(
			r, tagOffset+tagChecksumSkip, int64(header.TagSize)-tagChecksumSkip)
		if err != nil {
			return nil, err
		}
		if tagChecksum != header.TagChecksum {
			return nil, mfskit.ErrCorruptVolume.WithMessage(
				fmt.Sprintf(
					"tag checksum mismatch: expected 0x%08x, got 0x%08x",
					header.TagChecksum,
					tagChecksum,
				),
			)
		}
	}

	return &Image{
		Header: *header,
		Data:   io.NewSectionReader(r, HeaderSize, int64(header.DataSize)),
		Tags:   io.NewSectionReader(r, tagOffset, int64(header.TagSize)),
	}, nil
}

// Write creates a DiskCopy 4.2 image of a disk. `name` must be in Mac OS Roman
// and no longer than [MaxNameLength] bytes.
func Write(w io.Writer, name []byte, diskEncoding uint8, data, tags []byte) error {
	if len(name) > MaxNameLength {
		return mfskit.ErrNameTooLong.WithMessage(
			fmt.Sprintf("disk name is %d bytes, maximum is %d", len(name), MaxNameLength))
	}

	header := RawHeader{
		NameLength:   uint8(len(name)),
		DataSize:     uint32(len(data)),
		TagSize:      uint32(len(tags)),
		DataChecksum: Checksum(data),
		DiskEncoding: diskEncoding,
		FormatByte:   0x22,
		Magic:        Magic,
	}
	copy(header.Name[:], name)
	if len(tags) > tagChecksumSkip {
		header.TagChecksum = Checksum(tags[tagChecksumSkip:])
	}
	if diskEncoding == EncodingGCR400K {
		header.FormatByte = 0x02
	}

	rawHeader := make([]byte, HeaderSize)
	err := binary.Write(bytewriter.New(rawHeader), binary.BigEndian, &header)
	if err != nil {
		return mfskit.ErrIOFailed.Wrap(err)
	}

	for _, chunk := range [][]byte{rawHeader, data, tags} {
		_, err = w.Write(chunk)
		if err != nil {
			return mfskit.ErrIOFailed.Wrap(err)
		}
	}
	return nil
}
