package compression

import (
	"bytes"
	"compress/gzip"
	"io"
)

// gzipMagic is the first two bytes of every gzip stream.
var gzipMagic = []byte{0x1f, 0x8b}

// CompressImage compresses a disk image using RLE8 and gzip.
//
// The returned int64 gives the number of bytes written to the output stream. If
// an error occurred, the value is undefined and should not be used.
func CompressImage(input io.Reader, output io.Writer) (int64, error) {
	// Wrap the output stream in a gzip compressor using the highest compression
	// available. The disk images aren't that huge so we won't notice much of a
	// speed difference between the default and highest levels.
	counter := &countingWriter{output: output}
	gzWriter, err := gzip.NewWriterLevel(counter, gzip.BestCompression)
	if err != nil {
		return 0, err
	}

	_, err = CompressRLE8(input, gzWriter)
	if err != nil {
		gzWriter.Close()
		return counter.total, err
	}
	err = gzWriter.Close()
	return counter.total, err
}

type countingWriter struct {
	output io.Writer
	total  int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	n, err := w.output.Write(p)
	w.total += int64(n)
	return n, err
}

// DecompressImage takes a gzipped, RLE8-encoded disk image and decompresses it
// to the original raw bytes.
//
// The returned int64 gives the number of bytes written to the output (i.e. the
// decompressed size of the image). If an error occurred, the value is undefined
// and should not be used.
func DecompressImage(input io.Reader, output io.Writer) (int64, error) {
	gzReader, err := gzip.NewReader(input)
	if err != nil {
		return 0, err
	}
	defer gzReader.Close()
	return DecompressRLE8(gzReader, output)
}

// DecompressImageToBytes is a convenience wrapper around [DecompressImage] that
// returns the raw image in a new byte slice.
func DecompressImageToBytes(input io.Reader) ([]byte, error) {
	var output bytes.Buffer
	_, err := DecompressImage(input, &output)
	if err != nil {
		return nil, err
	}
	return output.Bytes(), nil
}

// IsCompressedImage reports whether `header`, the first bytes of a file, look
// like the start of a compressed image.
func IsCompressedImage(header []byte) bool {
	return bytes.HasPrefix(header, gzipMagic)
}
