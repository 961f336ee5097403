// Package compression provides the run-length encodings used for disk images and
// Macintosh file archives.
//
// # RLE8 + gzip (disk images)
//
// File systems are broken up into fixed-size sectors, and the emptier an image
// is, the more sectors consisting of entirely null bytes there will be. A 400K
// floppy image with a handful of small files is mostly dead space, so test
// images are stored run-length encoded and then gzipped.
//
// RLE8 is the algorithm used by the Microsoft BMP file format: if a byte B occurs
// N times where N >= 2, B is written twice, followed by a third (unsigned) byte
// indicating how many additional times B occurred. For example:
//
//	WXXXXXXXXXXXXXXXYZZ
//	W XX 13 Y ZZ 0
//
// This represents runs of up to 257 bytes with three bytes. Longer runs are
// split. Occurrences of the same byte exactly twice are stored as three bytes.
//
// # RLE90 (BinHex 4.0)
//
// BinHex compresses its binary stream with a different scheme where 0x90 is the
// escape byte: B 0x90 N stands for N copies of B in total, and 0x90 0x00 stands
// for a literal 0x90. See [RLE90Reader] and [RLE90Writer].
package compression
