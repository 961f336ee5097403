// Package mfs implements a read-only driver for the Macintosh File System (MFS),
// the flat file system used by the original Macintosh on 400K floppies.
//
// # Layout
//
// All multi-byte integers are big-endian. Sectors are 512 bytes.
//
//   - Sectors 0-1: boot blocks, ignored.
//   - Sector 2: the volume information block (master directory block), 37 bytes
//     of fields followed by a length-prefixed volume name in a 27-byte slot.
//   - Immediately after the name slot: the allocation map, one 12-bit entry per
//     allocation block, packed two entries per three bytes.
//   - Sector `DirectoryStart` onward, for `DirectoryLength` sectors: the file
//     directory. Records are variable-length, begin on even offsets, and may be
//     separated by runs of zero bytes.
//   - Sector `FirstAllocSector` onward: allocation blocks, numbered from 2.
//
// Every file has two forks, each described in its directory record by a start
// block and a logical and physical size. The remaining blocks of a fork are
// found by following the allocation map, where an entry is either the number of
// the next block, [FreeBlock], [LastBlock], or [DirectoryBlock].
//
// Timestamps are unsigned seconds since midnight, January 1, 1904. File and
// volume names are stored in Mac OS Roman.
//
// # References
//
//   - Inside Macintosh, Volume II, "The File Manager", pp. 119-123.
//   - Inside Macintosh, Volume IV, "The File Manager", p. 160 (MFS vs HFS).
//   - https://wiki.osdev.org/MFS
package mfs
