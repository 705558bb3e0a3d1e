// Package recordstore implements the append-only record log.
//
// File layout:
//
//	header: "TRIPRECS" | version u32 | compression u8 | codec name len u8 | codec name
//	frame:  payload len u32 | crc32c u32 | body
//
// The body is the codec encoding of a record, optionally block-compressed.
// Offsets returned by Append are absolute and never change. A frame that
// fails its length or checksum check is reported as ErrCorrupt; a partial
// frame at the end of the file (a crash mid-append) is cut off by Open.
package recordstore
