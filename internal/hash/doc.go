// Package hash provides the hashing and checksum primitives of the on-disk formats.
//
// # Checksums
//
// Record frames, index slots and file headers carry CRC32-Castagnoli (CRC32C)
// checksums. Go's crc32 package uses SSE4.2 / ARM CRC instructions when available.
//
//	sum := hash.CRC32C(payload)
//
// # Key hashing
//
// The disk index addresses slots by the 64-bit xxhash of the record key:
//
//	h := hash.Key("12345")
//
// Zero is reserved for empty slots and never returned.
package hash
