// Package diskindex implements a persistent key to record index.
//
// An index directory holds two files. records.log is an append-only record
// store (see package recordstore). index.tbl is an open-addressed hash table
// of fixed-size slots mapping a key hash to a record offset:
//
//	header: 64 bytes, magic "TRIPIDX1", capacity, count, clean flag, crc32c
//	slot:   key hash u64 | offset u64 | reserved u32 | crc32c u32
//
// Collisions are resolved by linear probing and by comparing the stored
// record's key. Only slot occupancy is held in memory, as roaring bitmaps,
// so memory stays bounded regardless of the number of records.
//
// Inserts append the record first and then write the slot in place. The
// table grows by rehashing into a temporary file that is renamed over the
// old one. The clean flag is cleared before the first mutation and set
// again by Close; opening an unclean index truncates a torn store tail and
// drops slots that point past it. A slot whose checksum fails is treated as
// empty, and a lookup keeps probing past it.
package diskindex
