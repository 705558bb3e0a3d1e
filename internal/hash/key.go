package hash

import "github.com/cespare/xxhash/v2"

// Key hashes a record key for the disk index.
//
// Zero marks an empty slot on disk, so a key that hashes to zero is
// remapped to one. Distinct keys may share a hash; the index resolves that
// by comparing the stored key.
func Key(key string) uint64 {
	h := xxhash.Sum64String(key)
	if h == 0 {
		return 1
	}
	return h
}
