// Package tripdb answers point and range queries over a large CSV dataset of
// ride transactions without loading it into memory.
//
// # Quick Start
//
//	ctx := context.Background()
//	store := blobstore.NewLocalStore("./data")
//	db, err := tripdb.Open(ctx, store, "trips.csv", tripdb.WithDir("./index"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	rec, err := db.Get(ctx, "12345")
//	page, err := db.FilterByPrice(ctx, 10, 20, tripdb.DefaultPagination())
//	stats, err := db.Stats(ctx, filter.Destination("132"))
//	top, err := db.PopularDestinations(ctx, 10)
//
// The source may live in S3 or MinIO (packages blobstore/s3 and
// blobstore/minio) and may be compressed with gzip, zstd or lz4, selected by
// file extension.
//
// # Index
//
// The first query builds a persistent key index next to a compact copy of
// every record, or reuses the one named by <dir>/CURRENT. Key lookups go to
// the index and are verified against the whole filter; everything else
// streams the source. Reinitialize rebuilds the index into a new generation
// and swaps it in while running queries finish on the old one.
//
// # Result Bounds
//
// Query and FilterToFile stop reading the source as soon as enough matches
// have been produced. A bounded result is a successful, possibly partial
// result, never an error.
package tripdb
