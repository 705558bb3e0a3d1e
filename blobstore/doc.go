// Package blobstore abstracts where source datasets are read from and where
// exported results are written to.
//
// Built-in implementations:
//
//   - LocalStore: local file system, memory-mapped reads, atomic writes
//   - MemoryStore: in-process, for tests and generated data
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible services
//
// A dataset is consumed sequentially through NewReader:
//
//	blob, err := store.Open(ctx, "yellow_tripdata.csv.zst")
//	r, err := blobstore.NewReader(ctx, blob)
package blobstore
