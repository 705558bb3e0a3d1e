// Package s3 provides an Amazon S3 implementation of blobstore.BlobStore.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("datasets/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	db, err := tripdb.Open(ctx, store, "yellow_tripdata_2020-01.csv.zst")
//
// # Features
//
//   - Range reads for streaming large datasets
//   - Multipart uploads with CRC32C checksums for exported results
//   - Parallel whole-object downloads (Download)
//   - Automatic pagination for listing
package s3
