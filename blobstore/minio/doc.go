// Package minio provides a BlobStore implementation using the MinIO client.
//
// It works with MinIO and other S3-compatible services such as Ceph, Garage
// and SeaweedFS, without pulling in the AWS SDK at the call site.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "trips", "datasets/")
//	db, err := tripdb.Open(ctx, store, "yellow_tripdata_2020-01.csv")
package minio
