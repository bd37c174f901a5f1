// Package s3 provides an Amazon S3 implementation of blobstore.BlobStore
// for durable snapshot storage.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := s3.NewStore(s3.NewFromConfig(cfg), "my-bucket", "snapshots/")
//
// Or let the package load the ambient AWS configuration:
//
//	store, err := s3.NewStoreFromDefaultConfig(ctx, "my-bucket", "snapshots/")
//
// Snapshots are written with multipart uploads, so blobs larger than a
// single part stream without buffering in memory.
package s3
