// Package minio provides a blobstore.BlobStore implementation using the
// MinIO client.
//
// MinIO is an S3-compatible object store; the same store works against
// Ceph, Garage, SeaweedFS, or any other S3-compatible endpoint.
//
// # Usage
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "my-bucket", "snapshots/")
package minio
