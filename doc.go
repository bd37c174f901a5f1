// Package semidx provides an embedded semantic similarity indexing and
// search core for Go.
//
// Semidx turns raw content into vector embeddings through a pluggable
// provider, avoids redundant embedding work with content-addressed
// deduplication, maintains a searchable similarity index over a vector
// store, and answers nearest-neighbor queries with ranked, scored results.
//
// # Quick Start
//
//	ctx := context.Background()
//
//	eng, _ := semidx.Flat(128).
//	    Cosine().
//	    Embedder(emb).
//	    Build()
//	defer eng.Close()
//
//	id, _ := eng.Ingest(ctx, "The quick brown fox", metadata.Doc("source", "demo"))
//
//	results, _ := eng.Search(ctx, "quick fox", 10)
//	for _, r := range results {
//	    fmt.Println(r.Rank, r.ID, r.Score)
//	}
//
// # Index Backends
//
// Flat is the exact linear-scan index and the default: results are exact
// under every metric and it is the right choice for small and validation
// datasets. HNSW is the approximate graph index for scale:
//
//	eng, _ := semidx.HNSW(768).
//	    Cosine().
//	    M(32).
//	    Embedder(emb).
//	    Build(semidx.WithMaintenanceInterval(time.Minute))
//
// # Deduplication
//
// Content is fingerprinted (SHA-256 over normalized bytes) before any
// embedding call. Byte-identical content under the same model version is
// embedded exactly once, even under concurrent ingestion; later records
// share the first record's vector.
//
// # Snapshots
//
// Engine state persists as checksummed, optionally compressed binary
// snapshots, storable on the local filesystem or an object store:
//
//	store, _ := blobstore.NewLocal("./snapshots")
//	_ = eng.SaveSnapshotTo(ctx, store, "index.sidx")
//
// # Key Features
//
//   - Exact (flat) and approximate (HNSW) nearest-neighbor search
//   - Content-addressed deduplication with a single-flight claim table
//   - Cosine, dot-product and Euclidean metrics under one sign convention
//   - Metadata filtering with a Roaring Bitmap inverted index
//   - Double-buffered rebuilds; readers never see a partial index
//   - Snapshot persistence to local FS, memory, S3 or MinIO
package semidx
