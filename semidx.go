package semidx

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/semidx/semidx/embedding"
	"github.com/semidx/semidx/fingerprint"
	"github.com/semidx/semidx/index"
	"github.com/semidx/semidx/maintenance"
	"github.com/semidx/semidx/metadata"
	"github.com/semidx/semidx/record"
	"github.com/semidx/semidx/searcher"
	"github.com/semidx/semidx/store"
)

// Engine is the semantic indexing and search core: it turns content into
// vectors, deduplicates byte-identical content, keeps a searchable similarity
// index over the vector store, and answers ranked top-K queries.
//
// Ingestion and search are independent paths and run fully in parallel across
// concurrent callers.
type Engine struct {
	embedder embedding.Embedder
	store    store.Store
	claims   *fingerprint.ClaimTable
	metaIdx  *metadata.Index
	manager  *maintenance.Manager
	metric   index.Metric
	opts     options

	cancel context.CancelFunc
	bg     sync.WaitGroup
	closed atomic.Bool
}

func build(embedder embedding.Embedder, factory maintenance.Factory, metric index.Metric, opts options) (*Engine, error) {
	manager, err := maintenance.NewManager(opts.store, embedder.Model(), factory, func(o *maintenance.Options) {
		o.StalenessBound = opts.stalenessBound
		o.Logger = opts.logger.Logger
	})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		embedder: embedder,
		store:    opts.store,
		claims:   fingerprint.NewClaimTable(),
		metaIdx:  metadata.NewIndex(),
		manager:  manager,
		metric:   metric,
		opts:     opts,
	}

	if opts.maintenanceInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		e.cancel = cancel
		e.bg.Add(1)
		go func() {
			defer e.bg.Done()
			manager.Run(ctx, opts.maintenanceInterval)
		}()
	}

	return e, nil
}

// Close stops the background maintenance loop. The engine rejects further
// operations afterwards.
func (e *Engine) Close() error {
	if e == nil || !e.closed.CompareAndSwap(false, true) {
		return nil
	}

	if e.cancel != nil {
		e.cancel()
	}
	e.bg.Wait()

	return nil
}

// Ingest embeds content and stores it as a new record, returning its ID.
//
// Byte-identical content (after normalization) under the same model version
// reuses the existing vector instead of calling the provider again: under
// concurrent ingestion exactly one embedding call is made per distinct
// fingerprint, and losers of the race share the winner's vector.
func (e *Engine) Ingest(ctx context.Context, content string, meta metadata.Document) (record.ID, error) {
	start := time.Now()

	id, reused, err := e.ingest(ctx, content, meta)

	e.opts.metricsCollector.RecordIngest(time.Since(start), reused, err)
	e.opts.logger.LogIngest(ctx, id, reused, err)

	return id, err
}

func (e *Engine) ingest(ctx context.Context, content string, meta metadata.Document) (record.ID, bool, error) {
	if e.closed.Load() {
		return "", false, ErrClosed
	}

	normalized := fingerprint.Normalize(content)
	if normalized == "" {
		return "", false, &ValidationError{Reason: "content must not be empty", cause: embedding.ErrEmptyContent}
	}

	prepared := normalized
	truncated := false
	if tr, ok := e.embedder.(embedding.Truncator); ok {
		prepared, truncated = tr.Truncate(normalized)
	}

	// The fingerprint covers the content that is actually embedded.
	fp := fingerprint.SumPrepared(prepared)

	rec := record.ContentRecord{
		ID:           record.NewID(),
		Fingerprint:  fp,
		ModelVersion: e.embedder.Model(),
		Metadata:     meta.Clone(),
		State:        record.StatePending,
		CreatedAt:    time.Now(),
		Truncated:    truncated,
	}

	outcome, err := e.claims.Acquire(ctx, fp, rec.ModelVersion, rec.ID)
	if err != nil {
		return "", false, err
	}

	reused := !outcome.Winner
	if outcome.Winner {
		vec, err := e.embedder.Embed(ctx, prepared)
		if err != nil {
			outcome.Abort()
			return "", false, translateError(err)
		}
		outcome.Complete(vec)
		rec.Vector = vec
		rec.VectorOwner = rec.ID
	} else {
		rec.Vector = outcome.Vector
		rec.VectorOwner = outcome.Owner
	}

	rec.State = record.StateEmbedded
	if err := e.store.Put(ctx, rec); err != nil {
		if outcome.Winner {
			e.claims.Release(fp, rec.ModelVersion, rec.ID)
		}
		var conflict *store.ConflictError
		if errors.As(err, &conflict) {
			e.manager.MarkDegraded()
		}
		return "", reused, translateError(err)
	}

	e.metaIdx.Add(string(rec.ID), rec.Metadata)

	// Insert-on-write. A failed insert leaves the record in Embedded state;
	// the next maintenance pass repairs it (bounded staleness).
	if err := e.manager.Insert(rec.ID, rec.Vector); err != nil {
		e.manager.MarkDegraded()
		e.opts.logger.WarnContext(ctx, "incremental index insert failed, deferred to maintenance",
			"id", rec.ID,
			"error", err,
		)
		return rec.ID, reused, nil
	}

	rec.State = record.StateIndexed
	if err := e.store.Put(ctx, rec); err != nil {
		return rec.ID, reused, translateError(err)
	}

	return rec.ID, reused, nil
}

// IngestItem is one element of a batch ingest.
type IngestItem struct {
	Content  string
	Metadata metadata.Document
}

// BatchResult is the per-item outcome of a batch ingest.
type BatchResult struct {
	ID  record.ID
	Err error
}

// IngestBatch ingests items with bounded parallelism, returning one outcome
// per item in input order. A failed item never aborts the batch; cancellation
// is cooperative per item.
func (e *Engine) IngestBatch(ctx context.Context, items []IngestItem) []BatchResult {
	start := time.Now()

	results := make([]BatchResult, len(items))

	var g errgroup.Group
	g.SetLimit(e.opts.batchConcurrency)

	for i, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = BatchResult{Err: err}
				return nil
			}

			id, _, err := e.ingest(ctx, item.Content, item.Metadata)
			results[i] = BatchResult{ID: id, Err: err}
			return nil
		})
	}

	_ = g.Wait() // Per-item errors live in results.

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}

	e.opts.metricsCollector.RecordBatchIngest(len(items), failed, time.Since(start))
	e.opts.logger.LogBatchIngest(ctx, len(items), failed)

	return results
}

// Update supersedes the record's content: the old record keeps its vector for
// audit but leaves query results, and the new content starts a fresh record
// cycle. Returns the new record's ID.
func (e *Engine) Update(ctx context.Context, id record.ID, content string, meta metadata.Document) (record.ID, error) {
	if e.closed.Load() {
		return "", ErrClosed
	}

	old, err := e.store.Get(ctx, id)
	if err != nil {
		return "", translateError(err)
	}

	newID, _, err := e.ingest(ctx, content, meta)
	if err != nil {
		return "", err
	}

	if old.State.CanTransition(record.StateSuperseded) {
		old.State = record.StateSuperseded
		if err := e.store.Put(ctx, old); err != nil {
			return newID, translateError(err)
		}
	}

	e.metaIdx.Remove(string(old.ID))
	if err := e.manager.Remove(old.ID); err != nil {
		e.manager.MarkDegraded()
		return newID, translateError(err)
	}

	return newID, nil
}

// Delete removes the record from the vector store and the similarity index.
// The fingerprint claim is released if this record owned it, so the same
// content ingested again is re-embedded once.
func (e *Engine) Delete(ctx context.Context, id record.ID) error {
	start := time.Now()

	err := e.delete(ctx, id)

	e.opts.metricsCollector.RecordDelete(time.Since(start), err)
	e.opts.logger.LogDelete(ctx, id, err)

	return err
}

func (e *Engine) delete(ctx context.Context, id record.ID) error {
	if e.closed.Load() {
		return ErrClosed
	}

	rec, err := e.store.Get(ctx, id)
	if err != nil {
		return translateError(err)
	}

	if err := e.store.Delete(ctx, id); err != nil {
		return translateError(err)
	}

	e.claims.Release(rec.Fingerprint, rec.ModelVersion, id)
	e.metaIdx.Remove(string(id))

	if err := e.manager.Remove(id); err != nil {
		e.manager.MarkDegraded()
		return translateError(err)
	}

	return nil
}

// Get returns the record for id.
func (e *Engine) Get(ctx context.Context, id record.ID) (record.ContentRecord, error) {
	rec, err := e.store.Get(ctx, id)
	if err != nil {
		return record.ContentRecord{}, translateError(err)
	}

	return rec, nil
}

// Len returns the number of stored records.
func (e *Engine) Len(ctx context.Context) (int, error) {
	return e.store.Len(ctx)
}

// SearchResult is one ranked search hit.
type SearchResult = searcher.Result

type searchOptions struct {
	metric    index.Metric
	metricSet bool
	filters   *metadata.FilterSet
	minScore  float32
}

// SearchOption configures a single search.
type SearchOption func(*searchOptions)

// WithMetric overrides the engine's default similarity metric for this query.
// Engines backed by HNSW are built for one metric and reject others.
func WithMetric(m index.Metric) SearchOption {
	return func(o *searchOptions) {
		o.metric = m
		o.metricSet = true
	}
}

// WithFilters restricts results to records whose metadata matches every
// filter.
func WithFilters(filters ...*metadata.Filter) SearchOption {
	return func(o *searchOptions) {
		o.filters = metadata.NewFilterSet(filters...)
	}
}

// WithMinScore drops results scoring below the threshold; fewer than top-k
// results are returned rather than padding.
func WithMinScore(score float32) SearchOption {
	return func(o *searchOptions) {
		o.minScore = score
	}
}

// Search embeds the query content and returns the top-k most similar records.
// Query embeddings are not persisted and bypass deduplication.
//
// For a fixed index snapshot, identical queries yield identical ordered
// results: score descending, ties by ascending record ID.
func (e *Engine) Search(ctx context.Context, query string, topK int, optFns ...SearchOption) ([]SearchResult, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	if topK <= 0 {
		return nil, ErrInvalidK
	}
	if strings.TrimSpace(query) == "" {
		return nil, &ValidationError{Reason: "query must not be empty", cause: embedding.ErrEmptyContent}
	}

	vec, err := e.embedder.Embed(ctx, fingerprint.Normalize(query))
	if err != nil {
		// No partial results on embedding failure.
		return nil, translateError(err)
	}

	return e.SearchVector(ctx, vec, topK, optFns...)
}

// SearchVector runs a top-k query for an already-embedded vector.
func (e *Engine) SearchVector(ctx context.Context, vector []float32, topK int, optFns ...SearchOption) ([]SearchResult, error) {
	start := time.Now()

	results, err := e.searchVector(vector, topK, optFns)

	e.opts.metricsCollector.RecordSearch(topK, time.Since(start), err)
	e.opts.logger.LogSearch(ctx, topK, len(results), err)

	return results, err
}

func (e *Engine) searchVector(vector []float32, topK int, optFns []SearchOption) ([]SearchResult, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}

	opts := searchOptions{
		metric:   e.metric,
		minScore: searcher.NoMinScore,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	snap := e.manager.Snapshot()

	// Pre-filter through the inverted index when the filter is fully
	// indexable and selective; otherwise the searcher evaluates predicates
	// per candidate. Results are identical either way.
	var selection *metadata.Selection
	if opts.filters != nil {
		if sel, ok := e.metaIdx.Query(opts.filters); ok && selective(sel, snap.Len()) {
			selection = sel
		}
	}

	results, err := searcher.Search(snap, vector, e.source(), searcher.Options{
		TopK:      topK,
		Metric:    opts.metric,
		Filter:    opts.filters,
		MinScore:  opts.minScore,
		Selection: selection,
	})
	if err != nil {
		return nil, translateError(err)
	}

	return results, nil
}

// Rebuild constructs a fresh index from every active record and atomically
// publishes it, returning the new build epoch. A failed rebuild leaves the
// serving snapshot untouched.
func (e *Engine) Rebuild(ctx context.Context) (uint64, error) {
	if e.closed.Load() {
		return 0, ErrClosed
	}

	start := time.Now()
	epoch, err := e.manager.Rebuild(ctx)

	e.opts.metricsCollector.RecordRebuild(time.Since(start), err)
	e.opts.logger.LogRebuild(ctx, epoch, e.manager.Status().EntryCount, err)

	return epoch, err
}

// MaintenancePass runs one repair pass immediately instead of waiting for the
// background interval.
func (e *Engine) MaintenancePass(ctx context.Context) error {
	if e.closed.Load() {
		return ErrClosed
	}

	return e.manager.Pass(ctx)
}

// Status returns the index health snapshot.
func (e *Engine) Status() maintenance.Status {
	return e.manager.Status()
}

// selective reports whether a pre-filter bitmap is worth using: it must
// cover at most a quarter of the snapshot.
func selective(sel *metadata.Selection, snapLen int) bool {
	return sel.Cardinality()*4 <= uint64(snapLen)
}

// source adapts the vector store to the searcher's record lookup.
func (e *Engine) source() searcher.RecordSource {
	return storeSource{store: e.store}
}

type storeSource struct {
	store store.Store
}

func (s storeSource) LookupRecord(id record.ID) (metadata.Document, record.State, bool) {
	rec, err := s.store.Get(context.Background(), id)
	if err != nil {
		return nil, 0, false
	}

	return rec.Metadata, rec.State, true
}
