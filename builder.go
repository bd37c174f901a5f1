// This file implements index-specific fluent builder APIs for creating and
// configuring engines. Builders are immutable - each method returns a new
// builder with the updated configuration.
package semidx

import (
	"errors"

	"github.com/semidx/semidx/embedding"
	"github.com/semidx/semidx/index"
	"github.com/semidx/semidx/index/flat"
	"github.com/semidx/semidx/index/hnsw"
	"github.com/semidx/semidx/maintenance"
)

// =============================================================================
// Flat Builder (Immutable)
// =============================================================================

// Flat creates a builder for an engine backed by the exact linear-scan index.
// This is the default and the correctness baseline: search results are exact
// under every metric.
//
// The builder is immutable - each method returns a new builder with the
// updated configuration.
//
// Example:
//
//	eng, err := semidx.Flat(128).
//	    Cosine().
//	    Embedder(emb).
//	    Build()
func Flat(dimension int) FlatBuilder {
	return FlatBuilder{
		dimension: dimension,
		metric:    index.MetricCosine,
	}
}

// FlatBuilder is an immutable fluent builder for flat-index engines.
type FlatBuilder struct {
	dimension int
	metric    index.Metric
	embedder  embedding.Embedder
}

// Cosine sets the similarity metric to cosine similarity.
func (b FlatBuilder) Cosine() FlatBuilder {
	b.metric = index.MetricCosine
	return b
}

// DotProduct sets the similarity metric to the inner product.
func (b FlatBuilder) DotProduct() FlatBuilder {
	b.metric = index.MetricDot
	return b
}

// Euclidean sets the similarity metric to negated Euclidean distance
// (higher score still means more similar).
func (b FlatBuilder) Euclidean() FlatBuilder {
	b.metric = index.MetricNegL2
	return b
}

// Embedder sets the embedding backend. Required.
func (b FlatBuilder) Embedder(e embedding.Embedder) FlatBuilder {
	b.embedder = e
	return b
}

// Provider wraps an embedding provider in a Generator configured for this
// builder's dimensionality. Convenience for Embedder.
func (b FlatBuilder) Provider(p embedding.Provider, model string) FlatBuilder {
	gen, err := embedding.NewGenerator(p, embedding.Config{
		Model:     model,
		Dimension: b.dimension,
	})
	if err == nil {
		b.embedder = gen
	}
	return b
}

// Build constructs the engine.
func (b FlatBuilder) Build(optFns ...Option) (*Engine, error) {
	dim := b.dimension
	factory := func() (index.Index, error) {
		return flat.New(func(o *flat.Options) {
			o.Dimension = dim
		})
	}

	return newEngine(b.embedder, factory, b.metric, optFns)
}

// =============================================================================
// HNSW Builder (Immutable)
// =============================================================================

// HNSW creates a builder for an engine backed by the approximate HNSW index.
// HNSW trades exactness for sub-linear query time; see the index/hnsw package
// doc for the stated recall contract. Use Flat for correctness validation.
//
// Example:
//
//	eng, err := semidx.HNSW(128).
//	    Cosine().
//	    M(32).
//	    EFConstruction(400).
//	    Embedder(emb).
//	    Build()
func HNSW(dimension int) HNSWBuilder {
	return HNSWBuilder{
		dimension:      dimension,
		metric:         index.MetricCosine,
		m:              hnsw.DefaultOptions.M,
		efConstruction: hnsw.DefaultOptions.EFConstruction,
		efSearch:       hnsw.DefaultOptions.EFSearch,
	}
}

// HNSWBuilder is an immutable fluent builder for HNSW-index engines.
type HNSWBuilder struct {
	dimension      int
	metric         index.Metric
	m              int
	efConstruction int
	efSearch       int
	seed           uint64
	embedder       embedding.Embedder
}

// Cosine sets the similarity metric to cosine similarity.
func (b HNSWBuilder) Cosine() HNSWBuilder {
	b.metric = index.MetricCosine
	return b
}

// DotProduct sets the similarity metric to the inner product.
func (b HNSWBuilder) DotProduct() HNSWBuilder {
	b.metric = index.MetricDot
	return b
}

// Euclidean sets the similarity metric to negated Euclidean distance.
func (b HNSWBuilder) Euclidean() HNSWBuilder {
	b.metric = index.MetricNegL2
	return b
}

// M sets the maximum number of graph connections per layer.
// Higher values improve recall but increase memory usage.
func (b HNSWBuilder) M(m int) HNSWBuilder {
	b.m = m
	return b
}

// EFConstruction sets the exploration factor used during index construction.
// Higher values improve index quality but slow down indexing.
func (b HNSWBuilder) EFConstruction(ef int) HNSWBuilder {
	b.efConstruction = ef
	return b
}

// EFSearch sets the exploration factor used during queries.
// Higher values improve recall but slow down searches.
func (b HNSWBuilder) EFSearch(ef int) HNSWBuilder {
	b.efSearch = ef
	return b
}

// Seed fixes the level-assignment RNG seed for reproducible graphs.
func (b HNSWBuilder) Seed(seed uint64) HNSWBuilder {
	b.seed = seed
	return b
}

// Embedder sets the embedding backend. Required.
func (b HNSWBuilder) Embedder(e embedding.Embedder) HNSWBuilder {
	b.embedder = e
	return b
}

// Provider wraps an embedding provider in a Generator configured for this
// builder's dimensionality. Convenience for Embedder.
func (b HNSWBuilder) Provider(p embedding.Provider, model string) HNSWBuilder {
	gen, err := embedding.NewGenerator(p, embedding.Config{
		Model:     model,
		Dimension: b.dimension,
	})
	if err == nil {
		b.embedder = gen
	}
	return b
}

// Build constructs the engine.
func (b HNSWBuilder) Build(optFns ...Option) (*Engine, error) {
	cfg := b
	factory := func() (index.Index, error) {
		return hnsw.New(func(o *hnsw.Options) {
			o.Dimension = cfg.dimension
			o.Metric = cfg.metric
			o.M = cfg.m
			o.EFConstruction = cfg.efConstruction
			o.EFSearch = cfg.efSearch
			o.Seed = cfg.seed
		})
	}

	return newEngine(b.embedder, factory, b.metric, optFns)
}

func newEngine(embedder embedding.Embedder, factory maintenance.Factory, metric index.Metric, optFns []Option) (*Engine, error) {
	if embedder == nil {
		return nil, &ValidationError{Reason: "an embedder must be configured", cause: errors.New("nil embedder")}
	}

	return build(embedder, factory, metric, applyOptions(optFns))
}
