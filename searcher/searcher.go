// Package searcher executes ranked top-K similarity queries against an index
// snapshot, applying metric choice, metadata filters and score thresholds.
package searcher

import (
	"math"

	"github.com/semidx/semidx/index"
	"github.com/semidx/semidx/metadata"
	"github.com/semidx/semidx/record"
)

// Result is one ranked search hit.
type Result struct {
	ID    record.ID
	Score float32
	Rank  int
}

// RecordSource resolves record state and metadata during a search. It is
// satisfied by the vector store (via an adapter) and by test fixtures.
type RecordSource interface {
	LookupRecord(id record.ID) (meta metadata.Document, state record.State, ok bool)
}

// Options controls one search execution.
type Options struct {
	// TopK is the number of results requested. Required, > 0.
	TopK int

	// Metric selects the similarity measure. Higher score is always more
	// similar.
	Metric index.Metric

	// Filter restricts results by metadata. Nil means no filtering.
	Filter *metadata.FilterSet

	// MinScore truncates the ranked list: results scoring below it are
	// dropped and fewer than TopK results are returned rather than
	// padding. Defaults to negative infinity (no threshold).
	MinScore float32

	// Selection, when non-nil, is a precomputed allowed set from the
	// metadata inverted index. It must select exactly the records Filter
	// matches; the engine supplies it when Filter is fully indexable and
	// selective. Result content and order are identical either way.
	Selection *metadata.Selection
}

// NoMinScore is the default MinScore: no threshold at all.
var NoMinScore = float32(math.Inf(-1))

// Search runs a top-K query against snap.
//
// For a fixed snapshot, identical queries yield identical ordered results:
// descending score, ties broken by ascending record ID, ranks assigned from 1.
func Search(snap index.Snapshot, query []float32, source RecordSource, opts Options) ([]Result, error) {
	if opts.TopK <= 0 {
		return nil, index.ErrInvalidK
	}

	allow := buildAllow(source, opts)

	candidates, err := snap.Search(query, opts.TopK, opts.Metric, allow)
	if err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		if c.Score < opts.MinScore {
			// Candidates are score-descending; everything after is below
			// the threshold too.
			break
		}
		out = append(out, Result{ID: c.ID, Score: c.Score, Rank: len(out) + 1})
	}

	return out, nil
}

// buildAllow combines the record-state gate with the metadata predicate.
// Superseded and deleted records never appear in results. When a bitmap
// Selection is supplied, it replaces per-document predicate evaluation; both
// paths admit exactly the records the filter matches.
func buildAllow(source RecordSource, opts Options) func(record.ID) bool {
	return func(id record.ID) bool {
		meta, state, ok := source.LookupRecord(id)
		if !ok || !state.Active() {
			return false
		}

		if opts.Selection != nil {
			return opts.Selection.Contains(string(id))
		}

		return opts.Filter.Matches(meta)
	}
}
