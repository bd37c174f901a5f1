package searcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semidx/semidx/index"
	"github.com/semidx/semidx/index/flat"
	"github.com/semidx/semidx/metadata"
	"github.com/semidx/semidx/record"
)

// fixtureSource is an in-memory RecordSource for tests.
type fixtureSource map[record.ID]struct {
	meta  metadata.Document
	state record.State
}

func (s fixtureSource) LookupRecord(id record.ID) (metadata.Document, record.State, bool) {
	e, ok := s[id]
	return e.meta, e.state, ok
}

func newFixture(t *testing.T) (index.Snapshot, fixtureSource) {
	t.Helper()

	f, err := flat.New(func(o *flat.Options) { o.Dimension = 2 })
	require.NoError(t, err)

	source := fixtureSource{}
	add := func(id record.ID, vec []float32, state record.State, meta metadata.Document) {
		require.NoError(t, f.Insert(id, vec))
		source[id] = struct {
			meta  metadata.Document
			state record.State
		}{meta, state}
	}

	add("a", []float32{1, 0}, record.StateIndexed, metadata.Doc("lang", "en", "year", 2024))
	add("b", []float32{0.9, 0.1}, record.StateIndexed, metadata.Doc("lang", "de", "year", 2023))
	add("c", []float32{0.8, 0.2}, record.StateSuperseded, metadata.Doc("lang", "en"))
	add("d", []float32{0, 1}, record.StateIndexed, metadata.Doc("lang", "en", "year", 2020))

	return f.Snapshot(), source
}

func TestSearch(t *testing.T) {
	snap, source := newFixture(t)
	query := []float32{1, 0}

	t.Run("RankedFromOne", func(t *testing.T) {
		got, err := Search(snap, query, source, Options{
			TopK:     3,
			Metric:   index.MetricCosine,
			MinScore: NoMinScore,
		})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, record.ID("a"), got[0].ID)
		assert.Equal(t, 1, got[0].Rank)
		assert.Equal(t, record.ID("b"), got[1].ID)
		assert.Equal(t, 2, got[1].Rank)
		assert.Equal(t, record.ID("d"), got[2].ID)
		assert.Equal(t, 3, got[2].Rank)
	})

	t.Run("InvalidK", func(t *testing.T) {
		_, err := Search(snap, query, source, Options{TopK: 0, MinScore: NoMinScore})
		assert.ErrorIs(t, err, index.ErrInvalidK)
	})

	t.Run("SupersededExcluded", func(t *testing.T) {
		got, err := Search(snap, query, source, Options{
			TopK:     10,
			Metric:   index.MetricCosine,
			MinScore: NoMinScore,
		})
		require.NoError(t, err)
		for _, r := range got {
			assert.NotEqual(t, record.ID("c"), r.ID)
		}
	})

	t.Run("UnknownRecordExcluded", func(t *testing.T) {
		// The index can briefly hold entries the store no longer resolves.
		partial := fixtureSource{}
		for id, e := range source {
			if id != "a" {
				partial[id] = e
			}
		}

		got, err := Search(snap, query, partial, Options{
			TopK:     10,
			Metric:   index.MetricCosine,
			MinScore: NoMinScore,
		})
		require.NoError(t, err)
		for _, r := range got {
			assert.NotEqual(t, record.ID("a"), r.ID)
		}
	})
}

func TestSearch_Filters(t *testing.T) {
	snap, source := newFixture(t)
	query := []float32{1, 0}

	t.Run("Predicate", func(t *testing.T) {
		got, err := Search(snap, query, source, Options{
			TopK:     10,
			Metric:   index.MetricCosine,
			Filter:   metadata.NewFilterSet(metadata.Eq("lang", "en")),
			MinScore: NoMinScore,
		})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, record.ID("a"), got[0].ID)
		assert.Equal(t, record.ID("d"), got[1].ID)
	})

	t.Run("Range", func(t *testing.T) {
		got, err := Search(snap, query, source, Options{
			TopK:     10,
			Metric:   index.MetricCosine,
			Filter:   metadata.NewFilterSet(metadata.Gte("year", 2023)),
			MinScore: NoMinScore,
		})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, record.ID("a"), got[0].ID)
		assert.Equal(t, record.ID("b"), got[1].ID)
	})

	t.Run("SelectionMatchesPredicate", func(t *testing.T) {
		// A bitmap Selection built from the inverted index admits the same
		// records the predicate path does.
		ix := metadata.NewIndex()
		for id, e := range source {
			ix.Add(string(id), e.meta)
		}

		fs := metadata.NewFilterSet(metadata.Eq("lang", "en"))
		sel, ok := ix.Query(fs)
		require.True(t, ok)

		want, err := Search(snap, query, source, Options{
			TopK:     10,
			Metric:   index.MetricCosine,
			Filter:   fs,
			MinScore: NoMinScore,
		})
		require.NoError(t, err)

		got, err := Search(snap, query, source, Options{
			TopK:      10,
			Metric:    index.MetricCosine,
			Filter:    fs,
			Selection: sel,
			MinScore:  NoMinScore,
		})
		require.NoError(t, err)

		assert.Equal(t, want, got)
	})
}

func TestSearch_MinScore(t *testing.T) {
	snap, source := newFixture(t)
	query := []float32{1, 0}

	got, err := Search(snap, query, source, Options{
		TopK:     10,
		Metric:   index.MetricCosine,
		MinScore: 0.5,
	})
	require.NoError(t, err)

	// d is orthogonal to the query and falls below the threshold; the list is
	// truncated rather than padded.
	require.Len(t, got, 2)
	assert.Equal(t, record.ID("a"), got[0].ID)
	assert.Equal(t, record.ID("b"), got[1].ID)
	for _, r := range got {
		assert.GreaterOrEqual(t, r.Score, float32(0.5))
	}
}

func TestSearch_Deterministic(t *testing.T) {
	snap, source := newFixture(t)
	query := []float32{1, 0}
	opts := Options{TopK: 4, Metric: index.MetricCosine, MinScore: NoMinScore}

	first, err := Search(snap, query, source, opts)
	require.NoError(t, err)

	for range 5 {
		again, err := Search(snap, query, source, opts)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
