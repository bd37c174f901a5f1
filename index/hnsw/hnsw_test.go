package hnsw

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semidx/semidx/index"
	"github.com/semidx/semidx/index/flat"
	"github.com/semidx/semidx/record"
)

func newHNSW(t *testing.T, dim int) *HNSW {
	t.Helper()

	h, err := New(func(o *Options) { o.Dimension = dim })
	require.NoError(t, err)
	return h
}

func TestHNSW_New(t *testing.T) {
	t.Run("MissingDimension", func(t *testing.T) {
		_, err := New()
		var invalid *index.ErrInvalidDimension
		assert.ErrorAs(t, err, &invalid)
	})

	t.Run("InvalidM", func(t *testing.T) {
		_, err := New(func(o *Options) {
			o.Dimension = 4
			o.M = 1
		})
		assert.Error(t, err)
	})
}

func TestHNSW_InsertAndSearch(t *testing.T) {
	h := newHNSW(t, 3)

	require.NoError(t, h.Insert("a", []float32{1, 0, 0}))
	require.NoError(t, h.Insert("b", []float32{0, 1, 0}))
	require.NoError(t, h.Insert("c", []float32{0, 0, 1}))
	assert.Equal(t, 3, h.Len())

	got, err := h.Snapshot().Search([]float32{1, 0, 0}, 1, index.MetricCosine, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, record.ID("a"), got[0].ID)
	assert.InDelta(t, 1.0, got[0].Score, 1e-6)

	t.Run("DimensionMismatch", func(t *testing.T) {
		err := h.Insert("d", []float32{1, 0})
		var mismatch *index.ErrDimensionMismatch
		assert.ErrorAs(t, err, &mismatch)
	})

	t.Run("Replace", func(t *testing.T) {
		require.NoError(t, h.Insert("a", []float32{0, 1, 0}))
		assert.Equal(t, 3, h.Len())

		got, err := h.Snapshot().Search([]float32{1, 0, 0}, 1, index.MetricCosine, nil)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.NotEqual(t, record.ID("a"), got[0].ID)
	})
}

func TestHNSW_MetricMismatch(t *testing.T) {
	h := newHNSW(t, 2)
	require.NoError(t, h.Insert("a", []float32{1, 0}))

	_, err := h.Snapshot().Search([]float32{1, 0}, 1, index.MetricDot, nil)
	assert.ErrorIs(t, err, ErrMetricMismatch)
}

func TestHNSW_Remove(t *testing.T) {
	h := newHNSW(t, 2)

	require.NoError(t, h.Insert("a", []float32{1, 0}))
	require.NoError(t, h.Insert("b", []float32{0, 1}))

	require.NoError(t, h.Remove("a"))
	assert.Equal(t, 1, h.Len())

	snap := h.Snapshot()
	assert.False(t, snap.Contains("a"))

	got, err := snap.Search([]float32{1, 0}, 2, index.MetricCosine, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, record.ID("b"), got[0].ID)

	t.Run("NotFound", func(t *testing.T) {
		err := h.Remove("a")
		var notFound *index.ErrEntryNotFound
		assert.ErrorAs(t, err, &notFound)
	})
}

func TestHNSW_Search(t *testing.T) {
	t.Run("InvalidK", func(t *testing.T) {
		h := newHNSW(t, 2)
		_, err := h.Snapshot().Search([]float32{1, 0}, 0, index.MetricCosine, nil)
		assert.ErrorIs(t, err, index.ErrInvalidK)
	})

	t.Run("EmptyGraph", func(t *testing.T) {
		h := newHNSW(t, 2)
		got, err := h.Snapshot().Search([]float32{1, 0}, 5, index.MetricCosine, nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("AllowFilter", func(t *testing.T) {
		h := newHNSW(t, 2)
		require.NoError(t, h.Insert("a", []float32{1, 0}))
		require.NoError(t, h.Insert("b", []float32{0.9, 0.1}))

		got, err := h.Snapshot().Search([]float32{1, 0}, 2, index.MetricCosine, func(id record.ID) bool {
			return id != "a"
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, record.ID("b"), got[0].ID)
	})
}

func TestHNSW_Entries(t *testing.T) {
	h := newHNSW(t, 2)

	require.NoError(t, h.Insert("a", []float32{1, 0}))
	require.NoError(t, h.Insert("b", []float32{0, 1}))
	require.NoError(t, h.Remove("a"))

	seen := make(map[record.ID]bool)
	for e := range h.Snapshot().Entries() {
		seen[e.ID] = true
	}

	assert.Equal(t, map[record.ID]bool{"b": true}, seen)
}

// TestHNSW_Recall compares the graph against an exact scan on a random corpus.
// Both indexes and the corpus are fully deterministic, so the measured recall
// is stable across runs.
func TestHNSW_Recall(t *testing.T) {
	const (
		dim     = 16
		corpus  = 200
		queries = 20
		k       = 10
	)

	rng := rand.New(rand.NewPCG(42, 7))
	randVec := func() []float32 {
		v := make([]float32, dim)
		for i := range v {
			v[i] = float32(rng.NormFloat64())
		}
		return v
	}

	h, err := New(func(o *Options) {
		o.Dimension = dim
		o.Seed = 1
	})
	require.NoError(t, err)

	exact, err := flat.New(func(o *flat.Options) { o.Dimension = dim })
	require.NoError(t, err)

	for i := range corpus {
		id := record.ID(fmt.Sprintf("vec-%04d", i))
		vec := randVec()
		require.NoError(t, h.Insert(id, vec))
		require.NoError(t, exact.Insert(id, vec))
	}

	hits, total := 0, 0
	for range queries {
		q := randVec()

		want, err := exact.Snapshot().Search(q, k, index.MetricCosine, nil)
		require.NoError(t, err)

		got, err := h.Snapshot().Search(q, k, index.MetricCosine, nil)
		require.NoError(t, err)

		truth := make(map[record.ID]bool, len(want))
		for _, c := range want {
			truth[c.ID] = true
		}
		for _, c := range got {
			if truth[c.ID] {
				hits++
			}
		}
		total += len(want)
	}

	recall := float64(hits) / float64(total)
	assert.GreaterOrEqual(t, recall, 0.85, "recall@%d = %.3f", k, recall)
}
