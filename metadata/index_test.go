package metadata

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex_Query(t *testing.T) {
	ix := NewIndex()
	ix.Add("a", Doc("lang", "en", "year", 2023))
	ix.Add("b", Doc("lang", "de", "year", 2023))
	ix.Add("c", Doc("lang", "en", "year", 2024))
	require.Equal(t, 3, ix.Len())

	t.Run("SingleEquality", func(t *testing.T) {
		sel, ok := ix.Query(NewFilterSet(Eq("lang", "en")))
		require.True(t, ok)
		assert.Equal(t, uint64(2), sel.Cardinality())
		assert.True(t, sel.Contains("a"))
		assert.False(t, sel.Contains("b"))
		assert.True(t, sel.Contains("c"))
	})

	t.Run("Conjunction", func(t *testing.T) {
		sel, ok := ix.Query(NewFilterSet(Eq("lang", "en"), Eq("year", 2023)))
		require.True(t, ok)
		assert.Equal(t, uint64(1), sel.Cardinality())
		assert.True(t, sel.Contains("a"))
	})

	t.Run("UnknownKey", func(t *testing.T) {
		sel, ok := ix.Query(NewFilterSet(Eq("missing", "x")))
		require.True(t, ok)
		assert.Zero(t, sel.Cardinality())
	})

	t.Run("UnknownValue", func(t *testing.T) {
		sel, ok := ix.Query(NewFilterSet(Eq("lang", "fr")))
		require.True(t, ok)
		assert.Zero(t, sel.Cardinality())
	})

	t.Run("NotIndexable", func(t *testing.T) {
		sel, ok := ix.Query(NewFilterSet(Gt("year", 2022)))
		assert.False(t, ok)
		assert.Nil(t, sel)
	})

	t.Run("UnknownID", func(t *testing.T) {
		sel, ok := ix.Query(NewFilterSet(Eq("lang", "en")))
		require.True(t, ok)
		assert.False(t, sel.Contains("zzz"))
	})
}

func TestIndex_AddReplaces(t *testing.T) {
	ix := NewIndex()
	ix.Add("a", Doc("lang", "en"))
	ix.Add("a", Doc("lang", "de"))
	require.Equal(t, 1, ix.Len())

	sel, ok := ix.Query(NewFilterSet(Eq("lang", "en")))
	require.True(t, ok)
	assert.Zero(t, sel.Cardinality())

	sel, ok = ix.Query(NewFilterSet(Eq("lang", "de")))
	require.True(t, ok)
	assert.True(t, sel.Contains("a"))
}

func TestIndex_Remove(t *testing.T) {
	ix := NewIndex()
	ix.Add("a", Doc("lang", "en"))
	ix.Add("b", Doc("lang", "en"))

	ix.Remove("a")
	assert.Equal(t, 1, ix.Len())

	sel, ok := ix.Query(NewFilterSet(Eq("lang", "en")))
	require.True(t, ok)
	assert.False(t, sel.Contains("a"))
	assert.True(t, sel.Contains("b"))

	// Unknown ids are ignored.
	ix.Remove("zzz")
	assert.Equal(t, 1, ix.Len())
}

// TestIndex_AgreesWithPredicate cross-checks the bitmap path against direct
// predicate evaluation over a generated corpus.
func TestIndex_AgreesWithPredicate(t *testing.T) {
	ix := NewIndex()
	docs := make(map[string]Document)

	for i := range 100 {
		id := fmt.Sprintf("rec-%03d", i)
		doc := Doc("shard", i%7, "even", i%2 == 0)
		docs[id] = doc
		ix.Add(id, doc)
	}

	fs := NewFilterSet(Eq("shard", 3), Eq("even", false))
	sel, ok := ix.Query(fs)
	require.True(t, ok)

	for id, doc := range docs {
		assert.Equal(t, fs.Matches(doc), sel.Contains(id), "id %s", id)
	}
}
