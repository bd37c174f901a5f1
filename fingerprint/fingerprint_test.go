package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Run("TrimsWhitespace", func(t *testing.T) {
		assert.Equal(t, "hello", Normalize("  hello \n"))
	})

	t.Run("CanonicalizesLineEndings", func(t *testing.T) {
		assert.Equal(t, "a\nb\nc", Normalize("a\r\nb\rc"))
	})

	t.Run("PreservesInnerContent", func(t *testing.T) {
		// No case folding, no inner whitespace collapsing.
		assert.Equal(t, "Hello  World", Normalize("Hello  World"))
	})
}

func TestSum(t *testing.T) {
	t.Run("StableAcrossLineEndings", func(t *testing.T) {
		assert.Equal(t, Sum("line one\nline two"), Sum("line one\r\nline two\r\n"))
	})

	t.Run("DistinctContentDistinctFingerprint", func(t *testing.T) {
		assert.NotEqual(t, Sum("The quick brown fox"), Sum("The quick brown fox jumps"))
	})

	t.Run("CaseSensitive", func(t *testing.T) {
		// Paraphrase-level equivalence is out of scope; only byte identity
		// after normalization dedups.
		assert.NotEqual(t, Sum("Hello"), Sum("hello"))
	})

	t.Run("HexSHA256", func(t *testing.T) {
		fp := Sum("hello")
		require.Len(t, fp, 64)
		assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", fp)
	})

	t.Run("SumPreparedSkipsNormalization", func(t *testing.T) {
		assert.Equal(t, Sum("hello"), SumPrepared("hello"))
		assert.NotEqual(t, Sum("  hello  "), SumPrepared("  hello  "))
	})
}
