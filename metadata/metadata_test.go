package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValueOf(t *testing.T) {
	assert.Equal(t, Int(42), ValueOf(42))
	assert.Equal(t, Int(42), ValueOf(int64(42)))
	assert.Equal(t, Float(1.5), ValueOf(1.5))
	assert.Equal(t, String("x"), ValueOf("x"))
	assert.Equal(t, Bool(true), ValueOf(true))
	assert.Equal(t, Null(), ValueOf(nil))
	assert.Equal(t, Int(7), ValueOf(Int(7)), "Value passes through")

	assert.False(t, ValueOf(struct{}{}).Valid())
	assert.True(t, ValueOf("x").Valid())
}

func TestValue_Equal(t *testing.T) {
	t.Run("SameKind", func(t *testing.T) {
		assert.True(t, Int(1).Equal(Int(1)))
		assert.False(t, Int(1).Equal(Int(2)))
		assert.True(t, String("a").Equal(String("a")))
		assert.True(t, Bool(true).Equal(Bool(true)))
		assert.True(t, Null().Equal(Null()))
	})

	t.Run("NumericCrossKind", func(t *testing.T) {
		assert.True(t, Int(2).Equal(Float(2.0)))
		assert.True(t, Float(2.0).Equal(Int(2)))
		assert.False(t, Int(2).Equal(Float(2.5)))
	})

	t.Run("MixedKinds", func(t *testing.T) {
		assert.False(t, Int(1).Equal(String("1")))
		assert.False(t, Bool(true).Equal(Int(1)))
		assert.False(t, Null().Equal(Int(0)))
	})
}

func TestValue_Less(t *testing.T) {
	assert.True(t, Int(1).Less(Int(2)))
	assert.True(t, Int(1).Less(Float(1.5)))
	assert.True(t, Float(0.5).Less(Int(1)))
	assert.True(t, String("a").Less(String("b")))

	assert.False(t, Int(2).Less(Int(1)))
	assert.False(t, String("a").Less(Int(1)), "mixed kinds are unordered")
	assert.False(t, Bool(false).Less(Bool(true)), "bools are unordered")
}

func TestValue_Key(t *testing.T) {
	// Keys are the inverted index vocabulary; same value means same key,
	// different value means different key.
	assert.Equal(t, Int(5).Key(), Int(5).Key())
	assert.NotEqual(t, Int(5).Key(), Int(6).Key())
	assert.NotEqual(t, Int(1).Key(), String("1").Key())
	assert.NotEqual(t, Bool(true).Key(), Bool(false).Key())
	assert.NotEqual(t, Float(1.0).Key(), Float(-1.0).Key())
}

func TestDoc(t *testing.T) {
	d := Doc("lang", "en", "year", 2024, "draft", false)

	assert.Len(t, d, 3)
	assert.Equal(t, String("en"), d["lang"])
	assert.Equal(t, Int(2024), d["year"])
	assert.Equal(t, Bool(false), d["draft"])
}

func TestDocument_Clone(t *testing.T) {
	d := Doc("lang", "en")
	c := d.Clone()

	c["lang"] = String("de")
	assert.Equal(t, String("en"), d["lang"])

	assert.Nil(t, Document(nil).Clone())
}
