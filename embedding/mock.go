package embedding

import (
	"context"
	"hash/fnv"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/semidx/semidx/internal/math32"
)

// MockProvider is a deterministic in-process embedding provider for tests and
// validation runs against the exact index.
//
// Vectors are a hashed bag-of-words: each lowercased token contributes a unit
// pseudo-random direction seeded from its hash, and the sum is L2-normalized.
// Identical content always produces identical vectors, shared tokens raise
// cosine similarity, and disjoint content scores near zero - enough structure
// for ranking assertions without a real model.
type MockProvider struct {
	// Dim is the output dimensionality.
	Dim int

	// FailFirst makes the first N Generate calls fail with a transient
	// error, for retry tests.
	FailFirst int64

	// Fail, when set, is returned by every Generate call.
	Fail error

	calls atomic.Int64
}

// NewMockProvider creates a MockProvider with the given dimensionality.
func NewMockProvider(dim int) *MockProvider {
	return &MockProvider{Dim: dim}
}

// Calls returns the number of Generate invocations so far.
func (m *MockProvider) Calls() int64 {
	return m.calls.Load()
}

// Generate implements Provider.
func (m *MockProvider) Generate(ctx context.Context, contents []string, model string) ([][]float32, error) {
	n := m.calls.Add(1)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if m.Fail != nil {
		return nil, m.Fail
	}
	if n <= m.FailFirst {
		return nil, Transient(context.DeadlineExceeded)
	}

	out := make([][]float32, len(contents))
	for i, content := range contents {
		out[i] = m.embedOne(content, model)
	}

	return out, nil
}

func (m *MockProvider) embedOne(content, model string) []float32 {
	vec := make([]float32, m.Dim)

	for _, token := range tokenize(content) {
		h := fnv.New64a()
		h.Write([]byte(model))
		h.Write([]byte{0})
		h.Write([]byte(token))

		rng := rand.New(rand.NewPCG(h.Sum64(), 0x9e3779b97f4a7c15))
		for d := range vec {
			vec[d] += float32(rng.NormFloat64())
		}
	}

	if !math32.NormalizeL2InPlace(vec) {
		// No tokens at all; a stable arbitrary direction.
		vec[0] = 1
	}

	return vec
}

func tokenize(content string) []string {
	return strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// NewMock wires a MockProvider into a Generator with sensible test defaults.
func NewMock(dim int) (*Generator, *MockProvider) {
	provider := NewMockProvider(dim)

	gen, err := NewGenerator(provider, Config{
		Model:     "mock-embedding-001",
		Dimension: dim,
	})
	if err != nil {
		// Config is fixed and valid; this cannot happen.
		panic(err)
	}

	return gen, provider
}
