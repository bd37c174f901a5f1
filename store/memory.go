package store

import (
	"context"
	"iter"
	"slices"
	"sort"
	"sync"

	"github.com/semidx/semidx/record"
)

// Compile-time check.
var _ Store = (*MemoryStore)(nil)

type vectorBinding struct {
	vector []float32
	refs   int
}

type fpKey struct {
	fingerprint string
	model       string
}

// MemoryStore is an in-memory Store backed by a Go map. It is suitable for
// datasets that fit in memory and is the reference implementation for the
// consistency contract.
type MemoryStore struct {
	mu       sync.RWMutex
	data     map[record.ID]record.ContentRecord
	bindings map[fpKey]*vectorBinding
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:     make(map[record.ID]record.ContentRecord),
		bindings: make(map[fpKey]*vectorBinding),
	}
}

// Put inserts or replaces a record, enforcing the fingerprint/vector
// consistency invariant: a fingerprint already bound to a different vector
// under the same model version is rejected with a ConflictError.
func (m *MemoryStore) Put(ctx context.Context, rec record.ContentRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := fpKey{fingerprint: rec.Fingerprint, model: rec.ModelVersion}

	binding, bound := m.bindings[key]
	if bound && rec.Vector != nil && !sameVector(binding.vector, rec.Vector) {
		return &ConflictError{Fingerprint: rec.Fingerprint, ModelVersion: rec.ModelVersion}
	}

	prev, existed := m.data[rec.ID]
	m.data[rec.ID] = rec.Clone()

	if existed {
		m.unrefLocked(prev)
	}
	if rec.Vector != nil {
		if binding, bound = m.bindings[key]; bound {
			binding.refs++
		} else {
			m.bindings[key] = &vectorBinding{vector: rec.Vector, refs: 1}
		}
	}

	return nil
}

// Get returns the record for id.
func (m *MemoryStore) Get(ctx context.Context, id record.ID) (record.ContentRecord, error) {
	if err := ctx.Err(); err != nil {
		return record.ContentRecord{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.data[id]
	if !ok {
		return record.ContentRecord{}, &NotFoundError{ID: id}
	}

	return rec.Clone(), nil
}

// Delete removes the record for id. The fingerprint binding is released once
// no remaining record references its vector.
func (m *MemoryStore) Delete(ctx context.Context, id record.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.data[id]
	if !ok {
		return &NotFoundError{ID: id}
	}

	delete(m.data, id)
	m.unrefLocked(rec)

	return nil
}

func (m *MemoryStore) unrefLocked(rec record.ContentRecord) {
	if rec.Vector == nil {
		return
	}

	key := fpKey{fingerprint: rec.Fingerprint, model: rec.ModelVersion}
	if binding, ok := m.bindings[key]; ok {
		binding.refs--
		if binding.refs <= 0 {
			delete(m.bindings, key)
		}
	}
}

// Scan yields records matching filter, ordered by ascending record ID for
// determinism. Each range over the sequence takes a fresh snapshot, so the
// sequence is restartable.
func (m *MemoryStore) Scan(ctx context.Context, filter Filter) iter.Seq2[record.ContentRecord, error] {
	return func(yield func(record.ContentRecord, error) bool) {
		m.mu.RLock()
		recs := make([]record.ContentRecord, 0, len(m.data))
		for _, rec := range m.data {
			if filter == nil || filter(rec) {
				recs = append(recs, rec.Clone())
			}
		}
		m.mu.RUnlock()

		sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })

		for _, rec := range recs {
			if err := ctx.Err(); err != nil {
				yield(record.ContentRecord{}, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// Len returns the number of stored records.
func (m *MemoryStore) Len(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.data), nil
}

// sameVector reports whether two vectors are the same embedding. Shared
// slices short-circuit on identity; otherwise compare element-wise.
func sameVector(a, b []float32) bool {
	if len(a) == len(b) && len(a) > 0 && &a[0] == &b[0] {
		return true
	}
	return slices.Equal(a, b)
}
