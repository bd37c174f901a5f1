package metadata

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// Index is an inverted index from (key, value) pairs to the set of record IDs
// carrying them, backed by Roaring Bitmaps. It answers fully-equality filter
// sets without touching record documents, which makes selective pre-filtering
// cheap for large snapshots.
//
// Record IDs are interned to dense uint32 handles internally; handles are
// never reused, so Selection results stay valid across removals.
type Index struct {
	mu       sync.RWMutex
	locals   map[string]uint32
	ids      []string
	inverted map[string]map[string]*roaring.Bitmap
}

// NewIndex creates an empty inverted index.
func NewIndex() *Index {
	return &Index{
		locals:   make(map[string]uint32),
		inverted: make(map[string]map[string]*roaring.Bitmap),
	}
}

// Add indexes doc under id, replacing any previous document for id.
func (ix *Index) Add(id string, doc Document) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	local, ok := ix.locals[id]
	if ok {
		ix.dropLocked(local)
	} else {
		local = uint32(len(ix.ids))
		ix.locals[id] = local
		ix.ids = append(ix.ids, id)
	}

	for key, value := range doc {
		byValue, ok := ix.inverted[key]
		if !ok {
			byValue = make(map[string]*roaring.Bitmap)
			ix.inverted[key] = byValue
		}

		vk := value.Key()
		bm, ok := byValue[vk]
		if !ok {
			bm = roaring.New()
			byValue[vk] = bm
		}
		bm.Add(local)
	}
}

// Remove drops id from the index. Unknown ids are ignored.
func (ix *Index) Remove(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	local, ok := ix.locals[id]
	if !ok {
		return
	}

	ix.dropLocked(local)
	delete(ix.locals, id)
}

func (ix *Index) dropLocked(local uint32) {
	for _, byValue := range ix.inverted {
		for vk, bm := range byValue {
			bm.Remove(local)
			if bm.IsEmpty() {
				delete(byValue, vk)
			}
		}
	}
}

// Len returns the number of indexed records.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	return len(ix.locals)
}

// Selection is the set of record IDs matching an indexable filter set.
// The bitmap is a snapshot taken at query time; the id interning table is
// consulted live (handles are never reused, so lookups stay stable).
type Selection struct {
	bm *roaring.Bitmap
	ix *Index
}

// Contains reports whether id is in the selection.
func (s *Selection) Contains(id string) bool {
	s.ix.mu.RLock()
	local, ok := s.ix.locals[id]
	s.ix.mu.RUnlock()

	if !ok {
		return false
	}
	return s.bm.Contains(local)
}

// Cardinality returns the number of selected records.
func (s *Selection) Cardinality() uint64 {
	return s.bm.GetCardinality()
}

// Query answers fs from the inverted index. The second return is false when
// the filter set contains operators the index cannot serve (callers fall back
// to per-document predicate evaluation; both paths select the same records).
func (ix *Index) Query(fs *FilterSet) (*Selection, bool) {
	if !fs.indexable() {
		return nil, false
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var acc *roaring.Bitmap
	for _, filter := range fs.Filters {
		byValue, ok := ix.inverted[filter.Key]
		if !ok {
			return &Selection{bm: roaring.New(), ix: ix}, true
		}

		bm, ok := byValue[filter.Value.Key()]
		if !ok {
			return &Selection{bm: roaring.New(), ix: ix}, true
		}

		if acc == nil {
			acc = bm.Clone()
		} else {
			acc.And(bm)
		}
	}

	return &Selection{bm: acc, ix: ix}, true
}
