// Package flat provides the exact linear-scan similarity index. It is the
// correctness baseline for approximate indexes and the right choice for small
// and validation datasets.
package flat

import (
	"container/heap"
	"iter"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/semidx/semidx/index"
	"github.com/semidx/semidx/internal/queue"
	"github.com/semidx/semidx/record"
)

// Compile-time checks.
var (
	_ index.Index    = (*Flat)(nil)
	_ index.Snapshot = (*snapshot)(nil)
)

// Options contains configuration options for the flat index.
type Options struct {
	// Dimension is the fixed vector dimensionality for this index.
	// It must be > 0 and is enforced for all inserts and searches.
	Dimension int
}

// Flat is an exact nearest-neighbor index using copy-on-write state: every
// write publishes a fresh immutable snapshot under an atomic pointer, so
// queries are lock-free and never observe partial writes.
type Flat struct {
	writeMu sync.Mutex // Serializes writes only
	state   atomic.Pointer[snapshot]
	opts    Options
}

type snapshot struct {
	epoch   uint64
	entries map[record.ID][]float32
	dim     int
}

// New creates a flat index. Dimension is required.
func New(optFns ...func(o *Options)) (*Flat, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Dimension <= 0 {
		return nil, &index.ErrInvalidDimension{Dimension: opts.Dimension}
	}

	f := &Flat{opts: opts}
	f.state.Store(&snapshot{
		entries: make(map[record.ID][]float32),
		dim:     opts.Dimension,
	})

	return f, nil
}

// Insert adds or replaces the vector for id.
func (f *Flat) Insert(id record.ID, vector []float32) error {
	if len(vector) != f.opts.Dimension {
		return &index.ErrDimensionMismatch{Expected: f.opts.Dimension, Actual: len(vector)}
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	next := f.clone()
	next.entries[id] = vector
	f.state.Store(next)

	return nil
}

// Remove drops id from the index.
func (f *Flat) Remove(id record.ID) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	cur := f.state.Load()
	if _, ok := cur.entries[id]; !ok {
		return &index.ErrEntryNotFound{ID: id}
	}

	next := f.clone()
	delete(next.entries, id)
	f.state.Store(next)

	return nil
}

// Snapshot returns the current published view.
func (f *Flat) Snapshot() index.Snapshot {
	return f.state.Load()
}

// Len returns the number of live entries.
func (f *Flat) Len() int {
	return len(f.state.Load().entries)
}

// clone copies the current state with a bumped epoch. Vector slices are
// shared; they are immutable once inserted.
func (f *Flat) clone() *snapshot {
	cur := f.state.Load()

	next := &snapshot{
		epoch:   cur.epoch + 1,
		entries: make(map[record.ID][]float32, len(cur.entries)+1),
		dim:     cur.dim,
	}
	for id, vec := range cur.entries {
		next.entries[id] = vec
	}

	return next
}

// Epoch returns the build epoch of the view.
func (s *snapshot) Epoch() uint64 { return s.epoch }

// Len returns the number of entries in the view.
func (s *snapshot) Len() int { return len(s.entries) }

// Contains reports whether id is present in the view.
func (s *snapshot) Contains(id record.ID) bool {
	_, ok := s.entries[id]
	return ok
}

// Entries iterates the view's entries.
func (s *snapshot) Entries() iter.Seq[index.Entry] {
	return func(yield func(index.Entry) bool) {
		for id, vec := range s.entries {
			if !yield(index.Entry{ID: id, Vector: vec}) {
				return
			}
		}
	}
}

// Search scans every allowed entry and keeps the top k by score. The result
// is exact: descending score, ties by ascending record ID.
func (s *snapshot) Search(query []float32, k int, metric index.Metric, allow func(record.ID) bool) ([]index.Candidate, error) {
	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	if len(query) != s.dim {
		return nil, &index.ErrDimensionMismatch{Expected: s.dim, Actual: len(query)}
	}

	// Min-heap of the current top k; the root is the weakest candidate.
	pq := &queue.PriorityQueue{}
	for id, vec := range s.entries {
		if allow != nil && !allow(id) {
			continue
		}

		score := metric.Score(query, vec)
		if pq.Len() < k {
			heap.Push(pq, queue.Item{ID: string(id), Score: score})
			continue
		}

		top := pq.Top()
		if score > top.Score || (score == top.Score && string(id) < top.ID) {
			heap.Pop(pq)
			heap.Push(pq, queue.Item{ID: string(id), Score: score})
		}
	}

	out := make([]index.Candidate, pq.Len())
	sort.Slice(pq.Items, func(i, j int) bool {
		a, b := pq.Items[i], pq.Items[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.ID < b.ID
	})
	for i, item := range pq.Items {
		out[i] = index.Candidate{ID: record.ID(item.ID), Score: item.Score}
	}

	return out, nil
}
