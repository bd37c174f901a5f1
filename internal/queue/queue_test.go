package queue

import (
	"container/heap"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriorityQueue_Min(t *testing.T) {
	pq := &PriorityQueue{}
	heap.Push(pq, Item{ID: "a", Score: 0.5})
	heap.Push(pq, Item{ID: "b", Score: 0.9})
	heap.Push(pq, Item{ID: "c", Score: 0.1})

	// Min-heap: the weakest candidate sits at the root.
	assert.Equal(t, "c", pq.Top().ID)

	got := heap.Pop(pq).(Item)
	assert.Equal(t, "c", got.ID)
	assert.Equal(t, "a", pq.Top().ID)
}

func TestPriorityQueue_MinTieBreak(t *testing.T) {
	pq := &PriorityQueue{}
	heap.Push(pq, Item{ID: "a", Score: 0.5})
	heap.Push(pq, Item{ID: "z", Score: 0.5})

	// On equal scores the larger ID is evicted first, so the smallest ID
	// survives top-K selection.
	assert.Equal(t, "z", heap.Pop(pq).(Item).ID)
	assert.Equal(t, "a", heap.Pop(pq).(Item).ID)
}

func TestPriorityQueue_Max(t *testing.T) {
	pq := &PriorityQueue{Max: true}
	heap.Push(pq, Item{ID: "a", Score: 0.5})
	heap.Push(pq, Item{ID: "b", Score: 0.9})

	assert.Equal(t, "b", heap.Pop(pq).(Item).ID)
	assert.Equal(t, "a", heap.Pop(pq).(Item).ID)
	assert.Zero(t, pq.Len())
}
