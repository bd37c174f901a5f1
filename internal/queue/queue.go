// Package queue provides the priority queue used for top-K candidate selection.
package queue

import "container/heap"

// Compile time check to ensure PriorityQueue satisfies the heap interface.
var _ heap.Interface = (*PriorityQueue)(nil)

// Item represents an entry in the priority queue.
type Item struct {
	ID    string  // ID is the record identifier carried through the queue.
	Score float32 // Score is the priority of the item in the queue.
}

// PriorityQueue implements heap.Interface over Items.
//
// With Max false the queue is a min-heap on Score (the worst of the current
// top-K sits at the root, ready for eviction). Ties order by descending ID so
// that the lexicographically smallest ID survives eviction, matching the
// ascending-ID tie-break of ranked results.
type PriorityQueue struct {
	Max   bool
	Items []Item
}

// Len returns the number of elements in the priority queue.
func (pq *PriorityQueue) Len() int { return len(pq.Items) }

// Less reports whether the element with index i should sort before the element with index j.
func (pq *PriorityQueue) Less(i, j int) bool {
	a, b := pq.Items[i], pq.Items[j]
	if a.Score != b.Score {
		if pq.Max {
			return a.Score > b.Score
		}
		return a.Score < b.Score
	}
	if pq.Max {
		return a.ID < b.ID
	}
	return a.ID > b.ID
}

// Swap swaps the elements with indexes i and j.
func (pq *PriorityQueue) Swap(i, j int) {
	pq.Items[i], pq.Items[j] = pq.Items[j], pq.Items[i]
}

// Push adds x to the priority queue.
func (pq *PriorityQueue) Push(x any) {
	item, _ := x.(Item)
	pq.Items = append(pq.Items, item)
}

// Pop removes and returns the root element from the priority queue.
func (pq *PriorityQueue) Pop() any {
	old := pq.Items
	n := len(old)
	item := old[n-1]
	pq.Items = old[:n-1]

	return item
}

// Top returns the root element without removing it.
func (pq *PriorityQueue) Top() Item {
	return pq.Items[0]
}
