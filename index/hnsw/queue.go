package hnsw

import "container/heap"

type queueItem struct {
	node uint32
	dist float32
}

// distQueue is a heap of graph nodes keyed by distance. With max false it is
// a min-heap (explore closest first); with max true a max-heap (evict the
// farthest of the current result set).
type distQueue struct {
	max   bool
	items []queueItem
}

var _ heap.Interface = (*distQueue)(nil)

func (q *distQueue) Len() int { return len(q.items) }

func (q *distQueue) Less(i, j int) bool {
	if q.max {
		return q.items[i].dist > q.items[j].dist
	}
	return q.items[i].dist < q.items[j].dist
}

func (q *distQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
}

func (q *distQueue) Push(x any) {
	item, _ := x.(queueItem)
	q.items = append(q.items, item)
}

func (q *distQueue) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	q.items = old[:n-1]

	return item
}

func (q *distQueue) top() queueItem {
	return q.items[0]
}
