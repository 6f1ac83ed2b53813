package mergebase

import "github.com/go-git/go-git/v5/plumbing"

// heapItem and maxHeap port the teacher's mergeBaseMaxHeap
// (pkg/repo/merge_base_queue.go) onto plumbing.Hash: a max-heap ordered
// by generation, tied-broken by lexicographically smaller hash.
type heapItem struct {
	hash       plumbing.Hash
	generation uint64
}

type maxHeap []heapItem

func (h maxHeap) Len() int { return len(h) }

func (h maxHeap) Less(i, j int) bool {
	if h[i].generation == h[j].generation {
		return h[i].hash.String() < h[j].hash.String()
	}
	return h[i].generation > h[j].generation
}

func (h maxHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *maxHeap) Push(x any) {
	*h = append(*h, x.(heapItem))
}

func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func (h maxHeap) Peek() (heapItem, bool) {
	if len(h) == 0 {
		return heapItem{}, false
	}
	return h[0], true
}
