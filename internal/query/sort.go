package query

import (
	"container/heap"
	"sync"
)

// topKSorter is the match sorter every shard's evaluation pushes into: a
// bounded min-heap keyed on weight, keeping only the best limit+offset
// rows seen so far (spec §4.9 "a vector of match sorters (top-K priority
// queues)"). It is safe for concurrent pushAll calls from the disk-chunk
// worker pool.
type topKSorter struct {
	mu      sync.Mutex
	limit   int
	offset  int
	heap    scoredHeap
	seen    int
}

func newTopKSorter(limit, offset int) *topKSorter {
	if limit <= 0 {
		limit = defaultMaxBlockDocs
	}
	return &topKSorter{limit: limit, offset: offset}
}

func (s *topKSorter) pushAll(rows []scoredRow) {
	if len(rows) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	capN := s.limit + s.offset
	for _, r := range rows {
		s.seen++
		if s.heap.Len() < capN {
			heap.Push(&s.heap, r)
			continue
		}
		if len(s.heap) > 0 && r.Weight > s.heap[0].Weight {
			heap.Pop(&s.heap)
			heap.Push(&s.heap, r)
		}
	}
}

// drain returns the sorter's contents ordered best-weight-first, applying
// offset/limit, and leaves the sorter's contents in place (callers invoke
// this once, at the end of Execute).
func (s *topKSorter) drain() []scoredRow {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]scoredRow, len(s.heap))
	copy(all, s.heap)
	// scoredHeap is a min-heap; sort descending by popping repeatedly.
	sorted := make([]scoredRow, 0, len(all))
	tmp := append(scoredHeap(nil), all...)
	for tmp.Len() > 0 {
		sorted = append(sorted, heap.Pop(&tmp).(scoredRow))
	}
	// tmp pops ascending (min first); reverse for best-first order.
	for i, j := 0, len(sorted)-1; i < j; i, j = i+1, j-1 {
		sorted[i], sorted[j] = sorted[j], sorted[i]
	}

	if s.offset >= len(sorted) {
		return nil
	}
	end := len(sorted)
	if s.offset+s.limit < end {
		end = s.offset + s.limit
	}
	return sorted[s.offset:end]
}

func (s *topKSorter) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen
}

func (s *topKSorter) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heap.Len()
}

// scoredHeap is a container/heap min-heap over scoredRow.Weight.
type scoredHeap []scoredRow

func (h scoredHeap) Len() int            { return len(h) }
func (h scoredHeap) Less(i, j int) bool  { return h[i].Weight < h[j].Weight }
func (h scoredHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *scoredHeap) Push(x interface{}) { *h = append(*h, x.(scoredRow)) }
func (h *scoredHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
