package app

import (
	"container/heap"

	"github.com/fd1az/arb-core/business/pricecache/domain"
)

// priceHeap is a bounded min-heap over domain.PricePoint ordered by quality
// score (lowest quality at the root; best scans for the highest), translating the teacher's Rust BinaryHeap price cache into Go's
// container/heap. Once capacity is reached, pushing a new point evicts the
// current lowest-quality point if the new one scores higher.
type priceHeap struct {
	items    []domain.PricePoint
	capacity int
}

func newPriceHeap(capacity int) *priceHeap {
	if capacity <= 0 {
		capacity = 64
	}
	h := &priceHeap{capacity: capacity}
	heap.Init(h)
	return h
}

// Len, Less, Swap, Push, Pop implement container/heap.Interface. Less orders
// by ascending quality (lowest quality bubbles to the root) so Pop always evicts the
// worst entry first when the heap is over capacity.
func (h *priceHeap) Len() int            { return len(h.items) }
func (h *priceHeap) Less(i, j int) bool  { return h.items[i].QualityScore < h.items[j].QualityScore }
func (h *priceHeap) Swap(i, j int)       { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *priceHeap) Push(x any) {
	h.items = append(h.items, x.(domain.PricePoint))
}

func (h *priceHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

// insert adds p, evicting the lowest-quality entry if the heap is full.
func (h *priceHeap) insert(p domain.PricePoint) {
	heap.Push(h, p)
	for h.Len() > h.capacity {
		heap.Pop(h)
	}
}

// best returns the highest-quality entry currently held, if any.
func (h *priceHeap) best() (domain.PricePoint, bool) {
	if h.Len() == 0 {
		return domain.PricePoint{}, false
	}
	best := h.items[0]
	for _, it := range h.items[1:] {
		if it.QualityScore > best.QualityScore {
			best = it
		}
	}
	return best, true
}

// points exposes the heap's current entries in arbitrary order, for callers
// rebuilding a best-price view after eviction. The returned slice aliases
// the heap's storage; callers must not retain it past the cache lock.
func (h *priceHeap) points() []domain.PricePoint { return h.items }

// evictExpired removes every entry older than maxAge, returning the count
// removed. O(n) rebuild, acceptable since this runs on a slow cleanup tick,
// not the tick-ingest hot path.
func (h *priceHeap) evictExpired(maxAge int64) int {
	kept := h.items[:0]
	removed := 0
	for _, it := range h.items {
		if it.AgeSeconds() > maxAge {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	h.items = kept
	heap.Init(h)
	return removed
}
