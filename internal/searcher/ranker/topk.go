package ranker

import "container/heap"

// topK keeps the k best documents seen so far in a min-heap whose root is the
// weakest kept document.
type topK struct {
	limit int
	h     scoredDocHeap
}

func newTopK(limit int) *topK {
	return &topK{
		limit: limit,
		h:     make(scoredDocHeap, 0, limit+1),
	}
}

func (t *topK) offer(doc ScoredDoc) {
	if t.h.Len() < t.limit {
		heap.Push(&t.h, doc)
		return
	}
	if ranksBefore(doc, t.h[0]) {
		t.h[0] = doc
		heap.Fix(&t.h, 0)
	}
}

// sorted drains the heap, best document first.
func (t *topK) sorted() []ScoredDoc {
	result := make([]ScoredDoc, t.h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&t.h).(ScoredDoc)
	}
	return result
}

// ranksBefore reports whether a belongs ahead of b in a ranking.
func ranksBefore(a, b ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.DocID < b.DocID
}

type scoredDocHeap []ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool {
	return ranksBefore(h[j], h[i])
}

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x interface{}) {
	*h = append(*h, x.(ScoredDoc))
}

func (h *scoredDocHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
