package ranker

import (
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/indexer/index"
)

func benchIndex(b *testing.B, n int) *index.CorpusIndex {
	b.Helper()
	terms := []string{"retrieval", "generation", "context", "keyword", "ranking", "corpus", "answer", "grounding"}
	sources := make([]index.Source, n)
	for i := range sources {
		sources[i] = index.Source{
			ID: fmt.Sprintf("doc-%05d.txt", i),
			Text: fmt.Sprintf("%s %s %s appear in this evaluation document",
				terms[i%len(terms)], terms[(i+1)%len(terms)], terms[(i+3)%len(terms)]),
		}
	}
	idx, err := index.Build(sources)
	if err != nil {
		b.Fatal(err)
	}
	return idx
}

func BenchmarkRank(b *testing.B) {
	for _, n := range []int{100, 1000, 10000} {
		r := New(benchIndex(b, n))
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = r.Rank("how does keyword ranking use the corpus context", 3)
			}
		})
	}
}

func BenchmarkRankTopK(b *testing.B) {
	r := New(benchIndex(b, 10000))
	for _, k := range []int{1, 10, 100} {
		b.Run(fmt.Sprintf("k_%d", k), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = r.Rank("retrieval grounding answer", k)
			}
		})
	}
}

func BenchmarkRankParallel(b *testing.B) {
	r := New(benchIndex(b, 10000))
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = r.Rank("keyword context", 3)
		}
	})
}
