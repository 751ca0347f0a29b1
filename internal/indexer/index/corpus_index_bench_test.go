package index

import (
	"fmt"
	"testing"
)

var benchTerms = []string{"retrieval", "generation", "context", "keyword", "ranking", "corpus", "answer", "grounding"}

func benchSources(n int) []Source {
	sources := make([]Source, n)
	for i := range sources {
		sources[i] = Source{
			ID: fmt.Sprintf("doc-%05d.txt", i),
			Text: fmt.Sprintf("this document covers %s %s and %s in evaluation pipelines",
				benchTerms[i%len(benchTerms)], benchTerms[(i+2)%len(benchTerms)], benchTerms[(i+3)%len(benchTerms)]),
		}
	}
	return sources
}

func BenchmarkBuild(b *testing.B) {
	for _, n := range []int{100, 1000, 5000} {
		sources := benchSources(n)
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := Build(sources); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkPostingsParallel(b *testing.B) {
	idx, err := Build(benchSources(10000))
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_ = idx.Postings(benchTerms[i%len(benchTerms)])
			i++
		}
	})
}

func BenchmarkSnapshot(b *testing.B) {
	idx, err := Build(benchSources(5000))
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = idx.Snapshot()
	}
}
