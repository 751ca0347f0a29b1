package tokenizer

import (
	"fmt"
	"strings"
	"testing"
)

var sampleTexts = map[string]string{
	"short": "What are the components of a RAG pipeline?",
	"medium": `Retrieval-augmented generation pairs a retriever with a generator. The
        retriever ranks corpus documents against the question and the generator
        conditions its answer on the best matches. Evaluation checks whether the
        answer mentions the expected keywords and stays grounded in the gold context.`,
	"long": strings.Repeat(`BM25 ranking considers term frequency, document length
        normalization and inverse document frequency to produce relevance scores.
        Keyword coverage counts how many expected keywords the answer mentions, while
        context overlap measures how much of the gold context vocabulary it reuses. `, 20),
}

func BenchmarkTokenize(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Tokenize(text)
			}
		})
	}
}

func BenchmarkTokenizeParallel(b *testing.B) {
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = Tokenize(text)
		}
	})
}

func BenchmarkTokenizeVaryingSize(b *testing.B) {
	sizes := []int{10, 100, 500, 1000, 5000}
	baseWord := "retrieval augmented generation evaluation, "
	for _, size := range sizes {
		text := strings.Repeat(baseWord, size/len(baseWord)+1)[:size]
		b.Run(fmt.Sprintf("bytes_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Tokenize(text)
			}
		})
	}
}

func BenchmarkTermSet(b *testing.B) {
	text := sampleTexts["long"]
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = TermSet(text)
	}
}
