package ranker

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/indexer/tokenizer"
)

type ScoredDoc struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

// Ranker scores every document of a CorpusIndex against a query with BM25.
// It holds no mutable state and may be shared between goroutines.
type Ranker struct {
	idx    *index.CorpusIndex
	params index.Params
}

type Option func(*Ranker)

// WithParams overrides the k1/b constants carried by the index.
func WithParams(p index.Params) Option {
	return func(r *Ranker) {
		r.params = p
	}
}

func New(idx *index.CorpusIndex, opts ...Option) *Ranker {
	r := &Ranker{
		idx:    idx,
		params: idx.Params(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Ranker) Params() index.Params {
	return r.params
}

// Rank returns the min(topK, N) best documents for query, ordered by
// descending score and then ascending document identifier. Documents sharing
// no term with the query score 0 and still fill the result when fewer than
// topK documents match. A topK below 1 is treated as 1.
func (r *Ranker) Rank(query string, topK int) []ScoredDoc {
	n := r.idx.DocCount()
	if n == 0 {
		return []ScoredDoc{}
	}
	if topK < 1 {
		topK = 1
	}
	scores := r.Scores(query)
	top := newTopK(topK)
	for _, doc := range r.idx.Documents() {
		top.offer(ScoredDoc{DocID: doc.ID, Score: scores[doc.ID]})
	}
	return top.sorted()
}

// Scores returns the BM25 score of every document that shares at least one
// term with query. Absent documents score 0.
func (r *Ranker) Scores(query string) map[string]float64 {
	scores := make(map[string]float64)
	n := int64(r.idx.DocCount())
	avgLen := r.idx.AvgDocLength()
	for _, term := range distinct(tokenizer.Tokenize(query)) {
		postings := r.idx.Postings(term)
		if len(postings) == 0 {
			continue
		}
		idf := IDF(n, int64(len(postings)))
		for _, p := range postings {
			doc, _ := r.idx.Document(p.DocID)
			scores[p.DocID] += idf * r.tfNorm(float64(p.Frequency), float64(doc.Length), avgLen)
		}
	}
	return scores
}

// IDF is the smoothed inverse document frequency ln(1 + (N-df+0.5)/(df+0.5)),
// non-negative whenever df <= N.
func IDF(totalDocs int64, docFreq int64) float64 {
	numerator := float64(totalDocs) - float64(docFreq) + 0.5
	denominator := float64(docFreq) + 0.5
	return math.Log(1 + numerator/denominator)
}

func (r *Ranker) tfNorm(termFreq float64, docLength float64, avgDocLength float64) float64 {
	if avgDocLength == 0 {
		return 0
	}
	k1, b := r.params.K1, r.params.B
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}

func distinct(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
