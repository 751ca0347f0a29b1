package evaluation

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/scoring"
)

// RetrievedDoc is the bookkeeping kept for each retrieved context.
type RetrievedDoc struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

// Record is the full outcome of evaluating one question.
type Record struct {
	ID               string                   `json:"id"`
	Question         string                   `json:"question"`
	Answer           string                   `json:"answer"`
	ExpectedKeywords []string                 `json:"expected_keywords"`
	MustBeGroundedIn []string                 `json:"must_be_grounded_in"`
	Metrics          scoring.EvalResult       `json:"metrics"`
	RetrievedDocs    []RetrievedDoc           `json:"retrieved_docs"`
	SkippedGrounding int                      `json:"skipped_grounding"`
	Retrieval        scoring.RetrievalQuality `json:"retrieval"`
}

// Summary holds run-level averages. All fields are 0 for an empty run.
type Summary struct {
	Questions    int     `json:"questions"`
	AvgScore     float64 `json:"avg_score"`
	AvgCoverage  float64 `json:"avg_coverage"`
	AvgOverlap   float64 `json:"avg_overlap"`
	AvgPrecision float64 `json:"avg_precision"`
	AvgRecall    float64 `json:"avg_recall"`
	AvgMRR       float64 `json:"avg_mrr"`
}

// Report is one evaluation run. Results keep the order of the input
// questions.
type Report struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Summary     Summary   `json:"summary"`
	Results     []Record  `json:"results"`
}

// Summarize averages the metrics of records.
func Summarize(records []Record) Summary {
	s := Summary{Questions: len(records)}
	if len(records) == 0 {
		return s
	}
	for _, r := range records {
		s.AvgScore += r.Metrics.Score
		s.AvgCoverage += r.Metrics.Coverage
		s.AvgOverlap += r.Metrics.Overlap
		s.AvgPrecision += r.Retrieval.Precision
		s.AvgRecall += r.Retrieval.Recall
		s.AvgMRR += r.Retrieval.MRR
	}
	n := float64(len(records))
	s.AvgScore /= n
	s.AvgCoverage /= n
	s.AvgOverlap /= n
	s.AvgPrecision /= n
	s.AvgRecall /= n
	s.AvgMRR /= n
	return s
}
