// Package scoring turns an answer and its references into comparable numbers:
// keyword coverage, context overlap and their weighted combination. Every
// function is pure and total; empty inputs map to 0 rather than an error.
package scoring

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/indexer/tokenizer"
)

// DefaultAlpha weights coverage and overlap equally.
const DefaultAlpha = 0.5

// EvalResult is the per-question outcome. It is never modified after
// Evaluate returns it.
type EvalResult struct {
	QuestionID string  `json:"question_id"`
	Coverage   float64 `json:"keyword_coverage"`
	Overlap    float64 `json:"context_overlap"`
	Score      float64 `json:"score"`
}

// KeywordCoverage is the fraction of keywords found, case-insensitively, as
// substrings of answer. Each keyword counts at most once. An empty keyword
// list yields 0.
func KeywordCoverage(answer string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	lower := strings.ToLower(answer)
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			hits++
		}
	}
	return float64(hits) / float64(len(keywords))
}

// ContextOverlap is the fraction of answer tokens, counted per occurrence,
// that also occur anywhere in gold. An answer without tokens yields 0.
func ContextOverlap(answer string, gold string) float64 {
	answerTokens := tokenizer.Tokenize(answer)
	if len(answerTokens) == 0 {
		return 0
	}
	goldSet := tokenizer.TermSet(gold)
	hits := 0
	for _, t := range answerTokens {
		if _, ok := goldSet[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(answerTokens))
}

// CombinedScore interpolates alpha*coverage + (1-alpha)*overlap. Callers are
// expected to pass alpha in [0,1]; other values are not rejected.
func CombinedScore(coverage, overlap, alpha float64) float64 {
	return alpha*coverage + (1-alpha)*overlap
}

// Evaluate scores one answer against its keyword checklist and gold context.
func Evaluate(questionID, answer string, keywords []string, gold string, alpha float64) EvalResult {
	cov := KeywordCoverage(answer, keywords)
	ov := ContextOverlap(answer, gold)
	return EvalResult{
		QuestionID: questionID,
		Coverage:   cov,
		Overlap:    ov,
		Score:      CombinedScore(cov, ov, alpha),
	}
}
