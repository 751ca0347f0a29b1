package evaluation

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/searcher/retriever"
)

const (
	// NoContextAnswer is the answer given when retrieval returned nothing.
	NoContextAnswer = "No answer: no context retrieved."
	// DefaultMaxAnswerChars bounds the derived answer before the ellipsis.
	DefaultMaxAnswerChars = 400
	ellipsis              = "..."
)

// DeriveAnswer builds the stand-in answer from the top retrieved context:
// its text with whitespace runs collapsed to single spaces, cut to maxChars
// runes at the preceding word boundary and suffixed with "..." when longer.
func DeriveAnswer(contexts []retriever.Context, maxChars int) string {
	if len(contexts) == 0 {
		return NoContextAnswer
	}
	if maxChars < 1 {
		maxChars = DefaultMaxAnswerChars
	}
	snippet := strings.Join(strings.Fields(contexts[0].Text), " ")
	runes := []rune(snippet)
	if len(runes) <= maxChars {
		return snippet
	}
	cut := string(runes[:maxChars])
	if i := strings.LastIndexByte(cut, ' '); i >= 0 {
		cut = cut[:i]
	}
	return cut + ellipsis
}

// GoldContext joins, with "\n", the texts of the listed documents that exist
// in idx, in listed order. It also reports how many identifiers were not
// found.
func GoldContext(idx *index.CorpusIndex, docIDs []string) (string, int) {
	parts := make([]string, 0, len(docIDs))
	skipped := 0
	for _, id := range docIDs {
		doc, ok := idx.Document(id)
		if !ok {
			skipped++
			continue
		}
		parts = append(parts, doc.Text)
	}
	return strings.Join(parts, "\n"), skipped
}

// SummaryLine renders a record as "<id>: score=... (coverage=..., overlap=...)".
func SummaryLine(r Record) string {
	return fmt.Sprintf("%s: score=%.3f (coverage=%.3f, overlap=%.3f)",
		r.ID, r.Metrics.Score, r.Metrics.Coverage, r.Metrics.Overlap)
}
