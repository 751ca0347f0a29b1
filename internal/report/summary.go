package report

import (
	"context"
	"fmt"
	"io"

	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/evaluation"
)

const summaryHeader = "=== RAG answer evaluation summary ==="

// Summary prints one line per record, then the run averages. When
// OutputPath is set the location of the detailed report is printed last.
type Summary struct {
	W          io.Writer
	OutputPath string
}

func NewSummary(w io.Writer, outputPath string) *Summary {
	return &Summary{W: w, OutputPath: outputPath}
}

func (s *Summary) Name() string {
	return "summary"
}

func (s *Summary) Write(_ context.Context, r *evaluation.Report) error {
	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(s.W, format, args...)
		}
	}
	printf("%s\n", summaryHeader)
	for _, rec := range r.Results {
		printf("%s\n", evaluation.SummaryLine(rec))
	}
	sum := r.Summary
	if sum.Questions > 0 {
		printf("\naverage: score=%.3f (coverage=%.3f, overlap=%.3f) over %d questions\n",
			sum.AvgScore, sum.AvgCoverage, sum.AvgOverlap, sum.Questions)
		printf("retrieval: precision=%.3f recall=%.3f mrr=%.3f\n",
			sum.AvgPrecision, sum.AvgRecall, sum.AvgMRR)
	}
	if s.OutputPath != "" {
		printf("\nDetailed results saved to: %s\n", s.OutputPath)
	}
	if err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return nil
}
