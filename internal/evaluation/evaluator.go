// Package evaluation runs a question set through retrieval, answer
// derivation and scoring, producing one Record per question.
package evaluation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/scoring"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/searcher/retriever"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/tracing"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultTopK is how many contexts are retrieved per question.
const DefaultTopK = 3

// Options configures an Evaluator. Start from DefaultOptions; Alpha is used
// as given, including 0.
type Options struct {
	TopK           int
	Alpha          float64
	MaxAnswerChars int
	Workers        int
	Metrics        *metrics.Metrics
}

func DefaultOptions() Options {
	return Options{
		TopK:           DefaultTopK,
		Alpha:          scoring.DefaultAlpha,
		MaxAnswerChars: DefaultMaxAnswerChars,
		Workers:        1,
	}
}

type Evaluator struct {
	idx       *index.CorpusIndex
	retriever retriever.Retriever
	opts      Options
	logger    *slog.Logger
}

// New creates an Evaluator. idx supplies the gold context texts; r supplies
// the ranked contexts. Non-positive TopK, MaxAnswerChars and Workers fall
// back to their defaults.
func New(idx *index.CorpusIndex, r retriever.Retriever, opts Options) *Evaluator {
	if opts.TopK < 1 {
		opts.TopK = DefaultTopK
	}
	if opts.MaxAnswerChars < 1 {
		opts.MaxAnswerChars = DefaultMaxAnswerChars
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Evaluator{
		idx:       idx,
		retriever: r,
		opts:      opts,
		logger:    slog.Default().With("component", "evaluator"),
	}
}

func (e *Evaluator) Options() Options {
	return e.opts
}

// Evaluate validates the whole set, then evaluates every question with up to
// Workers in flight. Records are returned in input order. The first failing
// question cancels the rest.
func (e *Evaluator) Evaluate(ctx context.Context, questions []ingestion.Question) (*Report, error) {
	if err := validator.ValidateSet(questions); err != nil {
		return nil, err
	}
	runID := logger.RunID(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = logger.WithRunID(ctx, runID)
	}
	ctx, span := tracing.StartSpan(ctx, "evaluate", runID)
	log := logger.FromContext(ctx).With("component", "evaluator")
	start := time.Now()

	records := make([]Record, len(questions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, q := range questions {
		g.Go(func() error {
			rec, err := e.evaluate(gctx, q)
			if err != nil {
				return fmt.Errorf("evaluating question %q: %w", q.ID, err)
			}
			records[i] = rec
			return nil
		})
	}
	err := g.Wait()
	span.SetAttr("questions", len(questions))
	span.End()
	span.Log(log)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:       runID,
		GeneratedAt: time.Now().UTC(),
		Summary:     Summarize(records),
		Results:     records,
	}
	log.Info("evaluation complete",
		"questions", len(records),
		"avg_score", report.Summary.AvgScore,
		"workers", e.opts.Workers,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return report, nil
}

// EvaluateOne validates and evaluates a single question.
func (e *Evaluator) EvaluateOne(ctx context.Context, q ingestion.Question) (Record, error) {
	if err := validator.ValidateQuestion(q, -1); err != nil {
		return Record{}, err
	}
	return e.evaluate(ctx, q)
}

func (e *Evaluator) evaluate(ctx context.Context, q ingestion.Question) (Record, error) {
	ctx, span := tracing.StartChildSpan(ctx, "question")
	defer span.End()
	span.SetAttr("question_id", q.ID)

	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	contexts, err := e.retriever.Retrieve(ctx, q.Question, e.opts.TopK)
	if err != nil {
		e.observeError()
		return Record{}, fmt.Errorf("retrieving contexts: %w", err)
	}

	answer := DeriveAnswer(contexts, e.opts.MaxAnswerChars)
	gold, skipped := GoldContext(e.idx, q.MustBeGroundedIn)
	if skipped > 0 {
		logger.FromContext(ctx).Warn("grounding documents not found",
			"component", "evaluator",
			"question_id", q.ID,
			"skipped", skipped,
		)
	}

	keywords := nonNil(q.ExpectedKeywords)
	grounded := nonNil(q.MustBeGroundedIn)
	result := scoring.Evaluate(q.ID, answer, keywords, gold, e.opts.Alpha)

	retrieved := make([]RetrievedDoc, 0, len(contexts))
	retrievedIDs := make([]string, 0, len(contexts))
	for _, c := range contexts {
		retrieved = append(retrieved, RetrievedDoc{DocID: c.DocID, Score: c.Score})
		retrievedIDs = append(retrievedIDs, c.DocID)
	}

	rec := Record{
		ID:               q.ID,
		Question:         q.Question,
		Answer:           answer,
		ExpectedKeywords: keywords,
		MustBeGroundedIn: grounded,
		Metrics:          result,
		RetrievedDocs:    retrieved,
		SkippedGrounding: skipped,
		Retrieval:        scoring.Retrieval(retrievedIDs, grounded),
	}
	e.observe(rec)
	span.SetAttr("score", result.Score)
	return rec, nil
}

func (e *Evaluator) observe(rec Record) {
	m := e.opts.Metrics
	if m == nil {
		return
	}
	m.QuestionsEvaluated.WithLabelValues("ok").Inc()
	m.QuestionScore.WithLabelValues("score").Observe(rec.Metrics.Score)
	m.QuestionScore.WithLabelValues("coverage").Observe(rec.Metrics.Coverage)
	m.QuestionScore.WithLabelValues("overlap").Observe(rec.Metrics.Overlap)
	m.SkippedGrounding.Add(float64(rec.SkippedGrounding))
}

func (e *Evaluator) observeError() {
	if e.opts.Metrics != nil {
		e.opts.Metrics.QuestionsEvaluated.WithLabelValues("error").Inc()
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
