package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/evaluation"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/resilience"
	"github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS eval_runs (
	run_id        TEXT PRIMARY KEY,
	generated_at  TIMESTAMPTZ NOT NULL,
	questions     INTEGER NOT NULL,
	avg_score     DOUBLE PRECISION NOT NULL,
	avg_coverage  DOUBLE PRECISION NOT NULL,
	avg_overlap   DOUBLE PRECISION NOT NULL,
	avg_precision DOUBLE PRECISION NOT NULL,
	avg_recall    DOUBLE PRECISION NOT NULL,
	avg_mrr       DOUBLE PRECISION NOT NULL
);
CREATE TABLE IF NOT EXISTS eval_results (
	run_id              TEXT NOT NULL REFERENCES eval_runs(run_id) ON DELETE CASCADE,
	position            INTEGER NOT NULL,
	question_id         TEXT NOT NULL,
	question            TEXT NOT NULL,
	answer              TEXT NOT NULL,
	expected_keywords   TEXT[] NOT NULL,
	must_be_grounded_in TEXT[] NOT NULL,
	keyword_coverage    DOUBLE PRECISION NOT NULL,
	context_overlap     DOUBLE PRECISION NOT NULL,
	score               DOUBLE PRECISION NOT NULL,
	skipped_grounding   INTEGER NOT NULL,
	retrieved_docs      JSONB NOT NULL,
	retrieval_precision DOUBLE PRECISION NOT NULL DEFAULT 0,
	retrieval_recall    DOUBLE PRECISION NOT NULL DEFAULT 0,
	retrieval_mrr       DOUBLE PRECISION NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, position)
);
ALTER TABLE eval_results ADD COLUMN IF NOT EXISTS retrieval_precision DOUBLE PRECISION NOT NULL DEFAULT 0;
ALTER TABLE eval_results ADD COLUMN IF NOT EXISTS retrieval_recall DOUBLE PRECISION NOT NULL DEFAULT 0;
ALTER TABLE eval_results ADD COLUMN IF NOT EXISTS retrieval_mrr DOUBLE PRECISION NOT NULL DEFAULT 0;`

const (
	insertRun = `INSERT INTO eval_runs
	(run_id, generated_at, questions, avg_score, avg_coverage, avg_overlap, avg_precision, avg_recall, avg_mrr)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	insertResult = `INSERT INTO eval_results
	(run_id, position, question_id, question, answer, expected_keywords, must_be_grounded_in,
	 keyword_coverage, context_overlap, score, skipped_grounding, retrieved_docs,
	 retrieval_precision, retrieval_recall, retrieval_mrr)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
)

// Postgres stores a run and its records in one transaction.
type Postgres struct {
	client *postgres.Client
	retry  resilience.RetryConfig
}

func NewPostgres(c *postgres.Client, retry resilience.RetryConfig) *Postgres {
	return &Postgres{client: c, retry: retry}
}

func (p *Postgres) Name() string {
	return "postgres"
}

// EnsureSchema creates the result tables if they do not exist and adds
// the per-record retrieval columns to tables created before them.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.client.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating result schema: %w", err)
	}
	return nil
}

func (p *Postgres) Write(ctx context.Context, r *evaluation.Report) error {
	docs := make([][]byte, len(r.Results))
	for i, rec := range r.Results {
		data, err := json.Marshal(rec.RetrievedDocs)
		if err != nil {
			return fmt.Errorf("encoding retrieved docs of %q: %w", rec.ID, err)
		}
		docs[i] = data
	}
	return resilience.Retry(ctx, "postgres-report", p.retry, func() error {
		return p.client.InTx(ctx, func(tx *sql.Tx) error {
			s := r.Summary
			if _, err := tx.ExecContext(ctx, insertRun,
				r.RunID, r.GeneratedAt, s.Questions,
				s.AvgScore, s.AvgCoverage, s.AvgOverlap,
				s.AvgPrecision, s.AvgRecall, s.AvgMRR,
			); err != nil {
				return fmt.Errorf("inserting run %s: %w", r.RunID, err)
			}
			for i, rec := range r.Results {
				if _, err := tx.ExecContext(ctx, insertResult,
					r.RunID, i, rec.ID, rec.Question, rec.Answer,
					pq.Array(rec.ExpectedKeywords), pq.Array(rec.MustBeGroundedIn),
					rec.Metrics.Coverage, rec.Metrics.Overlap, rec.Metrics.Score,
					rec.SkippedGrounding, docs[i],
					rec.Retrieval.Precision, rec.Retrieval.Recall, rec.Retrieval.MRR,
				); err != nil {
					return fmt.Errorf("inserting result %q: %w", rec.ID, err)
				}
			}
			return nil
		})
	})
}
