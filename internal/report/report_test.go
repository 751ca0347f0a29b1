package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/evaluation"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/scoring"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/resilience"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *evaluation.Report {
	records := []evaluation.Record{
		{
			ID:               "q1",
			Question:         "Is a < b?",
			Answer:           "A RAG pipeline has a retriever and a generator.",
			ExpectedKeywords: []string{"retriever", "generator"},
			MustBeGroundedIn: []string{"doc1.txt"},
			Metrics:          scoring.EvalResult{QuestionID: "q1", Coverage: 1, Overlap: 0.5, Score: 0.75},
			RetrievedDocs:    []evaluation.RetrievedDoc{{DocID: "doc1.txt", Score: 1.2345}},
			Retrieval:        scoring.RetrievalQuality{Precision: 1, Recall: 1, MRR: 1},
		},
		{
			ID:               "q2",
			Question:         "What is BM25?",
			Answer:           evaluation.NoContextAnswer,
			ExpectedKeywords: []string{},
			MustBeGroundedIn: []string{},
			Metrics:          scoring.EvalResult{QuestionID: "q2"},
			RetrievedDocs:    []evaluation.RetrievedDoc{},
		},
	}
	return &evaluation.Report{
		RunID:       "run-1",
		GeneratedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Summary:     evaluation.Summarize(records),
		Results:     records,
	}
}

func fastRetry(attempts int) resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func TestJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "rag_eval_results.json")
	require.NoError(t, NewJSONFile(path).Write(context.Background(), sampleReport()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"question": "Is a < b?"`)
	assert.Contains(t, string(data), "\n  {\n    \"id\": \"q1\",")

	var records []map[string]any
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 2)
	m := records[0]["metrics"].(map[string]any)
	assert.Equal(t, 0.75, m["score"])
	assert.Equal(t, 1.0, m["keyword_coverage"])
	assert.Equal(t, 0.5, m["context_overlap"])
	docs := records[0]["retrieved_docs"].([]any)
	assert.Equal(t, "doc1.txt", docs[0].(map[string]any)["doc_id"])
	assert.Equal(t, []any{}, records[1]["expected_keywords"])

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestEncodeRecordsNil(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeRecords(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewSummary(&buf, "out.json").Write(context.Background(), sampleReport()))
	want := "=== RAG answer evaluation summary ===\n" +
		"q1: score=0.750 (coverage=1.000, overlap=0.500)\n" +
		"q2: score=0.000 (coverage=0.000, overlap=0.000)\n" +
		"\naverage: score=0.375 (coverage=0.500, overlap=0.250) over 2 questions\n" +
		"retrieval: precision=0.500 recall=0.500 mrr=0.500\n" +
		"\nDetailed results saved to: out.json\n"
	assert.Equal(t, want, buf.String())
}

type flakyPublisher struct {
	failures int
	calls    int
	events   []kafka.Event
}

func (p *flakyPublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("leader not available")
	}
	p.events = events
	return nil
}

func TestKafkaRetriesAndKeysByQuestion(t *testing.T) {
	pub := &flakyPublisher{failures: 1}
	require.NoError(t, NewKafka(pub, fastRetry(3)).Write(context.Background(), sampleReport()))
	assert.Equal(t, 2, pub.calls)
	require.Len(t, pub.events, 2)
	assert.Equal(t, "q1", pub.events[0].Key)
	assert.Equal(t, "run-1", pub.events[0].Headers["run_id"])
	assert.IsType(t, evaluation.Record{}, pub.events[0].Value)
}

func TestKafkaGivesUp(t *testing.T) {
	pub := &flakyPublisher{failures: 10}
	err := NewKafka(pub, fastRetry(2)).Write(context.Background(), sampleReport())
	assert.ErrorContains(t, err, "leader not available")
	assert.Equal(t, 2, pub.calls)
}

func TestPostgresWrite(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	r := sampleReport()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO eval_runs").
		WithArgs("run-1", r.GeneratedAt, 2, 0.375, 0.5, 0.25, 0.5, 0.5, 0.5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	for i, id := range []string{"q1", "q2"} {
		mock.ExpectExec("INSERT INTO eval_results").
			WithArgs("run-1", i, id,
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	sink := NewPostgres(postgres.NewFromDB(db), fastRetry(1))
	require.NoError(t, sink.Write(context.Background(), r))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO eval_runs").WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	err = NewPostgres(postgres.NewFromDB(db), fastRetry(1)).Write(context.Background(), sampleReport())
	assert.ErrorContains(t, err, "duplicate key")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`(?s)CREATE TABLE IF NOT EXISTS eval_runs.*ADD COLUMN IF NOT EXISTS retrieval_mrr`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, NewPostgres(postgres.NewFromDB(db), fastRetry(1)).EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoresPerRecordRetrieval(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	r := sampleReport()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO eval_runs").WillReturnResult(sqlmock.NewResult(0, 1))
	for i, rec := range r.Results {
		mock.ExpectExec(`(?s)INSERT INTO eval_results.*retrieval_precision, retrieval_recall, retrieval_mrr`).
			WithArgs("run-1", i, rec.ID,
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				rec.Retrieval.Precision, rec.Retrieval.Recall, rec.Retrieval.MRR).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.Equal(t, 1.0, r.Results[0].Retrieval.MRR)
	require.NoError(t, NewPostgres(postgres.NewFromDB(db), fastRetry(1)).Write(context.Background(), r))
	assert.NoError(t, mock.ExpectationsWereMet())
}

type stubSink struct {
	name  string
	err   error
	calls int
}

func (s *stubSink) Name() string { return s.name }

func (s *stubSink) Write(context.Context, *evaluation.Report) error {
	s.calls++
	return s.err
}

func TestFanoutContinuesPastFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	bad := &stubSink{name: "bad", err: errors.New("disk full")}
	good := &stubSink{name: "good"}

	err := NewFanout(time.Second, m, bad, good).Write(context.Background(), sampleReport())
	assert.ErrorContains(t, err, "sink bad: disk full")
	assert.Equal(t, 1, bad.calls)
	assert.Equal(t, 1, good.calls)

	require.NoError(t, NewFanout(0, nil, good).Write(context.Background(), sampleReport()))
	assert.Equal(t, 2, good.calls)
}
