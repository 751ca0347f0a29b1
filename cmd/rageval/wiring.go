package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/evaluation"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/ingestion/loader"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/report"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/searcher/retriever"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

const sinkTimeout = 30 * time.Second

// app carries the state shared by every subcommand of one invocation.
type app struct {
	configPath string
	cfg        *config.Config
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	closers    []func() error
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	a.cfg = cfg
	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.New(a.registry)
	return nil
}

// override applies flags the user set explicitly on top of the loaded
// configuration and re-validates the result.
func (a *app) override(cmd *cobra.Command, f runFlags) error {
	flags := cmd.Flags()
	changed := func(name string) bool {
		fl := flags.Lookup(name)
		return fl != nil && fl.Changed
	}
	if changed("corpus") {
		a.cfg.Corpus.Dir = f.corpus
	}
	if changed("snapshot") {
		a.cfg.Corpus.SnapshotPath = f.snapshot
	}
	if changed("questions") {
		a.cfg.Questions.Path = f.questions
	}
	if changed("output") {
		a.cfg.Output.Path = f.output
	}
	if changed("top-k") {
		a.cfg.Ranking.TopK = f.topK
	}
	if changed("alpha") {
		a.cfg.Scoring.Alpha = f.alpha
	}
	if changed("workers") {
		a.cfg.Evaluation.Workers = f.workers
	}
	return a.cfg.Validate()
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("shutdown step failed", "error", err)
		}
	}
	a.closers = nil
}

func (a *app) params() index.Params {
	return index.Params{K1: a.cfg.Ranking.K1, B: a.cfg.Ranking.B}
}

// loadIndex resolves the index and publishes its size gauges.
func (a *app) loadIndex() (*index.CorpusIndex, error) {
	idx, err := a.resolveIndex()
	if err != nil {
		return nil, err
	}
	a.observeCorpus(idx)
	return idx, nil
}

// resolveIndex prefers the configured snapshot while it still holds the
// current contents of the corpus directory, and rebuilds otherwise. With no
// corpus directory on disk the snapshot is used as is.
func (a *app) resolveIndex() (*index.CorpusIndex, error) {
	log := logger.WithComponent("rageval")
	path := a.cfg.Corpus.SnapshotPath
	if path == "" {
		return a.buildIndex()
	}
	snap, err := segment.Load(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Info("index snapshot not found, building from corpus", "path", path)
		return a.buildIndex()
	case err != nil:
		return nil, fmt.Errorf("loading index snapshot: %w", err)
	}

	sources, err := loader.LoadCorpus(a.cfg.Corpus.Dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Info("corpus directory absent, using snapshot as is",
			"path", path,
			"dir", a.cfg.Corpus.Dir,
			"documents", snap.DocCount(),
		)
		return snap, nil
	case err != nil:
		return nil, err
	}
	if !snap.Matches(sources) {
		log.Warn("index snapshot is stale, rebuilding from corpus (rerun index to refresh it)",
			"path", path,
			"dir", a.cfg.Corpus.Dir,
		)
		return a.indexSources(sources)
	}
	log.Info("index snapshot loaded",
		"path", path,
		"documents", snap.DocCount(),
		"fingerprint", snap.Fingerprint(),
	)
	return snap, nil
}

func (a *app) buildIndex() (*index.CorpusIndex, error) {
	sources, err := loader.LoadCorpus(a.cfg.Corpus.Dir)
	if err != nil {
		return nil, err
	}
	return a.indexSources(sources)
}

func (a *app) indexSources(sources []index.Source) (*index.CorpusIndex, error) {
	idx, err := index.Build(sources, index.WithParams(a.params()))
	if err != nil {
		return nil, fmt.Errorf("building index: %w", err)
	}
	logger.WithComponent("rageval").Info("index built",
		"documents", idx.DocCount(),
		"terms", idx.Terms(),
		"avg_doc_length", idx.AvgDocLength(),
	)
	return idx, nil
}

func (a *app) observeCorpus(idx *index.CorpusIndex) {
	a.metrics.CorpusDocuments.Set(float64(idx.DocCount()))
	a.metrics.CorpusTerms.Set(float64(idx.Terms()))
}

// rankCache connects to Redis when enabled. A connection failure disables
// caching for this process instead of failing the command.
func (a *app) rankCache(idx *index.CorpusIndex) (*cache.RankCache, *pkgredis.Client) {
	if !a.cfg.Redis.Enabled {
		return nil, nil
	}
	client, err := pkgredis.NewClient(a.cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, retrieval cache disabled", "addr", a.cfg.Redis.Addr, "error", err)
		return nil, nil
	}
	a.onClose(client.Close)

	breaker := resilience.NewCircuitBreaker("redis", resilience.CircuitBreakerConfig{
		OnStateChange: func(name string, to resilience.State) {
			a.metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	rc := cache.New(client, idx.Fingerprint(), a.cfg.Redis.CacheTTL, cache.WithBreaker(breaker))
	slog.Info("retrieval cache enabled", "addr", a.cfg.Redis.Addr, "ttl", a.cfg.Redis.CacheTTL)
	return rc, client
}

func (a *app) retriever(idx *index.CorpusIndex, rc *cache.RankCache) *retriever.BM25 {
	opts := []retriever.Option{retriever.WithMetrics(a.metrics)}
	if rc != nil {
		opts = append(opts, retriever.WithCache(rc))
	}
	return retriever.New(idx, ranker.New(idx, ranker.WithParams(a.params())), opts...)
}

func (a *app) evaluator(idx *index.CorpusIndex, r retriever.Retriever) *evaluation.Evaluator {
	return evaluation.New(idx, r, evaluation.Options{
		TopK:           a.cfg.Ranking.TopK,
		Alpha:          a.cfg.Scoring.Alpha,
		MaxAnswerChars: a.cfg.Answer.MaxChars,
		Workers:        a.cfg.Evaluation.Workers,
		Metrics:        a.metrics,
	})
}

func (a *app) postgres(ctx context.Context) (*postgres.Client, error) {
	if !a.cfg.Postgres.Enabled {
		return nil, nil
	}
	client, err := postgres.New(ctx, a.cfg.Postgres)
	if err != nil {
		return nil, err
	}
	a.onClose(client.Close)
	return client, nil
}

// sinks assembles the report destinations: the JSON file and the console
// summary always, Kafka and PostgreSQL when enabled.
func (a *app) sinks(ctx context.Context, cmd *cobra.Command) (*report.Fanout, error) {
	sinks := []report.Sink{
		report.NewJSONFile(a.cfg.Output.Path),
		report.NewSummary(cmd.OutOrStdout(), a.cfg.Output.Path),
	}
	retry := resilience.RetryConfig{}

	if a.cfg.Kafka.Enabled {
		producer := kafka.NewProducer(a.cfg.Kafka)
		a.onClose(producer.Close)
		sinks = append(sinks, report.NewKafka(producer, retry))
	}

	pg, err := a.postgres(ctx)
	if err != nil {
		return nil, err
	}
	if pg != nil {
		store := report.NewPostgres(pg, retry)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		sinks = append(sinks, store)
	}
	return report.NewFanout(sinkTimeout, a.metrics, sinks...), nil
}

// startMetrics serves /metrics when enabled and registers its shutdown.
func (a *app) startMetrics() {
	if !a.cfg.Metrics.Enabled {
		return
	}
	shutdown := metrics.StartServer(a.cfg.Metrics.Port, a.registry)
	a.onClose(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdown(ctx)
	})
}
