package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/evaluation/handler"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/ingestion/loader"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/middleware"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const maxServeTopK = 100

func runEval(cmd *cobra.Command, a *app) error {
	defer a.close()
	a.startMetrics()

	runID := uuid.NewString()
	ctx := logger.WithRunID(cmd.Context(), runID)
	log := logger.FromContext(ctx).With("component", "rageval")

	idx, err := a.loadIndex()
	if err != nil {
		return err
	}
	questions, err := loader.LoadQuestions(a.cfg.Questions.Path)
	if err != nil {
		return err
	}
	log.Info("starting evaluation",
		"questions", len(questions),
		"documents", idx.DocCount(),
		"top_k", a.cfg.Ranking.TopK,
		"alpha", a.cfg.Scoring.Alpha,
	)

	rc, _ := a.rankCache(idx)
	ev := a.evaluator(idx, a.retriever(idx, rc))
	rep, err := ev.Evaluate(ctx, questions)
	if err != nil {
		return err
	}

	sinks, err := a.sinks(ctx, cmd)
	if err != nil {
		return err
	}
	return sinks.Write(ctx, rep)
}

func runSearch(cmd *cobra.Command, a *app, query string, asJSON bool) error {
	defer a.close()

	idx, err := a.loadIndex()
	if err != nil {
		return err
	}
	rc, _ := a.rankCache(idx)
	results, err := a.retriever(idx, rc).Retrieve(cmd.Context(), query, a.cfg.Ranking.TopK)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	if len(results) == 0 {
		fmt.Fprintln(out, "no documents")
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(out, "%d. %s  score=%.4f\n", i+1, r.DocID, r.Score)
	}
	return nil
}

func runIndex(cmd *cobra.Command, a *app, out string) error {
	if out == "" {
		out = a.cfg.Corpus.SnapshotPath
	}
	if out == "" {
		return errors.New("snapshot path required: pass --out or set corpus.snapshotPath")
	}
	idx, err := a.buildIndex()
	if err != nil {
		return err
	}
	if err := segment.Write(out, idx); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "indexed %d documents (%d terms) into %s\n", idx.DocCount(), idx.Terms(), out)
	return nil
}

func runServe(cmd *cobra.Command, a *app) error {
	defer a.close()
	a.startMetrics()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	idx, err := a.loadIndex()
	if err != nil {
		return err
	}
	rc, redisClient := a.rankCache(idx)
	r := a.retriever(idx, rc)
	ev := a.evaluator(idx, r)

	pg, err := a.postgres(ctx)
	if err != nil {
		return err
	}

	checker := health.NewChecker()
	checker.Register("index", indexCheck(idx))
	if redisClient != nil {
		checker.Register("redis", health.PingCheck(redisClient.Ping, false))
	}
	if pg != nil {
		checker.Register("postgres", health.PingCheck(pg.Ping, false))
	}

	mux := http.NewServeMux()
	handler.New(r, ev, rc, maxServeTopK).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var h http.Handler = mux
	h = middleware.RequestID(h)
	h = middleware.Timeout(a.cfg.Server.WriteTimeout)(h)
	h = middleware.Metrics(a.metrics)(h)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout + 5*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("scoring service listening",
			"addr", server.Addr,
			"documents", idx.DocCount(),
			"cache", rc != nil,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down scoring service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func indexCheck(idx *index.CorpusIndex) health.Check {
	return func(ctx context.Context) health.ComponentHealth {
		if idx.DocCount() == 0 {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "corpus is empty"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d documents, fingerprint %s", idx.DocCount(), idx.Fingerprint()),
		}
	}
}
