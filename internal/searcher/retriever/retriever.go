// Package retriever turns a query into ranked contexts: the identifier, text
// and BM25 score of each of the best matching corpus documents.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/tracing"
)

// Context is one retrieved document.
type Context struct {
	DocID string  `json:"doc_id"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Retriever returns at most topK contexts for query, best first.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]Context, error)
}

// BM25 retrieves from an in-memory CorpusIndex, optionally through a
// RankCache.
type BM25 struct {
	idx     *index.CorpusIndex
	ranker  *ranker.Ranker
	cache   *cache.RankCache
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*BM25)

func WithCache(c *cache.RankCache) Option {
	return func(b *BM25) {
		b.cache = c
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *BM25) {
		b.metrics = m
	}
}

func New(idx *index.CorpusIndex, rk *ranker.Ranker, opts ...Option) *BM25 {
	b := &BM25{
		idx:    idx,
		ranker: rk,
		logger: slog.Default().With("component", "retriever"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *BM25) Retrieve(ctx context.Context, query string, topK int) ([]Context, error) {
	ctx, span := tracing.StartChildSpan(ctx, "retrieve")
	defer span.End()
	start := time.Now()

	var (
		ranked []ranker.ScoredDoc
		status = "disabled"
	)
	if b.cache != nil {
		var (
			hit bool
			err error
		)
		ranked, hit, err = b.cache.GetOrCompute(ctx, query, topK, b.ranker.Params(), func() ([]ranker.ScoredDoc, error) {
			return b.ranker.Rank(query, topK), nil
		})
		if err != nil {
			b.observe("error", status, start)
			return nil, fmt.Errorf("ranking query: %w", err)
		}
		status = "miss"
		if hit {
			status = "hit"
		}
		if b.metrics != nil {
			if hit {
				b.metrics.CacheHitsTotal.Inc()
			} else {
				b.metrics.CacheMissesTotal.Inc()
			}
		}
	} else {
		ranked = b.ranker.Rank(query, topK)
	}

	contexts := make([]Context, 0, len(ranked))
	for _, sd := range ranked {
		doc, ok := b.idx.Document(sd.DocID)
		if !ok {
			// Stale cache entry from a different corpus with the same namespace.
			b.logger.Warn("ranked document missing from index", "doc_id", sd.DocID)
			continue
		}
		contexts = append(contexts, Context{DocID: sd.DocID, Text: doc.Text, Score: sd.Score})
	}

	outcome := status
	if len(contexts) == 0 {
		outcome = "empty"
	}
	b.observe(outcome, status, start)
	span.SetAttr("results", len(contexts))
	span.SetAttr("cache", status)
	b.logger.Debug("query retrieved",
		"query", query,
		"top_k", topK,
		"results", len(contexts),
		"cache", status,
	)
	return contexts, nil
}

func (b *BM25) observe(outcome, cacheStatus string, start time.Time) {
	if b.metrics == nil {
		return
	}
	b.metrics.RetrievalsTotal.WithLabelValues(outcome).Inc()
	b.metrics.RetrievalLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
}
