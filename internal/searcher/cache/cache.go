package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/searcher/ranker"
	pkgredis "github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/resilience"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "rageval:rank:"

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// RankCache memoises ranked results per (index fingerprint, BM25 params,
// query, topK). Failures of the backing store degrade to cache misses.
type RankCache struct {
	store     Store
	namespace string
	ttl       time.Duration
	group     singleflight.Group
	breaker   *resilience.CircuitBreaker
	logger    *slog.Logger
	hits      atomic.Int64
	misses    atomic.Int64
}

type Option func(*RankCache)

// WithBreaker routes every store call through cb, so an unreachable store is
// skipped instead of being retried on each lookup.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *RankCache) {
		c.breaker = cb
	}
}

// New creates a cache whose keys are scoped to namespace, normally the
// fingerprint of the index being ranked.
func New(store Store, namespace string, ttl time.Duration, opts ...Option) *RankCache {
	c := &RankCache{
		store:     store,
		namespace: namespace,
		ttl:       ttl,
		logger:    slog.Default().With("component", "rank-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get looks up the ranking of query scored with params p.
func (c *RankCache) Get(ctx context.Context, query string, topK int, p index.Params) ([]ranker.ScoredDoc, bool) {
	key := c.buildKey(query, topK, p)
	var (
		data string
		miss bool
	)
	err := c.guard(func() error {
		var err error
		data, err = c.store.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			miss = true
			return nil
		}
		return err
	})
	if err != nil || miss {
		if err != nil {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var result []ranker.ScoredDoc
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "query", query, "key", key)
	return result, true
}

func (c *RankCache) Set(ctx context.Context, query string, topK int, p index.Params, result []ranker.ScoredDoc) {
	key := c.buildKey(query, topK, p)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.guard(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached ranking or computes, stores and returns it.
// Concurrent misses for the same key share one computation. p must be the
// params computeFn ranks with. The boolean
// reports a cache hit.
func (c *RankCache) GetOrCompute(
	ctx context.Context,
	query string,
	topK int,
	p index.Params,
	computeFn func() ([]ranker.ScoredDoc, error),
) ([]ranker.ScoredDoc, bool, error) {
	if result, ok := c.Get(ctx, query, topK, p); ok {
		return result, true, nil
	}
	key := c.buildKey(query, topK, p)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, query, topK, p, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]ranker.ScoredDoc), false, nil
}

// Invalidate drops every entry of this cache's namespace.
func (c *RankCache) Invalidate(ctx context.Context) error {
	pattern := keyPrefix + c.namespace + ":*"
	deleted, err := c.store.FlushByPattern(ctx, pattern)
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *RankCache) guard(fn func() error) error {
	if c.breaker == nil {
		return fn()
	}
	return c.breaker.Execute(fn)
}

func (c *RankCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// buildKey folds the BM25 constants into the key: one index ranked under
// different k1/b yields different scores.
func (c *RankCache) buildKey(query string, topK int, p index.Params) string {
	raw := fmt.Sprintf("%s:k=%d:k1=%g:b=%g", normalizeQuery(query), topK, p.K1, p.B)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%s:%x", keyPrefix, c.namespace, hash[:16])
}

// normalizeQuery reduces a query to its sorted distinct terms, the only part
// of the text that influences ranking.
func normalizeQuery(query string) string {
	set := tokenizer.TermSet(query)
	terms := make([]string, 0, len(set))
	for t := range set {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return strings.Join(terms, ",")
}
