package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/searcher/ranker"
	pkgredis "github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu      sync.Mutex
	data    map[string]string
	getErr  error
	gets    int
	setTTLs []time.Duration
}

var params = index.DefaultParams()

func newMemStore() *memStore {
	return &memStore{data: make(map[string]string)}
}

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return "", pkgredis.Nil
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = string(value.([]byte))
	m.setTTLs = append(m.setTTLs, ttl)
	return nil
}

func (m *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func TestGetOrComputeCachesResult(t *testing.T) {
	store := newMemStore()
	c := New(store, "fp1", time.Minute)
	ctx := context.Background()
	want := []ranker.ScoredDoc{{DocID: "doc1.txt", Score: 1.25}, {DocID: "doc2.txt", Score: 0}}

	calls := 0
	compute := func() ([]ranker.ScoredDoc, error) {
		calls++
		return want, nil
	}

	got, hit, err := c.GetOrCompute(ctx, "RAG pipeline?", 2, params, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, want, got)

	got, hit, err = c.GetOrCompute(ctx, "pipeline rag rag", 2, params, compute)
	require.NoError(t, err)
	assert.True(t, hit, "queries with the same distinct terms share a key")
	assert.Equal(t, want, got)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []time.Duration{time.Minute}, store.setTTLs)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestKeysScopedByTopKAndNamespace(t *testing.T) {
	store := newMemStore()
	a := New(store, "fp1", time.Minute)
	b := New(store, "fp2", time.Minute)
	assert.NotEqual(t, a.buildKey("rag", 1, params), a.buildKey("rag", 2, params))
	assert.NotEqual(t, a.buildKey("rag", 1, params), b.buildKey("rag", 1, params))
}

func TestKeysScopedByParams(t *testing.T) {
	c := New(newMemStore(), "fp1", time.Minute)
	tuned := index.Params{K1: 5, B: 1}
	assert.NotEqual(t, c.buildKey("rag", 1, params), c.buildKey("rag", 1, tuned))
	assert.NotEqual(t, c.buildKey("rag", 1, params), c.buildKey("rag", 1, index.Params{K1: params.K1, B: 0.5}))
	assert.Equal(t, c.buildKey("rag", 1, tuned), c.buildKey("RAG", 1, index.Params{K1: 5, B: 1}))
}

func TestRankingsUnderDifferentParamsDoNotCollide(t *testing.T) {
	c := New(newMemStore(), "fp1", time.Minute)
	ctx := context.Background()
	tuned := index.Params{K1: 5, B: 1}
	c.Set(ctx, "q", 1, tuned, []ranker.ScoredDoc{{DocID: "a", Score: 1.58}})

	_, ok := c.Get(ctx, "q", 1, params)
	assert.False(t, ok)
	got, ok := c.Get(ctx, "q", 1, tuned)
	require.True(t, ok)
	assert.Equal(t, 1.58, got[0].Score)
}

func TestStoreErrorDegradesToMiss(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("connection refused")
	c := New(store, "fp1", time.Minute)

	got, hit, err := c.GetOrCompute(context.Background(), "q", 1, params, func() ([]ranker.ScoredDoc, error) {
		return []ranker.ScoredDoc{{DocID: "a", Score: 1}}, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Len(t, got, 1)
}

func TestComputeErrorPropagates(t *testing.T) {
	c := New(newMemStore(), "fp1", time.Minute)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), "q", 1, params, func() ([]ranker.ScoredDoc, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	c := New(store, "fp1", time.Minute)
	other := New(store, "fp2", time.Minute)
	ctx := context.Background()
	c.Set(ctx, "q", 1, params, []ranker.ScoredDoc{{DocID: "a"}})
	other.Set(ctx, "q", 1, params, []ranker.ScoredDoc{{DocID: "b"}})

	require.NoError(t, c.Invalidate(ctx))
	_, ok := c.Get(ctx, "q", 1, params)
	assert.False(t, ok)
	_, ok = other.Get(ctx, "q", 1, params)
	assert.True(t, ok)
}

func TestBreakerSkipsFailingStore(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("connection refused")
	cb := resilience.NewCircuitBreaker("rank-cache", resilience.CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
	})
	c := New(store, "fp1", time.Minute, WithBreaker(cb))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, ok := c.Get(ctx, "q", 1, params)
		assert.False(t, ok)
	}
	assert.Equal(t, 2, store.gets)
	assert.Equal(t, resilience.StateOpen, cb.GetState())
}

func TestBreakerIgnoresPlainMisses(t *testing.T) {
	store := newMemStore()
	cb := resilience.NewCircuitBreaker("rank-cache", resilience.CircuitBreakerConfig{FailureThreshold: 1})
	c := New(store, "fp1", time.Minute, WithBreaker(cb))
	for i := 0; i < 3; i++ {
		_, ok := c.Get(context.Background(), "q", 1, params)
		assert.False(t, ok)
	}
	assert.Equal(t, resilience.StateClosed, cb.GetState())
	assert.Equal(t, 3, store.gets)
}
