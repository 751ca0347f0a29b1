package retriever

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/redis"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildIndex(t *testing.T, sources []index.Source) *index.CorpusIndex {
	t.Helper()
	idx, err := index.Build(sources)
	require.NoError(t, err)
	return idx
}

var corpus = []index.Source{
	{ID: "doc1.txt", Text: "A RAG pipeline has a retriever and a generator."},
	{ID: "doc2.txt", Text: "Evaluation metrics: keyword coverage and context overlap."},
	{ID: "doc3.txt", Text: "Unrelated text about cooking pasta."},
}

func TestRetrieveReturnsTextAndScore(t *testing.T) {
	idx := buildIndex(t, corpus)
	r := New(idx, ranker.New(idx))

	got, err := r.Retrieve(context.Background(), "keyword coverage", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "doc2.txt", got[0].DocID)
	assert.Equal(t, corpus[1].Text, got[0].Text)
	assert.Greater(t, got[0].Score, 0.0)
	assert.Equal(t, 0.0, got[1].Score)
	assert.Equal(t, "doc1.txt", got[1].DocID)
	assert.Equal(t, "doc3.txt", got[2].DocID)
}

func TestRetrieveEmptyCorpus(t *testing.T) {
	idx := buildIndex(t, nil)
	r := New(idx, ranker.New(idx))
	got, err := r.Retrieve(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

type mapStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *mapStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", pkgredis.Nil
	}
	return v, nil
}

func (m *mapStore) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = string(value.([]byte))
	return nil
}

func (m *mapStore) FlushByPattern(context.Context, string) (int64, error) {
	return 0, nil
}

func TestRetrieveThroughCache(t *testing.T) {
	idx := buildIndex(t, corpus)
	rc := cache.New(&mapStore{data: map[string]string{}}, idx.Fingerprint(), time.Minute)
	m := metrics.New(prometheus.NewRegistry())
	r := New(idx, ranker.New(idx), WithCache(rc), WithMetrics(m))
	ctx := context.Background()

	first, err := r.Retrieve(ctx, "rag pipeline", 2)
	require.NoError(t, err)
	second, err := r.Retrieve(ctx, "pipeline RAG", 2)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	hits, misses := rc.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestCachedRankingsKeepTheirParams(t *testing.T) {
	idx := buildIndex(t, corpus)
	store := &mapStore{data: map[string]string{}}
	ctx := context.Background()
	tuned := index.Params{K1: 5, B: 1}

	tunedRanker := ranker.New(idx, ranker.WithParams(tuned))
	tunedRetriever := New(idx, tunedRanker, WithCache(cache.New(store, idx.Fingerprint(), time.Minute)))
	_, err := tunedRetriever.Retrieve(ctx, "retriever generator", 1)
	require.NoError(t, err)

	defaultRanker := ranker.New(idx)
	rc := cache.New(store, idx.Fingerprint(), time.Minute)
	got, err := New(idx, defaultRanker, WithCache(rc)).Retrieve(ctx, "retriever generator", 1)
	require.NoError(t, err)

	want := defaultRanker.Rank("retriever generator", 1)
	require.Len(t, got, 1)
	assert.Equal(t, want[0].Score, got[0].Score)
	assert.NotEqual(t, tunedRanker.Rank("retriever generator", 1)[0].Score, got[0].Score)
	hits, _ := rc.Stats()
	assert.Zero(t, hits)
}
