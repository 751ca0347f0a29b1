package index

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/errors"
)

// CorpusIndex is an immutable inverted index over a fixed document set. All
// methods are safe for concurrent use because nothing mutates it after Build.
type CorpusIndex struct {
	docs        []Document
	byID        map[string]int
	postings    map[string]PostingList
	totalTokens int64
	params      Params
	fingerprint string
}

type Option func(*CorpusIndex)

// WithParams overrides the BM25 constants stored with the index.
func WithParams(p Params) Option {
	return func(c *CorpusIndex) {
		c.params = p
	}
}

// Build tokenizes every source in order and accumulates term and document
// frequencies. It fails with *errors.DuplicateDocumentError when two sources
// share an identifier. An empty source set yields an empty index.
func Build(sources []Source, opts ...Option) (*CorpusIndex, error) {
	c := newCorpusIndex(len(sources), opts)
	for _, src := range sources {
		if _, exists := c.byID[src.ID]; exists {
			return nil, &apperrors.DuplicateDocumentError{DocID: src.ID}
		}
		tokens := tokenizer.Tokenize(src.Text)
		c.addDocument(Document{
			ID:     src.ID,
			Text:   src.Text,
			Tokens: tokens,
			Length: len(tokens),
		})
	}
	c.finish()
	return c, nil
}

// Restore rebuilds an index from previously persisted documents and term
// entries, verifying that the postings agree with the document table.
func Restore(docs []Document, entries []TermEntry, params Params) (*CorpusIndex, error) {
	c := newCorpusIndex(len(docs), []Option{WithParams(params)})
	for _, d := range docs {
		if _, exists := c.byID[d.ID]; exists {
			return nil, &apperrors.DuplicateDocumentError{DocID: d.ID}
		}
		c.byID[d.ID] = len(c.docs)
		d.Tokens = tokenizer.Tokenize(d.Text)
		if len(d.Tokens) != d.Length {
			return nil, fmt.Errorf("%w: document %q has length %d, text tokenizes to %d",
				apperrors.ErrCorruptSnapshot, d.ID, d.Length, len(d.Tokens))
		}
		c.docs = append(c.docs, d)
		c.totalTokens += int64(d.Length)
	}
	sums := make(map[string]int, len(docs))
	for _, entry := range entries {
		for _, p := range entry.Postings {
			if _, ok := c.byID[p.DocID]; !ok {
				return nil, fmt.Errorf("%w: term %q references unknown document %q",
					apperrors.ErrCorruptSnapshot, entry.Term, p.DocID)
			}
			if p.Frequency <= 0 {
				return nil, fmt.Errorf("%w: term %q has non-positive frequency in %q",
					apperrors.ErrCorruptSnapshot, entry.Term, p.DocID)
			}
			sums[p.DocID] += p.Frequency
		}
		postings := make(PostingList, len(entry.Postings))
		copy(postings, entry.Postings)
		sortPostings(postings)
		c.postings[entry.Term] = postings
	}
	for _, d := range c.docs {
		if sums[d.ID] != d.Length {
			return nil, fmt.Errorf("%w: postings for %q sum to %d, want %d",
				apperrors.ErrCorruptSnapshot, d.ID, sums[d.ID], d.Length)
		}
	}
	c.fingerprint = c.computeFingerprint()
	return c, nil
}

func newCorpusIndex(capacity int, opts []Option) *CorpusIndex {
	c := &CorpusIndex{
		docs:     make([]Document, 0, capacity),
		byID:     make(map[string]int, capacity),
		postings: make(map[string]PostingList),
		params:   DefaultParams(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CorpusIndex) addDocument(doc Document) {
	termFreq := make(map[string]int)
	for _, term := range doc.Tokens {
		termFreq[term]++
	}
	for term, freq := range termFreq {
		c.postings[term] = append(c.postings[term], Posting{
			DocID:     doc.ID,
			Frequency: freq,
		})
	}
	c.byID[doc.ID] = len(c.docs)
	c.docs = append(c.docs, doc)
	c.totalTokens += int64(doc.Length)
}

func (c *CorpusIndex) finish() {
	for _, postings := range c.postings {
		sortPostings(postings)
	}
	c.fingerprint = c.computeFingerprint()
}

// DocCount returns N, the number of indexed documents.
func (c *CorpusIndex) DocCount() int {
	return len(c.docs)
}

// AvgDocLength returns the mean token count, or 0 for an empty corpus.
func (c *CorpusIndex) AvgDocLength() float64 {
	if len(c.docs) == 0 {
		return 0
	}
	return float64(c.totalTokens) / float64(len(c.docs))
}

func (c *CorpusIndex) TotalTokens() int64 {
	return c.totalTokens
}

func (c *CorpusIndex) Params() Params {
	return c.params
}

// Documents returns the indexed documents in build order. The slice is a
// copy; the documents themselves must be treated as read-only.
func (c *CorpusIndex) Documents() []Document {
	out := make([]Document, len(c.docs))
	copy(out, c.docs)
	return out
}

func (c *CorpusIndex) Document(docID string) (Document, bool) {
	i, ok := c.byID[docID]
	if !ok {
		return Document{}, false
	}
	return c.docs[i], true
}

// Postings returns the posting list for an already-normalised term, sorted by
// document identifier. Callers must not modify it.
func (c *CorpusIndex) Postings(term string) PostingList {
	return c.postings[term]
}

// DocFreq returns the number of documents containing term at least once.
func (c *CorpusIndex) DocFreq(term string) int {
	return len(c.postings[term])
}

// TermFrequency returns f(t,d).
func (c *CorpusIndex) TermFrequency(term, docID string) int {
	postings := c.postings[term]
	i := sort.Search(len(postings), func(i int) bool {
		return postings[i].DocID >= docID
	})
	if i < len(postings) && postings[i].DocID == docID {
		return postings[i].Frequency
	}
	return 0
}

// Terms returns the number of distinct terms.
func (c *CorpusIndex) Terms() int {
	return len(c.postings)
}

// Snapshot returns every term entry ordered by term.
func (c *CorpusIndex) Snapshot() []TermEntry {
	entries := make([]TermEntry, 0, len(c.postings))
	for term, postings := range c.postings {
		cp := make(PostingList, len(postings))
		copy(cp, postings)
		entries = append(entries, TermEntry{
			Term:     term,
			Postings: cp,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

// Matches reports whether the index holds exactly sources, in order and with
// identical text. A snapshot that no longer matches its corpus is stale.
func (c *CorpusIndex) Matches(sources []Source) bool {
	if len(sources) != len(c.docs) {
		return false
	}
	for i, src := range sources {
		if c.docs[i].ID != src.ID || c.docs[i].Text != src.Text {
			return false
		}
	}
	return true
}

// Fingerprint identifies the indexed content and BM25 parameters. Two indexes
// built from the same sources with the same parameters share a fingerprint.
func (c *CorpusIndex) Fingerprint() string {
	return c.fingerprint
}

func (c *CorpusIndex) computeFingerprint() string {
	h := sha256.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(c.params.K1))
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(c.params.B))
	h.Write(buf[:])
	for _, d := range c.docs {
		h.Write([]byte(d.ID))
		h.Write([]byte{0})
		h.Write([]byte(d.Text))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil)[:16])
}

func sortPostings(postings PostingList) {
	sort.Slice(postings, func(i, j int) bool {
		return postings[i].DocID < postings[j].DocID
	})
}
