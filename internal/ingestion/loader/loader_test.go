package loader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadCorpus(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "doc2.txt"), "second\n")
	writeFile(t, filepath.Join(dir, "doc1.txt"), "  first document  ")
	writeFile(t, filepath.Join(dir, ".hidden"), "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	sources, err := LoadCorpus(dir)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "doc1.txt", sources[0].ID)
	assert.Equal(t, "  first document  ", sources[0].Text)
	assert.Equal(t, "doc2.txt", sources[1].ID)
	assert.Equal(t, "second\n", sources[1].Text)
}

func TestLoadCorpusMissingDir(t *testing.T) {
	_, err := LoadCorpus(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestLoadQuestionsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.json")
	writeFile(t, path, `[
  {"id": "q1", "question": "What are the components of a RAG pipeline?",
   "expected_keywords": ["retriever", "generator"], "must_be_grounded_in": ["doc1.txt"]},
  {"id": "q2", "question": "What is BM25?"}
]`)
	qs, err := LoadQuestions(path)
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, []string{"retriever", "generator"}, qs[0].ExpectedKeywords)
	assert.Equal(t, []string{"doc1.txt"}, qs[0].MustBeGroundedIn)
	assert.NotNil(t, qs[1].ExpectedKeywords)
	assert.Empty(t, qs[1].ExpectedKeywords)
	assert.NotNil(t, qs[1].MustBeGroundedIn)
}

func TestLoadQuestionsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.yaml")
	writeFile(t, path, `
- id: q1
  question: What is RAG?
  expected_keywords: [retrieval]
`)
	qs, err := LoadQuestions(path)
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "What is RAG?", qs[0].Question)
	assert.Equal(t, []string{"retrieval"}, qs[0].ExpectedKeywords)
}

func TestLoadQuestionsMissingField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.json")
	writeFile(t, path, `[{"id": "q1"}]`)
	_, err := LoadQuestions(path)
	require.Error(t, err)

	var mfe *apperrors.MissingFieldError
	require.True(t, errors.As(err, &mfe))
	assert.Equal(t, "question", mfe.Field)
	assert.Equal(t, 0, mfe.Index)
}

func TestParseQuestionsMalformed(t *testing.T) {
	_, err := ParseQuestions([]byte(`{"not": "a list"}`), ".json")
	assert.Error(t, err)
}
