// Package loader reads corpus directories and question sets from disk.
package loader

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/ingestion/validator"
	"gopkg.in/yaml.v3"
)

// LoadCorpus returns one Source per regular file in dir, ordered by file
// name. The file name is the document identifier and the contents are the
// text verbatim. Sub-directories and dot-files are ignored.
func LoadCorpus(dir string) ([]index.Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading corpus directory %s: %w", dir, err)
	}
	sources := make([]index.Source, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading corpus document %s: %w", name, err)
		}
		sources = append(sources, index.Source{ID: name, Text: string(data)})
	}
	slog.Default().With("component", "loader").Info("corpus loaded",
		"dir", dir,
		"documents", len(sources),
	)
	return sources, nil
}

// LoadQuestions reads a question set. Files ending in .yaml or .yml are parsed
// as YAML, everything else as JSON. Records missing an id or question fail
// with *errors.MissingFieldError.
func LoadQuestions(path string) ([]ingestion.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading question set %s: %w", path, err)
	}
	questions, err := ParseQuestions(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("question set %s: %w", path, err)
	}
	return questions, nil
}

// ParseQuestions decodes and validates a question set. ext selects the format
// the same way LoadQuestions does.
func ParseQuestions(data []byte, ext string) ([]ingestion.Question, error) {
	var questions []ingestion.Question
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &questions); err != nil {
			return nil, fmt.Errorf("parsing yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &questions); err != nil {
			return nil, fmt.Errorf("parsing json: %w", err)
		}
	}
	for i := range questions {
		if questions[i].ExpectedKeywords == nil {
			questions[i].ExpectedKeywords = []string{}
		}
		if questions[i].MustBeGroundedIn == nil {
			questions[i].MustBeGroundedIn = []string{}
		}
	}
	if err := validator.ValidateSet(questions); err != nil {
		return nil, err
	}
	return questions, nil
}
