package report

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/evaluation"
)

// JSONFile writes the records of a run as an indented JSON array. The file
// is replaced atomically.
type JSONFile struct {
	Path string
}

func NewJSONFile(path string) *JSONFile {
	return &JSONFile{Path: path}
}

func (j *JSONFile) Name() string {
	return "json-file"
}

func (j *JSONFile) Write(_ context.Context, r *evaluation.Report) error {
	if dir := filepath.Dir(j.Path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	tmpPath := j.Path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp output file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	w := bufio.NewWriter(f)
	if err := EncodeRecords(w, r.Results); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing output file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing output file: %w", err)
	}
	if err := os.Rename(tmpPath, j.Path); err != nil {
		return fmt.Errorf("renaming output file: %w", err)
	}
	return nil
}

// EncodeRecords writes records as a two-space indented JSON array without
// HTML escaping. A nil slice is written as [].
func EncodeRecords(w io.Writer, records []evaluation.Record) error {
	if records == nil {
		records = []evaluation.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encoding records: %w", err)
	}
	return nil
}
