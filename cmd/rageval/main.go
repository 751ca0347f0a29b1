// Package main provides the rageval CLI: BM25 retrieval over a document
// corpus and scoring of the derived answers against expected keywords and a
// gold grounding context.
//
// # Basic Usage
//
// Evaluate a question set and write the detailed report:
//
//	rageval run --corpus data/corpus --questions data/eval_questions.json
//
// Inspect the ranking for a single query:
//
//	rageval search "What are the components of a RAG pipeline?" -k 3
//
// Build an index snapshot and serve the HTTP API:
//
//	rageval index --out data/corpus.rgx
//	rageval serve -c rageval.yaml
//
// Every setting can also come from a YAML file (-c) and RAG_* environment
// variables.
package main

import (
	"fmt"
	"os"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
