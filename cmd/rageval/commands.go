package main

import (
	"github.com/spf13/cobra"
)

// runFlags are per-invocation overrides of the loaded configuration.
type runFlags struct {
	corpus    string
	snapshot  string
	questions string
	output    string
	topK      int
	alpha     float64
	workers   int
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "rageval",
		Short:         "Evaluate retrieval-augmented answers with BM25 and keyword/overlap scoring",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to YAML configuration file (defaults and RAG_* env vars when empty)")
	cmd.AddCommand(
		buildRunCmd(a),
		buildSearchCmd(a),
		buildIndexCmd(a),
		buildServeCmd(a),
	)
	return cmd
}

func addCorpusFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().StringVar(&f.corpus, "corpus", "", "Corpus directory (one document per file)")
	cmd.Flags().StringVar(&f.snapshot, "snapshot", "", "Index snapshot to load instead of tokenizing the corpus, if it exists")
	cmd.Flags().IntVarP(&f.topK, "top-k", "k", 0, "Number of documents to retrieve")
}

func buildRunCmd(a *app) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate a question set and write the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.override(cmd, f); err != nil {
				return err
			}
			return runEval(cmd, a)
		},
	}
	addCorpusFlags(cmd, &f)
	cmd.Flags().StringVar(&f.questions, "questions", "", "Question set (JSON, or YAML for .yaml/.yml)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Path of the detailed JSON results")
	cmd.Flags().Float64Var(&f.alpha, "alpha", 0, "Weight of keyword coverage in the combined score")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Questions evaluated concurrently")
	return cmd
}

func buildSearchCmd(a *app) *cobra.Command {
	var (
		f      runFlags
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Rank the corpus against a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.override(cmd, f); err != nil {
				return err
			}
			return runSearch(cmd, a, args[0], asJSON)
		},
	}
	addCorpusFlags(cmd, &f)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	return cmd
}

func buildIndexCmd(a *app) *cobra.Command {
	var (
		f   runFlags
		out string
	)
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Tokenize the corpus and write an index snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.override(cmd, f); err != nil {
				return err
			}
			return runIndex(cmd, a, out)
		},
	}
	cmd.Flags().StringVar(&f.corpus, "corpus", "", "Corpus directory (one document per file)")
	cmd.Flags().StringVar(&out, "out", "", "Snapshot path (defaults to corpus.snapshotPath)")
	return cmd
}

func buildServeCmd(a *app) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve retrieval and scoring over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.override(cmd, f); err != nil {
				return err
			}
			return runServe(cmd, a)
		},
	}
	addCorpusFlags(cmd, &f)
	return cmd
}
