package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/anonym/pkg/anonym"
	"github.com/cognicore/anonym/pkg/anonym/config"
	"github.com/cognicore/anonym/pkg/anonym/ingest"
	"github.com/cognicore/anonym/pkg/anonym/report"
	"github.com/cognicore/anonym/pkg/anonym/store"
	"github.com/cognicore/anonym/pkg/anonym/store/sqlite"
)

type runOptions struct {
	input     string
	output    string
	cachePath string
	noCache   bool
	maxRows   int
	workers   int
}

func newRunCommand(a *app) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Anonymize a tab-separated transaction export",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("cache") {
				a.cfg.Cache.Path = opts.cachePath
			}
			if opts.noCache {
				a.cfg.Cache.Path = ""
			}
			if cmd.Flags().Changed("max-rows") {
				a.cfg.Detection.MaxRows = opts.maxRows
			}
			if cmd.Flags().Changed("workers") {
				a.cfg.Detection.Workers = opts.workers
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			return a.run(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.input, "input", "i", "-", "input TSV file, - for stdin")
	f.StringVarP(&opts.output, "output", "o", "-", "output TSV file, - for stdout")
	f.StringVar(&opts.cachePath, "cache", "", "sqlite corpus cache (overrides cache.path)")
	f.BoolVar(&opts.noCache, "no-cache", false, "disable the corpus cache")
	f.IntVar(&opts.maxRows, "max-rows", 0, "maximum data rows to read, 0 for all")
	f.IntVar(&opts.workers, "workers", 0, "worker goroutines, 0 for GOMAXPROCS")
	return cmd
}

func (a *app) run(cmd *cobra.Command, opts *runOptions) error {
	ctx := cmd.Context()
	cfg := a.cfg

	comp, err := (&config.Loader{Config: cfg}).Load()
	if err != nil {
		return err
	}
	st := comp.Lexicons.Stats()
	a.log.Info("lexicons loaded",
		zap.Int("first_names", st.FirstNames),
		zap.Int("last_names", st.LastNames),
		zap.Int("prefixes", st.Prefixes),
		zap.Int("abbreviations", st.Abbreviations),
		zap.Int("vocabulary", st.Vocabulary),
		zap.Int("skipped_rows", comp.Report.FirstNames.Skipped+comp.Report.LastNames.Skipped+
			comp.Report.Abbreviations.Skipped+comp.Report.Vocabulary.Skipped),
	)

	var cache store.Store
	if cfg.Cache.Path != "" {
		cache, err = sqlite.OpenSQLite(ctx, cfg.Cache.Path)
		if err != nil {
			return fmt.Errorf("open cache %s: %w", cfg.Cache.Path, err)
		}
	}

	engine, err := anonym.New(anonym.Options{
		Lexicons:          comp.Lexicons,
		Tokenizer:         comp.Tokenizer,
		Extractor:         comp.Extractor,
		Scorer:            comp.Scorer,
		Redactor:          comp.Redactor,
		Store:             cache,
		Logger:            a.log,
		Workers:           cfg.Detection.Workers,
		DescriptionColumn: &cfg.Detection.DescriptionColumn,
		ProgressEvery:     cfg.Detection.ProgressEvery,
	})
	if err != nil {
		if cache != nil {
			cache.Close()
		}
		return err
	}
	defer engine.Close()

	in, err := openInput(opts.input)
	if err != nil {
		return err
	}
	defer in.Close()

	corpus, err := ingest.ReadCorpus(in, ingest.ReadOptions{
		MinColumns: cfg.Detection.MinColumns,
		MaxRows:    cfg.Detection.MaxRows,
	})
	if err != nil {
		return err
	}
	for _, id := range corpus.Rejected {
		a.log.Warn("row rejected", zap.Int64("row", id))
	}

	rep, err := engine.Run(ctx, corpus)
	if err != nil {
		return err
	}

	out, err := createOutput(opts.output)
	if err != nil {
		return err
	}
	defer out.Close()

	w := report.NewWriter(out)
	if err := w.WriteHeader(); err != nil {
		return err
	}
	for _, r := range rep.Results {
		if err := w.WriteResult(r.DocID, r.Redacted, r.Spans); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	a.log.Info("summary", zap.String("run", rep.ID), zap.Stringer("result", rep.Summary))
	return nil
}
