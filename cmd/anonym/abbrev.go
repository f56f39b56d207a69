package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/anonym/pkg/anonym/autotune/abbrev"
	"github.com/cognicore/anonym/pkg/anonym/ingest"
	"github.com/cognicore/anonym/pkg/anonym/lexicon"
)

type abbrevOptions struct {
	input   string
	output  string
	minFreq int64
}

func newAbbrevCommand(a *app) *cobra.Command {
	opts := &abbrevOptions{}

	cmd := &cobra.Command{
		Use:   "abbrev",
		Short: "Build the abbreviation table from the descriptions of an export",
		Long: "Counts tokens of two to four capital letters that are neither a surname\n" +
			"particle nor a salutation and writes those reaching --min-freq as\n" +
			"token<TAB>frequency, most frequent first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("min-freq") {
				opts.minFreq = a.cfg.Lexicons.MinAbbreviationFreq
			}
			return a.abbrev(opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.input, "input", "i", "-", "input TSV file, - for stdin")
	f.StringVarP(&opts.output, "output", "o", "-", "output table, - for stdout")
	f.Int64Var(&opts.minFreq, "min-freq", lexicon.DefaultMinAbbreviationFreq, "minimum frequency")
	return cmd
}

func (a *app) abbrev(opts *abbrevOptions) error {
	prefixes, err := a.prefixes()
	if err != nil {
		return err
	}

	in, err := openInput(opts.input)
	if err != nil {
		return err
	}
	defer in.Close()

	corpus, err := ingest.ReadCorpus(in, ingest.ReadOptions{
		MinColumns: a.cfg.Detection.MinColumns,
		MaxRows:    a.cfg.Detection.MaxRows,
	})
	if err != nil {
		return err
	}

	tok := ingest.NewTokenizer()
	counter := abbrev.NewCounter(prefixes)
	for _, d := range corpus.Docs {
		counter.Add(tok.Tokenize(d.Field(a.cfg.Detection.DescriptionColumn)))
	}
	cands := counter.Candidates(opts.minFreq)

	out, err := createOutput(opts.output)
	if err != nil {
		return err
	}
	defer out.Close()
	if err := abbrev.WriteTable(out, cands); err != nil {
		return err
	}

	a.log.Info("abbreviation table written",
		zap.Int("rows", len(corpus.Docs)),
		zap.Int("abbreviations", len(cands)),
		zap.Int64("min_freq", opts.minFreq))
	return nil
}

// prefixes collects surname particles from the defaults, the configured
// extra prefixes and, when present, the last-name lexicon.
func (a *app) prefixes() (*lexicon.Lexicons, error) {
	b := lexicon.NewBuilder()
	for _, p := range a.cfg.Lexicons.ExtraPrefixes {
		b.AddPrefix(p)
	}

	path := a.cfg.Lexicons.LastNames
	if path == "" {
		return b.Build(), nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		a.log.Warn("last-name lexicon not found, using default prefixes only", zap.String("path", path))
		return b.Build(), nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := b.ReadLastNamesXML(f); err != nil {
		return nil, fmt.Errorf("load last names: %w", err)
	}
	return b.Build(), nil
}
