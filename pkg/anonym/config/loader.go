package config

import (
	"fmt"

	"github.com/cognicore/anonym/pkg/anonym/ingest"
	"github.com/cognicore/anonym/pkg/anonym/lexicon"
	"github.com/cognicore/anonym/pkg/anonym/redact"
	"github.com/cognicore/anonym/pkg/anonym/score"
)

// Loader loads the lexicon files of a Config and constructs components
type Loader struct {
	Config *Config
}

// Components holds everything a run needs besides the input
type Components struct {
	Lexicons  *lexicon.Lexicons
	Report    lexicon.Report
	Tokenizer *ingest.Tokenizer
	Extractor *ingest.Extractor
	Scorer    *score.Scorer
	Redactor  *redact.Redactor
}

// Load reads all lexicon files and returns initialized components
func (l *Loader) Load() (*Components, error) {
	cfg := l.Config
	if cfg == nil {
		cfg = Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	lex, rep, err := lexicon.Load(cfg.Sources())
	if err != nil {
		return nil, fmt.Errorf("load lexicons: %w", err)
	}

	return &Components{
		Lexicons:  lex,
		Report:    rep,
		Tokenizer: ingest.NewTokenizer(),
		Extractor: ingest.NewExtractor(cfg.Detection.MaxNGram),
		Scorer:    score.New(lex),
		Redactor:  redact.New(cfg.Detection.Placeholder),
	}, nil
}

// Sources maps the lexicon section onto lexicon.Sources.
func (c *Config) Sources() lexicon.Sources {
	return lexicon.Sources{
		FirstNames:          c.Lexicons.FirstNames,
		LastNames:           c.Lexicons.LastNames,
		Abbreviations:       c.Lexicons.Abbreviations,
		Vocabulary:          c.Lexicons.Vocabulary,
		VocabularyEncoding:  c.Lexicons.VocabularyEncoding,
		ExtraPrefixes:       c.Lexicons.ExtraPrefixes,
		MinAbbreviationFreq: c.Lexicons.MinAbbreviationFreq,
	}
}
