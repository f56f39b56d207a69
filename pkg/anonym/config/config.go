package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/anonym/pkg/anonym/ingest"
	"github.com/cognicore/anonym/pkg/anonym/internalerr"
	"github.com/cognicore/anonym/pkg/anonym/lexicon"
	"github.com/cognicore/anonym/pkg/anonym/redact"
)

// Config is the on-disk configuration of an anonymization run.
type Config struct {
	Lexicons  Lexicons  `yaml:"lexicons"`
	Detection Detection `yaml:"detection"`
	Cache     Cache     `yaml:"cache"`
	Log       Log       `yaml:"log"`
}

// Lexicons names the reference files.
type Lexicons struct {
	FirstNames          string   `yaml:"first_names"`
	LastNames           string   `yaml:"last_names"`
	Abbreviations       string   `yaml:"abbreviations"`
	Vocabulary          string   `yaml:"vocabulary"`
	VocabularyEncoding  string   `yaml:"vocabulary_encoding"`
	ExtraPrefixes       []string `yaml:"extra_prefixes"`
	MinAbbreviationFreq int64    `yaml:"min_abbreviation_freq"`
}

// Detection tunes candidate extraction and output.
type Detection struct {
	MaxNGram          int    `yaml:"max_ngram"`
	Placeholder       string `yaml:"placeholder"`
	DescriptionColumn int    `yaml:"description_column"`
	MinColumns        int    `yaml:"min_columns"`
	MaxRows           int    `yaml:"max_rows"`
	Workers           int    `yaml:"workers"`
	ProgressEvery     int    `yaml:"progress_every"`
}

// Cache locates the sqlite corpus cache. An empty path disables it.
type Cache struct {
	Path string `yaml:"path"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Lexicons: Lexicons{
			FirstNames:          "voornamen_10kw.txt",
			LastNames:           "familienamen_10kw.xml",
			Abbreviations:       "abbrev_freq.txt",
			Vocabulary:          "DFW.CD",
			VocabularyEncoding:  "utf-8",
			MinAbbreviationFreq: lexicon.DefaultMinAbbreviationFreq,
		},
		Detection: Detection{
			MaxNGram:          ingest.DefaultMaxN,
			Placeholder:       redact.DefaultPlaceholder,
			DescriptionColumn: ingest.DefaultDescriptionColumn,
			MinColumns:        ingest.DefaultMinColumns,
			MaxRows:           500000,
			ProgressEvery:     10000,
		},
		Log: Log{Level: "info", Format: "console"},
	}
}

// Load reads a YAML file on top of Default and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", internalerr.ErrInvalidConfig, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	d := c.Detection
	switch {
	case d.MaxNGram < 1:
		return invalid("detection.max_ngram must be >= 1, got %d", d.MaxNGram)
	case d.DescriptionColumn < 0:
		return invalid("detection.description_column must be >= 0, got %d", d.DescriptionColumn)
	case d.MinColumns <= d.DescriptionColumn:
		return invalid("detection.min_columns (%d) must exceed description_column (%d)", d.MinColumns, d.DescriptionColumn)
	case d.MaxRows < 0:
		return invalid("detection.max_rows must be >= 0, got %d", d.MaxRows)
	case d.Workers < 0:
		return invalid("detection.workers must be >= 0, got %d", d.Workers)
	case d.ProgressEvery < 0:
		return invalid("detection.progress_every must be >= 0, got %d", d.ProgressEvery)
	case c.Lexicons.MinAbbreviationFreq < 0:
		return invalid("lexicons.min_abbreviation_freq must be >= 0, got %d", c.Lexicons.MinAbbreviationFreq)
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "console", "json":
	default:
		return invalid("log.format must be console or json, got %q", c.Log.Format)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", internalerr.ErrInvalidConfig, fmt.Sprintf(format, args...))
}
