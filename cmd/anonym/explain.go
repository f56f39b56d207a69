package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cognicore/anonym/pkg/anonym/config"
	"github.com/cognicore/anonym/pkg/anonym/lexicon"
	"github.com/cognicore/anonym/pkg/anonym/score"
)

func newExplainCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "explain <ngram>...",
		Short: "Show the feature tags and score of n-grams",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := (&config.Loader{Config: a.cfg}).Load()
			if err != nil {
				return err
			}
			for _, ng := range args {
				writeEvidence(cmd.OutOrStdout(), comp.Scorer.Score(ng), comp.Lexicons)
			}
			return nil
		},
	}
}

func writeEvidence(w io.Writer, ev score.Evidence, lex *lexicon.Lexicons) {
	words := strings.Split(ev.NGram, " ")
	fmt.Fprintf(w, "%q score=%g name=%t\n", ev.NGram, ev.Score, ev.IsName())
	for i, word := range words {
		tag := string(ev.Positions[i])
		if tag == "" {
			tag = "-"
		}
		if f := nameFreq(lex, word, ev.Positions[i]); f > 0 {
			fmt.Fprintf(w, "  %-20s %s freq=%d\n", word, tag, f)
			continue
		}
		fmt.Fprintf(w, "  %-20s %s\n", word, tag)
	}
	fmt.Fprintf(w, "  features: %s\n", joinTags(ev.Features))
}

// nameFreq looks up the lexicon frequency of a word tagged as a first or
// last name. Multi-word surnames are not looked up per word.
func nameFreq(lex *lexicon.Lexicons, word string, tag score.Tag) int64 {
	if lex == nil {
		return 0
	}
	switch tag {
	case score.TagFirstName:
		return lex.FirstNameFreq(lexicon.TitleCase(word))
	case score.TagLastName:
		return lex.LastNameFreq(lexicon.TitleCase(strings.ReplaceAll(word, ",", "")))
	}
	return 0
}

func joinTags(tags []score.Tag) string {
	if len(tags) == 0 {
		return "none"
	}
	s := make([]string, len(tags))
	for i, t := range tags {
		s[i] = string(t)
	}
	return strings.Join(s, ", ")
}
