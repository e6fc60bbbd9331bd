package textanalysis

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/anamnesis-symptom-engine/internal/catalog"
)

// RuleAnalyzer is an in-process engine: it lemmatizes words with a lexicon,
// matches catalog lemma patterns and applies negation cues from a termset.
type RuleAnalyzer struct {
	lexicon  *Lexicon
	terms    compiledTermset
	patterns map[string][]catalog.PatternEntry
	logger   *logrus.Logger
}

// NewRuleAnalyzer builds a rule engine over the patterns of a catalog.
func NewRuleAnalyzer(c *catalog.Catalog, lexicon *Lexicon, termset *Termset, logger *logrus.Logger) *RuleAnalyzer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	patterns := make(map[string][]catalog.PatternEntry)
	for _, entry := range c.Patterns() {
		for i, lemma := range entry.Pattern {
			entry.Pattern[i] = normalize(lemma)
		}
		first := entry.Pattern[0]
		patterns[first] = append(patterns[first], entry)
	}

	return &RuleAnalyzer{
		lexicon:  lexicon,
		terms:    termset.compile(),
		patterns: patterns,
		logger:   logger,
	}
}

// NewDefaultRuleAnalyzer builds a rule engine with the embedded lexicon and
// termset.
func NewDefaultRuleAnalyzer(c *catalog.Catalog, logger *logrus.Logger) (*RuleAnalyzer, error) {
	lexicon, err := DefaultLexicon()
	if err != nil {
		return nil, err
	}
	termset, err := DefaultTermset()
	if err != nil {
		return nil, err
	}
	return NewRuleAnalyzer(c, lexicon, termset, logger), nil
}

// Analyze returns the symptom mentions of text in text order. At each
// position the longest matching pattern wins and matches do not overlap.
func (a *RuleAnalyzer) Analyze(ctx context.Context, text string) ([]Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := Tokenize(text)
	for i := range tokens {
		tokens[i].Lemma = a.lexicon.Lemma(tokens[i].Lower)
	}

	var (
		spans   []span
		matched []catalog.PatternEntry
	)
	for i := 0; i < len(tokens); {
		best, ok := a.longestMatch(tokens, i)
		if !ok {
			i++
			continue
		}
		spans = append(spans, span{start: i, end: i + len(best.Pattern)})
		matched = append(matched, best)
		i += len(best.Pattern)
	}

	negated := a.terms.detectNegations(tokens, spans)

	entities := make([]Entity, len(spans))
	for i, s := range spans {
		lemmas := make([]string, 0, s.end-s.start)
		for _, t := range tokens[s.start:s.end] {
			lemmas = append(lemmas, t.Lemma)
		}
		first, last := tokens[s.start], tokens[s.end-1]
		entities[i] = Entity{
			Text:    text[first.Start:last.End],
			Lemma:   strings.Join(lemmas, " "),
			ID:      matched[i].Symptom,
			Label:   LabelSymptom,
			Negated: negated[i],
			Start:   first.Start,
			End:     last.End,
		}
	}

	a.logger.WithFields(logrus.Fields{
		"tokens":   len(tokens),
		"entities": len(entities),
	}).Debug("Text analysed")

	return entities, nil
}

// AnalyzeBatch analyses texts one after another.
func (a *RuleAnalyzer) AnalyzeBatch(ctx context.Context, texts []string) ([][]Entity, error) {
	out := make([][]Entity, len(texts))
	for i, text := range texts {
		entities, err := a.Analyze(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = entities
	}
	return out, nil
}

func (a *RuleAnalyzer) longestMatch(tokens []Token, at int) (catalog.PatternEntry, bool) {
	var (
		best  catalog.PatternEntry
		found bool
	)
	for _, entry := range a.patterns[tokens[at].Lemma] {
		n := len(entry.Pattern)
		if at+n > len(tokens) || (found && n <= len(best.Pattern)) {
			continue
		}
		ok := true
		for j, lemma := range entry.Pattern {
			if tokens[at+j].Lemma != lemma || tokens[at+j].Sentence != tokens[at].Sentence {
				ok = false
				break
			}
		}
		if ok {
			best, found = entry, true
		}
	}
	return best, found
}
