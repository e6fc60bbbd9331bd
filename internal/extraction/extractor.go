// Package extraction turns free text into symptom evidence and folds that
// evidence into records. Two strategies are provided: verbatim substring
// matching and pattern matching with negation detection.
package extraction

import (
	"context"
	"fmt"

	"github.com/anamnesis-symptom-engine/internal/anamnesis"
	"github.com/anamnesis-symptom-engine/internal/catalog"
	"github.com/anamnesis-symptom-engine/internal/textanalysis"
)

const (
	StrategySubstring = "substring"
	StrategyPattern   = "pattern"
)

// Evidence is one mention of a catalog symptom and whether it was negated.
type Evidence struct {
	Symptom string `json:"symptom"`
	Negated bool   `json:"negated"`
}

// Extractor yields the evidence found in one text, in the order the
// underlying engine reports it.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]Evidence, error)
}

// BatchExtractor is implemented by extractors that can process several
// texts in one engine call. Results are positionally aligned with texts.
type BatchExtractor interface {
	Extractor
	ExtractBatch(ctx context.Context, texts []string) ([][]Evidence, error)
}

// Error reports that the engine failed on one text. It is recoverable: the
// text contributes no evidence and processing of other texts continues.
type Error struct {
	Text string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("symptom extraction failed: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns the extractor for a strategy name. The analyzer is only used
// by the pattern strategy.
func New(strategy string, c *catalog.Catalog, analyzer textanalysis.Analyzer) (Extractor, error) {
	switch strategy {
	case StrategySubstring:
		return NewSubstringExtractor(c), nil
	case StrategyPattern, "":
		if analyzer == nil {
			return nil, fmt.Errorf("pattern extraction requires a text analyzer")
		}
		return NewPatternExtractor(c, analyzer), nil
	default:
		return nil, fmt.Errorf("unknown extraction strategy %q", strategy)
	}
}

// Apply folds evidence into a record in order and returns the number of
// items that named a catalog symptom.
func Apply(r *anamnesis.Record, evidence []Evidence) int {
	applied := 0
	for _, e := range evidence {
		if r.UpdateFromEntity(e.Symptom, e.Negated) {
			applied++
		}
	}
	return applied
}

// BuildRecord extracts evidence from text into a fresh record.
func BuildRecord(ctx context.Context, ex Extractor, c *catalog.Catalog, text string) (*anamnesis.Record, error) {
	evidence, err := ex.Extract(ctx, text)
	if err != nil {
		return nil, err
	}
	r := anamnesis.New(c)
	Apply(r, evidence)
	return r, nil
}

// BuildSegmentedRecord builds one record per segment and merges them, in
// order, into a fresh record. Contradictions across segments become
// CONFUSED, while a segment that only confuses a symptom does not override
// a definite status from an earlier one.
func BuildSegmentedRecord(ctx context.Context, ex Extractor, c *catalog.Catalog, segments []string) (*anamnesis.Record, error) {
	merged := anamnesis.New(c)
	for _, segment := range segments {
		r, err := BuildRecord(ctx, ex, c, segment)
		if err != nil {
			return nil, err
		}
		if _, err := merged.MergeFrom(r); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

// BuildSentenceRecord splits text into sentences and builds a segmented
// record from them.
func BuildSentenceRecord(ctx context.Context, ex Extractor, c *catalog.Catalog, text string) (*anamnesis.Record, error) {
	return BuildSegmentedRecord(ctx, ex, c, textanalysis.SplitSentences(text))
}
