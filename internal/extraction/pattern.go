package extraction

import (
	"context"

	"github.com/anamnesis-symptom-engine/internal/catalog"
	"github.com/anamnesis-symptom-engine/internal/textanalysis"
)

// PatternExtractor delegates mention finding and negation detection to a
// text-analysis engine and keeps only entities labelled as symptoms.
type PatternExtractor struct {
	catalog  *catalog.Catalog
	analyzer textanalysis.Analyzer
}

// NewPatternExtractor creates a pattern extractor.
func NewPatternExtractor(c *catalog.Catalog, analyzer textanalysis.Analyzer) *PatternExtractor {
	return &PatternExtractor{catalog: c, analyzer: analyzer}
}

// Extract returns evidence in engine order.
func (p *PatternExtractor) Extract(ctx context.Context, text string) ([]Evidence, error) {
	entities, err := p.analyzer.Analyze(ctx, text)
	if err != nil {
		return nil, &Error{Text: text, Err: err}
	}
	return p.toEvidence(entities), nil
}

// ExtractBatch analyses all texts with one engine round trip when the engine
// supports batches.
func (p *PatternExtractor) ExtractBatch(ctx context.Context, texts []string) ([][]Evidence, error) {
	results, err := textanalysis.AnalyzeAll(ctx, p.analyzer, texts)
	if err != nil {
		return nil, &Error{Err: err}
	}
	out := make([][]Evidence, len(results))
	for i, entities := range results {
		out[i] = p.toEvidence(entities)
	}
	return out, nil
}

// toEvidence maps entities to catalog symptoms. An entity names its symptom
// through its pattern id when the engine reports one and through its lemma
// otherwise. Names outside the catalog are passed through; records ignore
// them.
func (p *PatternExtractor) toEvidence(entities []textanalysis.Entity) []Evidence {
	out := make([]Evidence, 0, len(entities))
	for _, e := range entities {
		if e.Label != textanalysis.LabelSymptom {
			continue
		}
		name := e.ID
		if _, ok := p.catalog.Index(name); !ok || name == "" {
			name = e.Lemma
		}
		out = append(out, Evidence{Symptom: name, Negated: e.Negated})
	}
	return out
}
