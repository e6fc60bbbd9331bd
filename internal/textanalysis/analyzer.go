// Package textanalysis is the boundary to the engine that finds symptom
// mentions in text and decides whether each mention is negated. It ships a
// rule-based engine that runs in process, a client for a remote engine and a
// caching wrapper for either.
package textanalysis

import (
	"context"
	"fmt"
)

// LabelSymptom is the only entity label trusted by extraction.
const LabelSymptom = "SYMPTOM"

// Entity is one mention recognised by an engine. Offsets are byte offsets
// into the analysed text.
type Entity struct {
	Text    string `json:"text"`
	Lemma   string `json:"lemma"`
	ID      string `json:"id,omitempty"`
	Label   string `json:"label"`
	Negated bool   `json:"negated"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
}

// Analyzer finds entities in a single text, in text order.
type Analyzer interface {
	Analyze(ctx context.Context, text string) ([]Entity, error)
}

// BatchAnalyzer is implemented by engines that can analyse several texts in
// one call. Results are positionally aligned with the input.
type BatchAnalyzer interface {
	Analyzer
	AnalyzeBatch(ctx context.Context, texts []string) ([][]Entity, error)
}

// AnalyzeAll analyses texts with the batch API when the engine has one and
// falls back to one call per text otherwise.
func AnalyzeAll(ctx context.Context, a Analyzer, texts []string) ([][]Entity, error) {
	if ba, ok := a.(BatchAnalyzer); ok {
		out, err := ba.AnalyzeBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(out) != len(texts) {
			return nil, fmt.Errorf("engine returned %d results for %d texts", len(out), len(texts))
		}
		return out, nil
	}

	out := make([][]Entity, len(texts))
	for i, text := range texts {
		entities, err := a.Analyze(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		out[i] = entities
	}
	return out, nil
}
